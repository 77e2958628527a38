package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the config file and the
environment. The database password is redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfig()
		},
	}
}

func (c *CLI) runConfig() error {
	if c.jsonOutput {
		return c.outputJSON(c.cfg.Redacted())
	}

	data, err := c.cfg.YAML()
	if err != nil {
		return err
	}
	_, err = c.out.Write(data)
	return err
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/config"
)

func newConfigCmd() *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Prints the configuration after discovery, environment overrides,
defaults and participant flags. --schema prints the JSON schema config
files are validated against.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema {
				data, err := config.GenerateSchema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), cfg)
			}
			summary, err := cfg.Summary()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "Print the config JSON schema")
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain>",
		Short: "Print the stored snapshot of a domain",
		Example: `crownest get groups
crownest get tokens`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			domain := envelope.Domain(args[0])
			raw, ok, err := s.Manager.Fetch(cmd.Context(), domain)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NotFound(fmt.Sprintf("stored snapshot for '%s'", domain))
			}
			return cli.PrintRawJSON(cmd.OutOrStdout(), raw)
		},
	}
}

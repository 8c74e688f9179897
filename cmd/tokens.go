package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/errors"
)

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [despair|cheers <delta>]",
		Short: "Show or adjust the despair and cheers tokens",
		Long:  "Without arguments prints the current tokens. Adjusting is GM-only; counts never drop below zero.",
		Example: `crownest tokens
crownest tokens despair 1 --role gm
crownest tokens cheers -1 --role gm`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or <despair|cheers> <delta>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var delta int
			if len(args) == 2 {
				var err error
				if delta, err = strconv.Atoi(args[1]); err != nil {
					return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("delta must be an integer, got '%s'", args[1]))
				}
			}

			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 2 {
				switch args[0] {
				case "despair":
					err = s.Tokens.AdjustDespair(cmd.Context(), delta)
				case "cheers":
					err = s.Tokens.AdjustCheers(cmd.Context(), delta)
				default:
					return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown token '%s'", args[0]))
				}
				if err != nil {
					return err
				}
			}

			tokens := s.Tokens.Snapshot()
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), tokens)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Despair: %d\nCheers:  %d\n", tokens.Despair, tokens.Cheers)
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/stores"
)

func newShowCmd() *cobra.Command {
	var (
		force    bool
		showToGM bool
		targets  []string
		remove   bool
	)
	cmd := &cobra.Command{
		Use:   "show <group-id>",
		Short: "Push a group's patrol sheet to the players",
		Long: `Announce the patrol sheet of a group. Players open it once; a player who
joins later opens every sheet still announced. --force asks players to
open the sheet again without recording it.`,
		Example: `crownest show G1 --role gm
crownest show G1 --to p-1 --to p-2 --role gm
crownest show G1 --remove --role gm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			pretty := logging.PrettyFrom(cmd.Context())
			if remove {
				if err := s.Popups.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				pretty.Success(fmt.Sprintf("Withdrew patrol sheet for %s", args[0]))
				return nil
			}

			group, ok := s.Groups.Get(args[0])
			if !ok {
				return errors.NotFound(fmt.Sprintf("group '%s'", args[0]))
			}

			if force {
				if err := s.Popups.ForceShow(cmd.Context(), group); err != nil {
					return err
				}
				pretty.Success(fmt.Sprintf("Asked players to open %s", group.Name))
				return nil
			}

			entry, err := s.Popups.ShowToAll(cmd.Context(), group, stores.ShowOptions{
				ShowToGM:    showToGM,
				TargetUsers: targets,
			})
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), entry)
			}
			pretty.Success(fmt.Sprintf("Announced patrol sheet for %s", group.Name))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Ask players to open the sheet without recording it")
	cmd.Flags().BoolVar(&showToGM, "show-to-gm", false, "Also open the sheet for the GM who announced it")
	cmd.Flags().StringArrayVar(&targets, "to", nil, "Only announce to this participant (repeatable)")
	cmd.Flags().BoolVar(&remove, "remove", false, "Withdraw the announcement instead")
	return cmd
}

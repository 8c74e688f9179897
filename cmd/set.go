package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/profiling"
)

// readPayload accepts inline JSON, @file, or - for stdin.
func readPayload(arg string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		data = []byte(arg)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read payload")
	}
	if !json.Valid(data) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func newSetCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "set <domain> <json|@file|->",
		Short: "Broadcast a new snapshot or event for a domain",
		Long: `Broadcast replaces the whole snapshot of a domain. Privileged domains
(guard sheet, tokens, popups) are refused unless the participant is the GM.`,
		Example: `crownest set tokens '{"despair":2,"cheers":1}' --role gm
crownest set groups @groups.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := envelope.Domain(args[0])
			payload, err := readPayload(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Manager.Authorize(domain); err != nil {
				return err
			}
			env, err := s.Manager.Envelope(domain, envelope.Action(action), payload)
			if err != nil {
				return err
			}
			span := profiling.Start("broadcast")
			err = s.Manager.Broadcast(cmd.Context(), env)
			span.Stop()
			if err != nil {
				return err
			}
			logging.PrettyFrom(cmd.Context()).Change(string(domain), string(env.Action), fmt.Sprintf("(%d bytes)", len(payload)))
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", string(envelope.ActionUpdate), "Envelope action: update, create, delete, command or show")
	return cmd
}

package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/config"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/paths"
	"github.com/grovetools/crownest/pkg/profiling"
	"github.com/grovetools/crownest/pkg/session"
)

func addParticipantFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("participant", "", "Participant id (default: from config, else a per-process id)")
	f.String("name", "", "Display name")
	f.String("role", "", "Participant role: gm or player")
	f.String("store", "", "Store backend: auto, file, relay or memory")
	f.String("store-path", "", "File store location")
	f.String("relay", "", "Relay address (unix:///path or tcp://host:port)")
	f.String("namespace", "", "Key namespace shared by the table")
}

// loadConfig reads the config file and applies the participant flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"participant": &cfg.Participant.ID,
		"name":        &cfg.Participant.Name,
		"role":        &cfg.Participant.Role,
		"store":       &cfg.Store.Backend,
		"store-path":  &cfg.Store.Path,
		"relay":       &cfg.Store.Relay,
		"namespace":   &cfg.Namespace,
	}
	for flag, target := range overrides {
		if cmd.Flags().Changed(flag) {
			*target, _ = cmd.Flags().GetString(flag)
		}
	}

	for _, p := range []*string{&cfg.Store.Path, &cfg.Relay.DataFile} {
		if *p, err = paths.Expand(*p); err != nil {
			return nil, errors.ConfigInvalid(err.Error())
		}
	}

	if cfg.Participant.ID == "" {
		cfg.Participant.ID = ephemeralID()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return cfg, nil
}

// ephemeralID names a participant that has no configured id. Each process
// gets its own so two terminals of one user still see each other's writes.
func ephemeralID() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "guest"
	}
	return user + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// openSession joins the table described by the config and flags.
func openSession(ctx context.Context, cmd *cobra.Command) (*session.Session, error) {
	defer profiling.Start("session.open").Stop()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := session.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, opts)
}

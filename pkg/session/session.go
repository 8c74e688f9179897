// Package session wires one participant's connection to a table: the shared
// store, the sync manager, and every domain store.
package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/config"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/profiling"
	"github.com/grovetools/crownest/pkg/stores"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// Options describe how to join a table.
type Options struct {
	Participant  models.Participant
	Namespace    string
	Store        kv.Options
	Debounce     time.Duration
	WriteTimeout time.Duration
	// SkipLoad leaves every domain store empty instead of reading the
	// stored snapshots.
	SkipLoad bool
}

// OptionsFromConfig maps the config file onto session options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	role, err := models.ParseRole(cfg.Participant.Role)
	if err != nil {
		return Options{}, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid participant role")
	}
	backend, err := kv.ParseBackend(cfg.Store.Backend)
	if err != nil {
		return Options{}, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid store backend")
	}
	return Options{
		Participant: models.Participant{
			ID:   cfg.Participant.ID,
			Name: cfg.Participant.Name,
			Role: role,
		},
		Namespace: cfg.Namespace,
		Store: kv.Options{
			Backend:  backend,
			Origin:   cfg.Participant.ID,
			Path:     cfg.Store.Path,
			Relay:    cfg.Store.Relay,
			Debounce: cfg.Store.Debounce.Std(),
		},
		Debounce:     cfg.Sync.Debounce.Std(),
		WriteTimeout: cfg.Sync.WriteTimeout.Std(),
	}, nil
}

// Session is one participant's live view of the table.
type Session struct {
	Store   kv.Store
	Manager *syncmgr.Manager

	Groups  *stores.Groups
	Admins  *stores.Admins
	Guard   *stores.Guard
	Tokens  *stores.Tokens
	Presets *stores.Presets
	Popups  *stores.Popups

	logger *logrus.Entry
}

// Open connects to the store, starts the sync manager and loads every
// domain store.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Participant.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "participant id is required")
	}
	opts.Store.Origin = opts.Participant.ID

	store, err := kv.Connect(ctx, opts.Store)
	if err != nil {
		return nil, err
	}
	s, err := openWithStore(ctx, store, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// OpenWithStore builds a session over an existing store. The session owns
// the store afterwards and closes it on Close.
func OpenWithStore(ctx context.Context, store kv.Store, opts Options) (*Session, error) {
	return openWithStore(ctx, store, opts)
}

func openWithStore(ctx context.Context, store kv.Store, opts Options) (*Session, error) {
	logger := logging.NewLogger("session")

	mgr, err := syncmgr.New(syncmgr.Options{
		Store:        store,
		Participant:  opts.Participant,
		Namespace:    opts.Namespace,
		Debounce:     opts.Debounce,
		WriteTimeout: opts.WriteTimeout,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{Store: store, Manager: mgr, logger: logger}
	if s.Groups, err = stores.NewGroups(mgr); err != nil {
		return nil, err
	}
	if s.Admins, err = stores.NewAdmins(mgr); err != nil {
		return nil, err
	}
	if s.Guard, err = stores.NewGuard(mgr); err != nil {
		return nil, err
	}
	if s.Tokens, err = stores.NewTokens(mgr); err != nil {
		return nil, err
	}
	if s.Presets, err = stores.NewPresets(mgr); err != nil {
		return nil, err
	}
	if s.Popups, err = stores.NewPopups(mgr); err != nil {
		return nil, err
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	if !opts.SkipLoad {
		if err := s.Load(ctx); err != nil {
			mgr.Close()
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"participant": opts.Participant.ID,
		"role":        opts.Participant.Role,
		"namespace":   mgr.Namespace(),
	}).Info("Joined table")
	return s, nil
}

// Load reads every stored snapshot.
func (s *Session) Load(ctx context.Context) error {
	defer profiling.Start("session.load").Stop()
	loaders := []func(context.Context) error{
		s.Groups.Load,
		s.Admins.Load,
		s.Guard.Load,
		s.Tokens.Load,
		s.Presets.Load,
		s.Popups.Load,
	}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the sync manager and closes the store.
func (s *Session) Close() error {
	s.Popups.Close()
	if err := s.Manager.Close(); err != nil {
		return err
	}
	return s.Store.Close()
}

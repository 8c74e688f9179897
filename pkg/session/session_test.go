package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/config"
	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/pkg/models"
)

func TestSessionsShareMemorySpace(t *testing.T) {
	mem, err := kv.NewMemory()
	require.NoError(t, err)
	defer mem.Close()
	ctx := context.Background()

	open := func(p models.Participant) *Session {
		s, err := Open(ctx, Options{
			Participant: p,
			Store:       kv.Options{Backend: kv.BackendMemory, Memory: mem},
		})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}

	keeper := open(models.Participant{ID: "gm-1", Role: models.RoleGM})
	require.NoError(t, keeper.Tokens.AdjustDespair(ctx, 2))
	_, err = keeper.Groups.Add(ctx, "Crows")
	require.NoError(t, err)

	// A late joiner loads what is already there.
	bea := open(models.Participant{ID: "p-1", Role: models.RolePlayer})
	assert.Equal(t, 2, bea.Tokens.Snapshot().Despair)
	assert.Len(t, bea.Groups.Snapshot(), 1)

	require.NoError(t, keeper.Tokens.AdjustCheers(ctx, 1))
	assert.Eventually(t, func() bool { return bea.Tokens.Snapshot().Cheers == 1 }, 2*time.Second, 10*time.Millisecond)

	err = bea.Tokens.AdjustCheers(ctx, 1)
	assert.True(t, errors.Is(err, errors.ErrCodePermissionDenied))
}

func TestSessionOverFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yml")
	ctx := context.Background()

	s, err := Open(ctx, Options{
		Participant: models.Participant{ID: "gm-1", Role: models.RoleGM},
		Store:       kv.Options{Backend: kv.BackendFile, Path: path},
	})
	require.NoError(t, err)
	_, err = s.Presets.Add(ctx, models.PresetResource, models.PresetItem{Name: "Rations"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, Options{
		Participant: models.Participant{ID: "p-1"},
		Store:       kv.Options{Backend: kv.BackendFile, Path: path},
	})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Len(t, reopened.Presets.Global(models.PresetResource), 1)
}

func TestOpenRequiresParticipant(t *testing.T) {
	_, err := Open(context.Background(), Options{Store: kv.Options{Backend: kv.BackendMemory}})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Participant.ID = "gm-1"
	cfg.Participant.Role = "gm"
	cfg.Store.Backend = "file"
	cfg.Sync.Debounce = config.Duration(50 * time.Millisecond)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, opts.Participant.IsGM())
	assert.Equal(t, kv.BackendFile, opts.Store.Backend)
	assert.Equal(t, 50*time.Millisecond, opts.Debounce)
	assert.Equal(t, config.DefaultWriteTimeout, opts.WriteTimeout)

	cfg.Participant.Role = "dragon"
	_, err = OptionsFromConfig(cfg)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

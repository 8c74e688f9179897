package kv

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return Notification{}
}

func TestMemoryNotifiesEveryWatcherIncludingWriter(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)
	defer mem.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gm := mem.Participant("gm")
	player := mem.Participant("p1")

	gmCh, err := gm.Watch(ctx)
	require.NoError(t, err)
	playerCh, err := player.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, gm.Set(ctx, "crow-nest", "patrols", json.RawMessage(`[{"id":"G1"}]`)))

	for _, ch := range []<-chan Notification{gmCh, playerCh} {
		n := recv(t, ch)
		assert.Equal(t, "crow-nest", n.Namespace)
		assert.Equal(t, "patrols", n.Key)
		assert.Equal(t, "gm", n.Origin)
		assert.Equal(t, []any{map[string]any{"id": "G1"}}, n.Value)
	}

	got, ok, err := player.Get(ctx, "crow-nest", "patrols")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"G1"}]`, string(got.(json.RawMessage)))

	_, ok, err = player.Get(ctx, "crow-nest", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  any
	}{
		{"raw", ShapeRaw, map[string]any{"cheers": float64(2)}},
		{"string", ShapeString, `{"cheers":2}`},
		{"wrapped", ShapeWrapped, map[string]any{"value": `{"cheers":2}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, err := NewMemory(WithShape(tt.shape))
			require.NoError(t, err)
			defer mem.Close()

			ctx := context.Background()
			ch, err := mem.Watch(ctx)
			require.NoError(t, err)

			require.NoError(t, mem.Put(ctx, "gm", "ns", "gameTokens", map[string]int{"cheers": 2}))
			assert.Equal(t, tt.want, recv(t, ch).Value)
		})
	}
}

func TestMemoryPreservesWriteOrder(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	ch, err := mem.Watch(ctx)
	require.NoError(t, err)

	// Writes far beyond any channel buffer must all arrive, in order.
	const writes = 500
	for i := 0; i < writes; i++ {
		require.NoError(t, mem.Put(ctx, "a", "ns", "counter", i))
	}
	for i := 0; i < writes; i++ {
		assert.Equal(t, float64(i), recv(t, ch).Value)
	}
}

func TestMemoryWriteError(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	view := mem.Participant("gm")
	ch, err := view.Watch(ctx)
	require.NoError(t, err)

	boom := errors.New("quota exceeded")
	mem.SetWriteError(boom)
	assert.ErrorIs(t, view.Set(ctx, "ns", "k", 1), boom)

	_, ok := mem.Lookup("ns", "k")
	assert.False(t, ok)

	mem.SetWriteError(nil)
	require.NoError(t, view.Set(ctx, "ns", "k", 2))
	assert.Equal(t, float64(2), recv(t, ch).Value, "failed write must not notify")
}

func TestMemoryRejectsInvalidInput(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)
	defer mem.Close()

	ctx := context.Background()
	assert.Error(t, mem.Put(ctx, "gm", "", "k", 1))
	assert.Error(t, mem.Put(ctx, "gm", "ns", "k", json.RawMessage(`{nope`)))
	assert.Error(t, mem.Put(ctx, "gm", "ns", "k", make(chan int)))
}

func TestMemoryCloseEndsWatchers(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)

	view := mem.Participant("p1")
	ch, err := view.Watch(context.Background())
	require.NoError(t, err)

	require.NoError(t, view.Close())
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Error(t, view.Set(context.Background(), "ns", "k", 1))

	require.NoError(t, mem.Close())
	_, err = mem.Watch(context.Background())
	assert.Error(t, err)
}

func TestMemoryCancelledWatchIsRemoved(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)
	defer mem.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err = mem.Watch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Watchers())

	cancel()
	assert.Eventually(t, func() bool { return mem.Watchers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yml")
	ctx := context.Background()

	mem, err := NewMemory(WithPersistence(path))
	require.NoError(t, err)
	require.NoError(t, mem.Put(ctx, "gm", "crow-nest", "patrols", json.RawMessage(`[{"id":"G1","name":"Crows"}]`)))
	require.NoError(t, mem.Close())

	reopened, err := NewMemory(WithPersistence(path))
	require.NoError(t, err)
	defer reopened.Close()

	e, ok := reopened.Lookup("crow-nest", "patrols")
	require.True(t, ok)
	assert.Equal(t, "gm", e.Origin)
	assert.JSONEq(t, `[{"id":"G1","name":"Crows"}]`, string(e.Value))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		network string
		addr    string
		wantErr bool
	}{
		{"unix:///tmp/relay.sock", "unix", "/tmp/relay.sock", false},
		{"/tmp/relay.sock", "unix", "/tmp/relay.sock", false},
		{"tcp://127.0.0.1:7788", "tcp", "127.0.0.1:7788", false},
		{"http://127.0.0.1:7788/", "tcp", "127.0.0.1:7788", false},
		{"localhost:7788", "tcp", "localhost:7788", false},
		{"", "", "", true},
		{"nonsense", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			network, addr, err := ParseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.network, network)
			assert.Equal(t, tt.addr, addr)
		})
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/session"
	"github.com/grovetools/crownest/version"
)

func newRelay(t *testing.T, shape kv.Shape) (*kv.Memory, *httptest.Server) {
	t.Helper()
	mem, err := kv.NewMemory(kv.WithShape(shape))
	require.NoError(t, err)

	srv := New(logging.NewLogger("relay-test"), mem, shape)
	srv.SetRunningConfig(&RunningConfig{Listen: "test", Shape: "string", StartedAt: time.Now()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		mem.Close()
		ts.Close()
	})
	return mem, ts
}

func remote(t *testing.T, ts *httptest.Server, origin string) *kv.Remote {
	t.Helper()
	r, err := kv.NewRemote(ts.URL, origin)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestHealthAndConfig(t *testing.T) {
	_, ts := newRelay(t, kv.ShapeString)

	assert.True(t, remote(t, ts, "gm-1").IsRunning(context.Background()))

	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, strconv.Itoa(version.Protocol), resp.Header.Get(kv.ProtocolHeader))
	var cfg RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "string", cfg.Shape)
}

func TestGetAndSet(t *testing.T) {
	mem, ts := newRelay(t, kv.ShapeString)
	ctx := context.Background()
	r := remote(t, ts, "gm-1")

	_, ok, err := r.Get(ctx, "crow-nest", "tokens")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "crow-nest", "tokens", map[string]int{"despair": 2}))

	v, ok, err := r.Get(ctx, "crow-nest", "tokens")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"despair":2}`, string(v.(json.RawMessage)))

	e, ok := mem.Lookup("crow-nest", "tokens")
	require.True(t, ok)
	assert.Equal(t, "gm-1", e.Origin)
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	_, ts := newRelay(t, kv.ShapeString)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/kv/crow-nest/tokens", strings.NewReader("{nope"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamDeliversEveryShape(t *testing.T) {
	for name, shape := range map[string]kv.Shape{
		"raw":     kv.ShapeRaw,
		"string":  kv.ShapeString,
		"wrapped": kv.ShapeWrapped,
	} {
		t.Run(name, func(t *testing.T) {
			_, ts := newRelay(t, shape)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			watcher := remote(t, ts, "p-1")
			ch, err := watcher.Watch(ctx)
			require.NoError(t, err)

			require.NoError(t, remote(t, ts, "gm-1").Set(ctx, "crow-nest", "tokens", map[string]int{"cheers": 1}))

			select {
			case n := <-ch:
				assert.Equal(t, "tokens", n.Key)
				assert.Equal(t, "gm-1", n.Origin)
				text, ok := n.Value.(string)
				require.True(t, ok)
				assert.Contains(t, text, "cheers")
			case <-time.After(2 * time.Second):
				t.Fatal("no notification")
			}
		})
	}
}

func TestSessionsSyncThroughRelay(t *testing.T) {
	_, ts := newRelay(t, kv.ShapeString)
	ctx := context.Background()

	open := func(p models.Participant) *session.Session {
		s, err := session.OpenWithStore(ctx, remote(t, ts, p.ID), session.Options{Participant: p})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}

	keeper := open(models.Participant{ID: "gm-1", Name: "Keeper", Role: models.RoleGM})
	alice := open(models.Participant{ID: "p-1", Name: "Alice", Role: models.RolePlayer})

	g1, err := keeper.Groups.Add(ctx, "G1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(alice.Groups.Snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Groups.AddSoldier(ctx, g1.ID, models.Member{ID: "alice", Name: "Alice"}))
	assert.Eventually(t, func() bool {
		g, ok := keeper.Groups.Get(g1.ID)
		return ok && g.HasSoldier("alice")
	}, 2*time.Second, 10*time.Millisecond)
}

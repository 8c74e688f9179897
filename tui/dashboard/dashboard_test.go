package dashboard

import (
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
)

func newModel(events chan envelope.Envelope) Model {
	return New(Options{
		Participant: models.Participant{ID: "p-1", Role: models.RolePlayer},
		Namespace:   "crow-nest",
		Domains:     envelope.DefaultRegistry().Domains(),
		Events:      events,
		Now:         func() time.Time { return time.Unix(0, 0) },
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func rowFor(m Model, d envelope.Domain) Row {
	for _, r := range m.Rows() {
		if r.Domain == d {
			return r
		}
	}
	return Row{}
}

func TestRecordsEnvelopes(t *testing.T) {
	m := newModel(nil)

	m, _ = update(t, m, EventMsg(envelope.Envelope{
		Domain:    envelope.DomainGroups,
		Action:    envelope.ActionUpdate,
		Data:      json.RawMessage(`[{"id":"G1"},{"id":"G2"}]`),
		Origin:    "gm-1",
		Timestamp: 1700000000000,
	}))
	m, _ = update(t, m, EventMsg(envelope.Envelope{
		Domain: envelope.DomainGroups,
		Action: envelope.ActionUpdate,
		Data:   json.RawMessage(`[{"id":"G1"}]`),
		Origin: "gm-1",
	}))

	r := rowFor(m, envelope.DomainGroups)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, "gm-1", r.Origin)
	assert.Equal(t, "1 item", r.Summary)
	assert.Equal(t, time.Unix(0, 0), r.At)

	view := m.View()
	assert.Contains(t, view, "groups")
	assert.Contains(t, view, "gm-1")
	assert.Contains(t, view, "crow-nest")
}

func TestUnknownDomainGetsARow(t *testing.T) {
	m := newModel(nil)
	m, _ = update(t, m, EventMsg(envelope.Envelope{Domain: "weather", Action: envelope.ActionUpdate, Data: json.RawMessage(`"rain"`)}))

	r := rowFor(m, "weather")
	assert.Equal(t, 1, r.Count)
	assert.Equal(t, `"rain"`, r.Summary)
}

func TestClearAndQuitKeys(t *testing.T) {
	m := newModel(nil)
	m, _ = update(t, m, EventMsg(envelope.Envelope{Domain: envelope.DomainTokens, Action: envelope.ActionUpdate, Data: json.RawMessage(`{"despair":1,"cheers":0}`)}))
	assert.Equal(t, "2 fields", rowFor(m, envelope.DomainTokens).Summary)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Equal(t, 0, rowFor(m, envelope.DomainTokens).Count)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWaitsForEventsAndQuitsWhenClosed(t *testing.T) {
	events := make(chan envelope.Envelope, 1)
	m := newModel(events)

	events <- envelope.Envelope{Domain: envelope.DomainStats, Action: envelope.ActionUpdate, Data: json.RawMessage(`{}`)}
	msg := m.Init()()
	m, _ = update(t, m, msg)
	assert.Equal(t, 1, rowFor(m, envelope.DomainStats).Count)

	close(events)
	_, cmd := update(t, m, m.Init()())
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWindowSize(t *testing.T) {
	m := newModel(nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.viewport.Width)
	assert.Equal(t, 40-headerHeight-footerHeight, m.viewport.Height)
}

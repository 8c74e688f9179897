// Package dashboard is the live table view behind `crownest watch --tui`.
// It lists every domain with the last envelope seen for it.
package dashboard

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// EventMsg carries one dispatched envelope into the model.
type EventMsg envelope.Envelope

type closedMsg struct{}

// Row is the dashboard line for one domain.
type Row struct {
	Domain  envelope.Domain
	Kind    envelope.Kind
	Action  envelope.Action
	Origin  string
	At      time.Time
	Summary string
	Count   int
}

// Options configure a dashboard.
type Options struct {
	Participant models.Participant
	Namespace   string
	Domains     []envelope.Descriptor
	Events      <-chan envelope.Envelope
	// Stats is polled on every refresh when set.
	Stats func() syncmgr.Stats
	Now   func() time.Time
}

// Model is the bubbletea model.
type Model struct {
	opts     Options
	rows     map[envelope.Domain]*Row
	order    []envelope.Domain
	showData bool
	keys     keyMap
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// New builds a dashboard listing opts.Domains.
func New(opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := Model{
		opts:     opts,
		rows:     make(map[envelope.Domain]*Row, len(opts.Domains)),
		keys:     defaultKeyMap(),
		showData: true,
		viewport: viewport.New(80, 20),
	}
	for _, d := range opts.Domains {
		m.rows[d.Domain] = &Row{Domain: d.Domain, Kind: d.Kind}
		m.order = append(m.order, d.Domain)
	}
	m.viewport.SetContent(m.renderTable())
	return m
}

// Rows returns the current rows in display order.
func (m Model) Rows() []Row {
	out := make([]Row, 0, len(m.order))
	for _, d := range m.order {
		out = append(out, *m.rows[d])
	}
	return out
}

func waitForEvent(ch <-chan envelope.Envelope) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return EventMsg(env)
	}
}

func (m Model) Init() tea.Cmd {
	if m.opts.Events == nil {
		return nil
	}
	return waitForEvent(m.opts.Events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case EventMsg:
		m.record(envelope.Envelope(msg))
		if m.opts.Events != nil {
			cmds = append(cmds, waitForEvent(m.opts.Events))
		}

	case closedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.ready = true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			for _, r := range m.rows {
				r.Count = 0
			}
		case key.Matches(msg, m.keys.ShowData):
			m.showData = !m.showData
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport.SetContent(m.renderTable())
	return m, tea.Batch(cmds...)
}

func (m *Model) record(env envelope.Envelope) {
	r, ok := m.rows[env.Domain]
	if !ok {
		// Domains registered after start still show up.
		r = &Row{Domain: env.Domain, Kind: envelope.KindEvent}
		m.rows[env.Domain] = r
		m.order = append(m.order, env.Domain)
	}
	r.Action = env.Action
	r.Origin = env.Origin
	r.At = m.opts.Now()
	if env.Timestamp > 0 {
		r.At = time.UnixMilli(env.Timestamp)
	}
	r.Summary = summarize(env.Data)
	r.Count++
}

// summarize describes a payload in a few words: the item count of a list
// or object, or the compact JSON of a scalar.
func summarize(data json.RawMessage) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return truncate(string(data), 40)
	}
	switch x := v.(type) {
	case []any:
		return plural(len(x), "item")
	case map[string]any:
		return plural(len(x), "field")
	case nil:
		return "empty"
	}
	return truncate(string(data), 40)
}

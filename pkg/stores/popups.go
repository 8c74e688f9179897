package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// ShowOptions tune a patrol sheet announcement.
type ShowOptions struct {
	Labels   map[string]string
	ShowToGM bool
	// TargetUsers limits the announcement; nil reaches everyone.
	TargetUsers []string
}

// Popups is the registry of patrol sheets the GM has pushed to the table.
// It also tracks which sheets are open locally so a remote announcement
// opens each sheet once.
type Popups struct {
	*Store[[]models.PopupEntry]

	mu     sync.Mutex
	open   map[string]bool
	onShow map[int]func(models.PopupEntry)
	nextID int
	subID  syncmgr.SubscriptionID
}

func NewPopups(mgr *syncmgr.Manager) (*Popups, error) {
	s, err := New(mgr, envelope.DomainActivePopups,
		WithInitial([]models.PopupEntry{}),
		WithNormalize(func(entries *[]models.PopupEntry) {
			if *entries == nil {
				*entries = []models.PopupEntry{}
			}
			for i := range *entries {
				if (*entries)[i].Labels == nil {
					(*entries)[i].Labels = models.DefaultLabels()
				}
			}
		}))
	if err != nil {
		return nil, err
	}
	p := &Popups{
		Store:  s,
		open:   make(map[string]bool),
		onShow: make(map[int]func(models.PopupEntry)),
	}
	s.OnChange(p.announce)
	p.subID = mgr.Subscribe(envelope.DomainPatrolSheet, p.handleForceShow)
	return p, nil
}

// ShowToAll announces the group's sheet, replacing any earlier entry for it.
func (p *Popups) ShowToAll(ctx context.Context, group models.Group, opts ShowOptions) (models.PopupEntry, error) {
	labels := opts.Labels
	if labels == nil {
		labels = models.DefaultLabels()
	}
	entry := models.PopupEntry{
		GroupID:     group.ID,
		GroupName:   group.Name,
		Labels:      labels,
		Timestamp:   p.mgr.Now().UnixMilli(),
		InitiatedBy: p.mgr.Participant().ID,
		ShowToGM:    opts.ShowToGM,
		TargetUsers: opts.TargetUsers,
	}
	err := p.Update(ctx, func(entries *[]models.PopupEntry) error {
		kept := (*entries)[:0]
		for _, e := range *entries {
			if e.GroupID != group.ID {
				kept = append(kept, e)
			}
		}
		*entries = append(kept, entry)
		return nil
	})
	return entry, err
}

// Remove withdraws the announcement for groupID.
func (p *Popups) Remove(ctx context.Context, groupID string) error {
	return p.Update(ctx, func(entries *[]models.PopupEntry) error {
		for i, e := range *entries {
			if e.GroupID == groupID {
				*entries = append((*entries)[:i], (*entries)[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("popup for group '%s'", groupID))
	})
}

// Clear withdraws every announcement.
func (p *Popups) Clear(ctx context.Context) error {
	return p.Mutate(ctx, []models.PopupEntry{})
}

// ShouldShow reports whether the local participant should open entry,
// given the set of sheets already open.
func (p *Popups) ShouldShow(entry models.PopupEntry, open map[string]bool) bool {
	viewer := p.mgr.Participant()
	if viewer.IsGM() && entry.InitiatedBy == viewer.ID && !entry.ShowToGM {
		return false
	}
	if open[entry.GroupID] {
		return false
	}
	return entry.Targets(viewer.ID)
}

// OnShow registers fn for every sheet the local participant should open.
func (p *Popups) OnShow(fn func(models.PopupEntry)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.onShow[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.onShow, id)
	}
}

// SetOpen records whether the sheet for groupID is open locally.
func (p *Popups) SetOpen(groupID string, open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if open {
		p.open[groupID] = true
	} else {
		delete(p.open, groupID)
	}
}

// IsOpen reports whether the sheet for groupID is open locally.
func (p *Popups) IsOpen(groupID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open[groupID]
}

// ForceShow asks every player to open the group's sheet once, without
// touching the registry.
func (p *Popups) ForceShow(ctx context.Context, group models.Group) error {
	if err := p.gate(); err != nil {
		return err
	}
	env, err := p.mgr.Envelope(envelope.DomainPatrolSheet, envelope.ActionShow, models.PopupEntry{
		GroupID:     group.ID,
		GroupName:   group.Name,
		Labels:      models.DefaultLabels(),
		Timestamp:   p.mgr.Now().UnixMilli(),
		InitiatedBy: p.mgr.Participant().ID,
	})
	if err != nil {
		return err
	}
	return p.mgr.Broadcast(ctx, env)
}

func (p *Popups) announce(c Change[[]models.PopupEntry]) {
	if c.Source != SourceRemote {
		return
	}
	for _, entry := range c.Value {
		p.mu.Lock()
		show := p.ShouldShow(entry, p.open)
		if show {
			p.open[entry.GroupID] = true
		}
		p.mu.Unlock()
		if show {
			p.emit(entry)
		}
	}
}

func (p *Popups) handleForceShow(env envelope.Envelope) {
	if env.Action != envelope.ActionShow || p.mgr.Participant().IsGM() {
		return
	}
	var entry models.PopupEntry
	if err := env.Into(&entry); err != nil || entry.GroupID == "" {
		p.logger.WithField("origin", env.Origin).Warn("Dropping malformed patrol sheet request")
		return
	}
	p.SetOpen(entry.GroupID, true)
	p.emit(entry)
}

func (p *Popups) emit(entry models.PopupEntry) {
	p.mu.Lock()
	fns := make([]func(models.PopupEntry), 0, len(p.onShow))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.onShow[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(entry)
	}
}

// Close detaches the registry and the force-show listener.
func (p *Popups) Close() {
	p.Detach()
	p.mgr.Unsubscribe(envelope.DomainPatrolSheet, p.subID)
}

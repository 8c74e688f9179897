package stores

import (
	"context"
	"fmt"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// Guard groups the GM-owned organization sheets: stats with their change
// log, modifiers, resources and reputation.
type Guard struct {
	mgr        *syncmgr.Manager
	Stats      *Store[models.StatsSnapshot]
	Modifiers  *Store[[]models.GuardModifier]
	Resources  *Store[[]models.GuardResource]
	Reputation *Store[[]models.GuardReputation]
}

func NewGuard(mgr *syncmgr.Manager) (*Guard, error) {
	stats, err := New(mgr, envelope.DomainStats,
		WithNormalize(func(s *models.StatsSnapshot) {
			if s.Stats == nil {
				s.Stats = []models.GuardStat{}
			}
			if s.Log == nil {
				s.Log = []models.LogEntry{}
			}
		}))
	if err != nil {
		return nil, err
	}
	modifiers, err := New(mgr, envelope.DomainModifiers,
		WithNormalize(func(m *[]models.GuardModifier) {
			if *m == nil {
				*m = []models.GuardModifier{}
			}
			models.SortModifiers(*m)
		}))
	if err != nil {
		return nil, err
	}
	resources, err := New(mgr, envelope.DomainResources,
		WithNormalize(func(r *[]models.GuardResource) {
			if *r == nil {
				*r = []models.GuardResource{}
			}
		}))
	if err != nil {
		return nil, err
	}
	reputation, err := New(mgr, envelope.DomainReputation,
		WithNormalize(func(r *[]models.GuardReputation) {
			if *r == nil {
				*r = []models.GuardReputation{}
			}
			for i := range *r {
				(*r)[i].Value = models.ClampReputation((*r)[i].Value)
			}
		}))
	if err != nil {
		return nil, err
	}
	return &Guard{mgr: mgr, Stats: stats, Modifiers: modifiers, Resources: resources, Reputation: reputation}, nil
}

// Load seeds every guard sheet.
func (g *Guard) Load(ctx context.Context) error {
	if err := g.Stats.Load(ctx); err != nil {
		return err
	}
	if err := g.Modifiers.Load(ctx); err != nil {
		return err
	}
	if err := g.Resources.Load(ctx); err != nil {
		return err
	}
	return g.Reputation.Load(ctx)
}

// SetStat creates or changes a stat and appends the change to the log.
func (g *Guard) SetStat(ctx context.Context, stat models.GuardStat) error {
	if stat.Key == "" {
		return errors.New(errors.ErrCodeInvalidInput, "stat key is required")
	}
	return g.Stats.Update(ctx, func(s *models.StatsSnapshot) error {
		entry := models.LogEntry{
			User: g.mgr.Participant().DisplayName(),
			Time: g.mgr.Now().UnixMilli(),
			Next: stat.Value,
		}
		for i := range s.Stats {
			if s.Stats[i].Key != stat.Key {
				continue
			}
			entry.Action = fmt.Sprintf("%s changed", stat.Key)
			entry.Previous = s.Stats[i].Value
			s.Stats[i] = stat
			s.Log = append(s.Log, entry)
			return nil
		}
		entry.Action = fmt.Sprintf("%s added", stat.Key)
		s.Stats = append(s.Stats, stat)
		s.Log = append(s.Log, entry)
		return nil
	})
}

// RemoveStat deletes a stat and logs the removal.
func (g *Guard) RemoveStat(ctx context.Context, key string) error {
	return g.Stats.Update(ctx, func(s *models.StatsSnapshot) error {
		for i := range s.Stats {
			if s.Stats[i].Key != key {
				continue
			}
			s.Log = append(s.Log, models.LogEntry{
				User:     g.mgr.Participant().DisplayName(),
				Time:     g.mgr.Now().UnixMilli(),
				Action:   fmt.Sprintf("%s removed", key),
				Previous: s.Stats[i].Value,
			})
			s.Stats = append(s.Stats[:i], s.Stats[i+1:]...)
			return nil
		}
		return errors.NotFound(fmt.Sprintf("stat '%s'", key))
	})
}

// SortedModifiers returns the modifiers positive first, negative last.
func (g *Guard) SortedModifiers() []models.GuardModifier {
	mods := g.Modifiers.Snapshot()
	models.SortModifiers(mods)
	return mods
}

// UpsertModifier adds mod or replaces the modifier with the same key.
func (g *Guard) UpsertModifier(ctx context.Context, mod models.GuardModifier) error {
	if mod.Key == "" {
		return errors.New(errors.ErrCodeInvalidInput, "modifier key is required")
	}
	return g.Modifiers.Update(ctx, func(mods *[]models.GuardModifier) error {
		for i := range *mods {
			if (*mods)[i].Key == mod.Key {
				(*mods)[i] = mod
				return nil
			}
		}
		*mods = append(*mods, mod)
		return nil
	})
}

func (g *Guard) RemoveModifier(ctx context.Context, key string) error {
	return g.Modifiers.Update(ctx, func(mods *[]models.GuardModifier) error {
		for i := range *mods {
			if (*mods)[i].Key == key {
				*mods = append((*mods)[:i], (*mods)[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("modifier '%s'", key))
	})
}

// SetResource adds or replaces a resource by key.
func (g *Guard) SetResource(ctx context.Context, res models.GuardResource) error {
	if res.Key == "" {
		return errors.New(errors.ErrCodeInvalidInput, "resource key is required")
	}
	return g.Resources.Update(ctx, func(list *[]models.GuardResource) error {
		for i := range *list {
			if (*list)[i].Key == res.Key {
				(*list)[i] = res
				return nil
			}
		}
		*list = append(*list, res)
		return nil
	})
}

func (g *Guard) RemoveResource(ctx context.Context, key string) error {
	return g.Resources.Update(ctx, func(list *[]models.GuardResource) error {
		for i := range *list {
			if (*list)[i].Key == key {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("resource '%s'", key))
	})
}

// SetReputation adds or replaces a reputation track. The value is clamped
// to 0..10.
func (g *Guard) SetReputation(ctx context.Context, rep models.GuardReputation) error {
	if rep.Key == "" {
		return errors.New(errors.ErrCodeInvalidInput, "reputation key is required")
	}
	rep.Value = models.ClampReputation(rep.Value)
	return g.Reputation.Update(ctx, func(list *[]models.GuardReputation) error {
		for i := range *list {
			if (*list)[i].Key == rep.Key {
				(*list)[i] = rep
				return nil
			}
		}
		*list = append(*list, rep)
		return nil
	})
}

func (g *Guard) RemoveReputation(ctx context.Context, key string) error {
	return g.Reputation.Update(ctx, func(list *[]models.GuardReputation) error {
		for i := range *list {
			if (*list)[i].Key == key {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("reputation '%s'", key))
	})
}

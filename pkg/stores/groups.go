package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// Groups is the roster of squads and patrols.
type Groups struct {
	*Store[[]models.Group]
}

func NewGroups(mgr *syncmgr.Manager) (*Groups, error) {
	s, err := New(mgr, envelope.DomainGroups,
		WithInitial([]models.Group{}),
		WithNormalize(normalizeGroups),
	)
	if err != nil {
		return nil, err
	}
	return &Groups{Store: s}, nil
}

func normalizeGroups(groups *[]models.Group) {
	if *groups == nil {
		*groups = []models.Group{}
	}
	for i := range *groups {
		(*groups)[i].Normalize()
	}
}

// Get returns a copy of the group with id.
func (g *Groups) Get(id string) (models.Group, bool) {
	groups := g.Snapshot()
	if i := models.FindGroup(groups, id); i >= 0 {
		return groups[i], true
	}
	return models.Group{}, false
}

// Add appends a new empty group and returns it.
func (g *Groups) Add(ctx context.Context, name string) (models.Group, error) {
	if name == "" {
		return models.Group{}, errors.New(errors.ErrCodeInvalidInput, "group name is required")
	}
	group := models.NewGroup(uuid.NewString(), name)
	err := g.Update(ctx, func(groups *[]models.Group) error {
		*groups = append(*groups, group)
		return nil
	})
	return group, err
}

// Remove deletes the group with id.
func (g *Groups) Remove(ctx context.Context, id string) error {
	return g.Update(ctx, func(groups *[]models.Group) error {
		i := models.FindGroup(*groups, id)
		if i < 0 {
			return errors.NotFound(fmt.Sprintf("group '%s'", id))
		}
		*groups = append((*groups)[:i], (*groups)[i+1:]...)
		return nil
	})
}

// Replace overwrites the group with the same id.
func (g *Groups) Replace(ctx context.Context, group models.Group) error {
	return g.Update(ctx, func(groups *[]models.Group) error {
		i := models.FindGroup(*groups, group.ID)
		if i < 0 {
			return errors.NotFound(fmt.Sprintf("group '%s'", group.ID))
		}
		(*groups)[i] = group
		return nil
	})
}

func (g *Groups) modify(ctx context.Context, id string, fn func(*models.Group) error) error {
	return g.Update(ctx, func(groups *[]models.Group) error {
		i := models.FindGroup(*groups, id)
		if i < 0 {
			return errors.NotFound(fmt.Sprintf("group '%s'", id))
		}
		return fn(&(*groups)[i])
	})
}

// AddSoldier puts member on the group's roster.
func (g *Groups) AddSoldier(ctx context.Context, groupID string, member models.Member) error {
	if member.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "soldier id is required")
	}
	return g.modify(ctx, groupID, func(group *models.Group) error {
		if group.HasSoldier(member.ID) {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("'%s' is already in %s", member.ID, group.Name))
		}
		if len(group.Soldiers) >= group.MaxSoldiers {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("%s is full (%d soldiers)", group.Name, group.MaxSoldiers))
		}
		group.Soldiers = append(group.Soldiers, member)
		return nil
	})
}

func (g *Groups) RemoveSoldier(ctx context.Context, groupID, memberID string) error {
	return g.modify(ctx, groupID, func(group *models.Group) error {
		for i, s := range group.Soldiers {
			if s.ID == memberID {
				group.Soldiers = append(group.Soldiers[:i], group.Soldiers[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("soldier '%s'", memberID))
	})
}

// SetOfficer sets or, with nil, clears the group's officer.
func (g *Groups) SetOfficer(ctx context.Context, groupID string, officer *models.Member) error {
	return g.modify(ctx, groupID, func(group *models.Group) error {
		group.Officer = officer
		return nil
	})
}

// AdjustHope changes hope by delta, clamped to the group's range.
func (g *Groups) AdjustHope(ctx context.Context, groupID string, delta int) error {
	return g.modify(ctx, groupID, func(group *models.Group) error {
		group.Hope += delta
		group.Normalize()
		return nil
	})
}

// SetMod sets a stat modifier; zero removes it.
func (g *Groups) SetMod(ctx context.Context, groupID, stat string, value int) error {
	return g.modify(ctx, groupID, func(group *models.Group) error {
		if value == 0 {
			delete(group.Mods, stat)
			return nil
		}
		group.Mods[stat] = value
		return nil
	})
}

// Admins is the roster of administrative staff. It is replaced as a whole.
type Admins struct {
	*Store[[]models.Group]
}

func NewAdmins(mgr *syncmgr.Manager) (*Admins, error) {
	s, err := New(mgr, envelope.DomainAdmins,
		WithInitial([]models.Group{}),
		WithNormalize(normalizeGroups),
	)
	if err != nil {
		return nil, err
	}
	return &Admins{Store: s}, nil
}

package stores

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/models"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Presets holds the four preset collections: resources, reputations,
// patrol effects and situational modifiers.
type Presets struct {
	*Store[models.PresetCollection]
}

func NewPresets(mgr *syncmgr.Manager) (*Presets, error) {
	s, err := New(mgr, envelope.DomainPresets, WithNormalize(func(c *models.PresetCollection) {
		c.Normalize()
	}))
	if err != nil {
		return nil, err
	}
	return &Presets{Store: s}, nil
}

// newPresetID returns "<kind>-<unix ms>-<9 random chars>".
func (p *Presets) newPresetID(kind models.PresetKind) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(kind) + "-" + strconv.FormatInt(p.mgr.Now().UnixMilli(), 10) + "-" + string(suffix)
}

func items(c *models.PresetCollection, kind models.PresetKind) (*[]models.PresetItem, error) {
	list := c.Items(kind)
	if list == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown preset kind '%s'", kind))
	}
	return list, nil
}

// Add stores a new preset and returns it with its generated id.
func (p *Presets) Add(ctx context.Context, kind models.PresetKind, item models.PresetItem) (models.PresetItem, error) {
	if item.Name == "" {
		return models.PresetItem{}, errors.New(errors.ErrCodeInvalidInput, "preset name is required")
	}
	item.ID = p.newPresetID(kind)
	if item.SourceID == "" {
		item.SourceID = item.ID
	}
	err := p.Update(ctx, func(c *models.PresetCollection) error {
		list, err := items(c, kind)
		if err != nil {
			return err
		}
		*list = append(*list, item)
		return nil
	})
	return item, err
}

// Edit replaces the preset with item.ID.
func (p *Presets) Edit(ctx context.Context, kind models.PresetKind, item models.PresetItem) error {
	return p.modify(ctx, kind, item.ID, func(existing *models.PresetItem) {
		*existing = item
	})
}

// Remove deletes the preset with id.
func (p *Presets) Remove(ctx context.Context, kind models.PresetKind, id string) error {
	return p.Update(ctx, func(c *models.PresetCollection) error {
		list, err := items(c, kind)
		if err != nil {
			return err
		}
		for i := range *list {
			if (*list)[i].ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("%s preset '%s'", kind, id))
	})
}

// ToggleActive flips whether the preset shows on the guard sheet.
func (p *Presets) ToggleActive(ctx context.Context, kind models.PresetKind, id string) error {
	return p.modify(ctx, kind, id, func(existing *models.PresetItem) {
		existing.Active = !existing.Active
	})
}

func (p *Presets) modify(ctx context.Context, kind models.PresetKind, id string, fn func(*models.PresetItem)) error {
	return p.Update(ctx, func(c *models.PresetCollection) error {
		list, err := items(c, kind)
		if err != nil {
			return err
		}
		for i := range *list {
			if (*list)[i].ID == id {
				fn(&(*list)[i])
				return nil
			}
		}
		return errors.NotFound(fmt.Sprintf("%s preset '%s'", kind, id))
	})
}

func (p *Presets) filter(kind models.PresetKind, keep func(models.PresetItem) bool) []models.PresetItem {
	c := p.Snapshot()
	list := c.Items(kind)
	if list == nil {
		return nil
	}
	out := []models.PresetItem{}
	for _, it := range *list {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Global returns presets without a group.
func (p *Presets) Global(kind models.PresetKind) []models.PresetItem {
	return p.filter(kind, models.PresetItem.Global)
}

// ForGroup returns presets bound to groupID.
func (p *Presets) ForGroup(kind models.PresetKind, groupID string) []models.PresetItem {
	return p.filter(kind, func(it models.PresetItem) bool { return it.GroupID == groupID })
}

// ActiveGlobal returns active presets without a group.
func (p *Presets) ActiveGlobal(kind models.PresetKind) []models.PresetItem {
	return p.filter(kind, func(it models.PresetItem) bool { return it.Global() && it.Active })
}

// ActiveForGroup returns active presets bound to groupID.
func (p *Presets) ActiveForGroup(kind models.PresetKind, groupID string) []models.PresetItem {
	return p.filter(kind, func(it models.PresetItem) bool { return it.GroupID == groupID && it.Active })
}

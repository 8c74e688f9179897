package models

import "fmt"

// PresetKind selects one of the four preset collections.
type PresetKind string

const (
	PresetResource   PresetKind = "resource"
	PresetReputation PresetKind = "reputation"
	PresetEffect     PresetKind = "effect"
	PresetModifier   PresetKind = "modifier"
)

// PresetKinds lists every kind in collection order.
var PresetKinds = []PresetKind{PresetResource, PresetReputation, PresetEffect, PresetModifier}

func ParsePresetKind(s string) (PresetKind, error) {
	for _, k := range PresetKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown preset kind %q", s)
}

// PresetItem is a resource, reputation, patrol effect, or situational
// modifier. Resources and reputations carry Value; effects and modifiers
// carry StatEffects. An empty GroupID marks a global preset.
type PresetItem struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"sourceId"`
	Name        string         `json:"name"`
	Value       int            `json:"value,omitempty"`
	StatEffects map[string]int `json:"statEffects,omitempty"`
	Img         string         `json:"img,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	Description string         `json:"description,omitempty"`
	Active      bool           `json:"active"`
	GuardOrder  int            `json:"guardOrder,omitempty"`
	PresetOrder int            `json:"presetOrder,omitempty"`
}

// Global reports whether the preset applies to every group.
func (p PresetItem) Global() bool {
	return p.GroupID == ""
}

// PresetCollection is the presets domain snapshot.
type PresetCollection struct {
	Resources            []PresetItem `json:"resources"`
	Reputations          []PresetItem `json:"reputations"`
	PatrolEffects        []PresetItem `json:"patrolEffects"`
	SituationalModifiers []PresetItem `json:"situationalModifiers"`
}

// Items returns a pointer to the slice holding kind.
func (c *PresetCollection) Items(kind PresetKind) *[]PresetItem {
	switch kind {
	case PresetResource:
		return &c.Resources
	case PresetReputation:
		return &c.Reputations
	case PresetEffect:
		return &c.PatrolEffects
	case PresetModifier:
		return &c.SituationalModifiers
	}
	return nil
}

// Normalize replaces nil collections with empty ones.
func (c *PresetCollection) Normalize() {
	for _, k := range PresetKinds {
		items := c.Items(k)
		if *items == nil {
			*items = []PresetItem{}
		}
	}
}

package models

import (
	"testing"
)

func TestGroupNormalize(t *testing.T) {
	tests := []struct {
		name        string
		group       Group
		wantHope    int
		wantMaxHope int
	}{
		{"hope above max", Group{Hope: 9, MaxHope: 4}, 4, 4},
		{"negative hope", Group{Hope: -2, MaxHope: 3}, 0, 3},
		{"max hope too high", Group{Hope: 6, MaxHope: 12}, 6, 6},
		{"max hope missing", Group{Hope: 2}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.group
			g.Normalize()
			if g.Hope != tt.wantHope || g.MaxHope != tt.wantMaxHope {
				t.Errorf("got hope %d/%d, want %d/%d", g.Hope, g.MaxHope, tt.wantHope, tt.wantMaxHope)
			}
			if g.Soldiers == nil || g.Mods == nil || g.Skills == nil || g.Experiences == nil {
				t.Error("Normalize should fill nil collections")
			}
			if g.MaxSoldiers != DefaultMaxSoldiers {
				t.Errorf("expected default max soldiers, got %d", g.MaxSoldiers)
			}
		})
	}
}

func TestSortModifiers(t *testing.T) {
	mods := []GuardModifier{
		{Key: "a", State: StateNegative},
		{Key: "b"},
		{Key: "c", State: StatePositive},
		{Key: "d", State: StateNeutral},
		{Key: "e", State: StatePositive},
	}
	SortModifiers(mods)

	want := []string{"c", "e", "b", "d", "a"}
	for i, m := range mods {
		if m.Key != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, m.Key, want[i])
		}
	}
}

func TestPopupTargets(t *testing.T) {
	all := PopupEntry{GroupID: "G1"}
	if !all.Targets("anyone") {
		t.Error("nil TargetUsers should target everyone")
	}

	some := PopupEntry{GroupID: "G1", TargetUsers: []string{"p1"}}
	if !some.Targets("p1") || some.Targets("p2") {
		t.Error("TargetUsers should restrict the audience")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(""); err != nil || r != RolePlayer {
		t.Errorf("empty role should default to player, got %q %v", r, err)
	}
	if _, err := ParseRole("GM"); err == nil {
		t.Error("roles are case sensitive")
	}
	p := Participant{ID: "gm-1", Role: RoleGM}
	if !p.IsGM() || p.DisplayName() != "gm-1" {
		t.Error("unexpected participant helpers")
	}
}

func TestPresetCollectionItems(t *testing.T) {
	var c PresetCollection
	c.Normalize()
	for _, k := range PresetKinds {
		items := c.Items(k)
		if items == nil || *items == nil {
			t.Fatalf("collection %s not initialised", k)
		}
	}
	*c.Items(PresetEffect) = append(*c.Items(PresetEffect), PresetItem{ID: "effect-1"})
	if len(c.PatrolEffects) != 1 {
		t.Error("Items should address the underlying slice")
	}
	if c.Items("bogus") != nil {
		t.Error("unknown kind should return nil")
	}
}

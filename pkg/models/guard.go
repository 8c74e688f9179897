package models

import (
	"sort"
)

type GuardStat struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value int    `json:"value"`
	Img   string `json:"img,omitempty"`
}

// LogEntry records one stat change.
type LogEntry struct {
	User     string `json:"user"`
	Time     int64  `json:"time"`
	Action   string `json:"action"`
	Previous any    `json:"previous,omitempty"`
	Next     any    `json:"next,omitempty"`
}

// StatsSnapshot is the stats domain payload: the stat block and its change log.
type StatsSnapshot struct {
	Stats []GuardStat `json:"stats"`
	Log   []LogEntry  `json:"log"`
}

type ModifierState string

const (
	StatePositive ModifierState = "positive"
	StateNeutral  ModifierState = "neutral"
	StateNegative ModifierState = "negative"
)

func (s ModifierState) rank() int {
	switch s {
	case StatePositive:
		return 0
	case StateNegative:
		return 2
	default:
		return 1
	}
}

type GuardModifier struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Img         string         `json:"img,omitempty"`
	Mods        map[string]int `json:"mods"`
	State       ModifierState  `json:"state,omitempty"`
}

// SortModifiers orders modifiers positive, neutral, negative. A missing
// state counts as neutral. The sort is stable.
func SortModifiers(mods []GuardModifier) {
	sort.SliceStable(mods, func(i, j int) bool {
		return mods[i].State.rank() < mods[j].State.rank()
	})
}

type GuardResource struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value int    `json:"value"`
	Img   string `json:"img,omitempty"`
}

const MaxReputation = 10

type GuardReputation struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Value   int    `json:"value"`
	Img     string `json:"img,omitempty"`
	Details string `json:"details,omitempty"`
}

// ClampReputation keeps a reputation value within 0..MaxReputation.
func ClampReputation(v int) int {
	return clamp(v, 0, MaxReputation)
}

// Tokens are the GM's despair and cheers counters.
type Tokens struct {
	Despair int `json:"despair"`
	Cheers  int `json:"cheers"`
}

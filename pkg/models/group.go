package models

const (
	DefaultMaxSoldiers = 5
	MinMaxHope         = 1
	MaxMaxHope         = 6
)

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Img  string `json:"img,omitempty"`
}

type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Img         string `json:"img,omitempty"`
}

// Experience is a named roll modifier, positive or negative.
type Experience struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Group is a squad/patrol roster. A list of groups is the snapshot of the
// groups domain; admins use the same shape.
type Group struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Officer     *Member        `json:"officer"`
	Soldiers    []Member       `json:"soldiers"`
	Mods        map[string]int `json:"mods"`
	Skills      []Skill        `json:"skills"`
	Experiences []Experience   `json:"experiences"`
	MaxSoldiers int            `json:"maxSoldiers"`
	Hope        int            `json:"hope"`
	MaxHope     int            `json:"maxHope"`
}

// NewGroup returns a group with the defaults the table starts from.
func NewGroup(id, name string) Group {
	return Group{
		ID:          id,
		Name:        name,
		Soldiers:    []Member{},
		Mods:        map[string]int{},
		Skills:      []Skill{},
		Experiences: []Experience{},
		MaxSoldiers: DefaultMaxSoldiers,
		MaxHope:     3,
	}
}

// Normalize fills nil collections and clamps hope into range.
func (g *Group) Normalize() {
	if g.Soldiers == nil {
		g.Soldiers = []Member{}
	}
	if g.Mods == nil {
		g.Mods = map[string]int{}
	}
	if g.Skills == nil {
		g.Skills = []Skill{}
	}
	if g.Experiences == nil {
		g.Experiences = []Experience{}
	}
	if g.MaxSoldiers <= 0 {
		g.MaxSoldiers = DefaultMaxSoldiers
	}
	g.MaxHope = clamp(g.MaxHope, MinMaxHope, MaxMaxHope)
	g.Hope = clamp(g.Hope, 0, g.MaxHope)
}

// HasSoldier reports whether a member with id is on the roster.
func (g Group) HasSoldier(id string) bool {
	for _, s := range g.Soldiers {
		if s.ID == id {
			return true
		}
	}
	return false
}

// FindGroup returns the index of the group with id, or -1.
func FindGroup(groups []Group, id string) int {
	for i, g := range groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

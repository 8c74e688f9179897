package models

import "fmt"

// Role is a participant's table role.
type Role string

const (
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

// ParseRole accepts "gm" or "player" (case sensitive).
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGM, RolePlayer:
		return Role(s), nil
	case "":
		return RolePlayer, nil
	}
	return "", fmt.Errorf("unknown role %q (want gm or player)", s)
}

// Participant is one connected client: the GM or a player.
type Participant struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
}

func (p Participant) IsGM() bool {
	return p.Role == RoleGM
}

// DisplayName falls back to the id when no name is set.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

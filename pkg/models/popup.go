package models

// PopupEntry announces a patrol sheet that participants should open.
type PopupEntry struct {
	GroupID     string            `json:"groupId"`
	GroupName   string            `json:"groupName"`
	Labels      map[string]string `json:"labels,omitempty"`
	Timestamp   int64             `json:"timestamp"`
	InitiatedBy string            `json:"initiatedBy"`
	ShowToGM    bool              `json:"showToGM"`
	// TargetUsers limits the entry to the listed participant ids. Nil means
	// everyone.
	TargetUsers []string `json:"targetUsers"`
}

// Targets reports whether the entry is meant for participant id.
func (e PopupEntry) Targets(id string) bool {
	if e.TargetUsers == nil {
		return true
	}
	for _, u := range e.TargetUsers {
		if u == id {
			return true
		}
	}
	return false
}

// DefaultLabels are used when an entry carries none.
func DefaultLabels() map[string]string {
	return map[string]string{"groupSingular": "Patrol"}
}

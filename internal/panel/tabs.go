package panel

import (
	"fmt"
	"strings"

	"meetpanel/internal/models"
)

// Tab is a panel tab.
type Tab string

const (
	TabChat    Tab = "chat"
	TabPolls   Tab = "polls"
	TabPosters Tab = "posters"
)

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	switch t {
	case TabChat, TabPolls, TabPosters:
		return true
	}
	return false
}

// ParseTab parses a tab name, case-insensitively.
func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidTab, s)
	}
	return t, nil
}

// Event names a kind of state change pushed to subscribers.
type Event string

const (
	EventTab        Event = "tab"
	EventVisibility Event = "visibility"
	EventMessage    Event = "message"
	EventReaction   Event = "reaction"
	EventPolls      Event = "polls"
	EventPosters    Event = "posters"
	EventUpload     Event = "upload"
)

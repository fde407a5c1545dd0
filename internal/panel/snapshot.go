package panel

import (
	"meetpanel/internal/models"
	"meetpanel/internal/panel/media"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/reactions"
	"meetpanel/internal/panel/upload"
)

// MessageView is a message ready to render.
type MessageView struct {
	models.Message
	Media     media.Media       `json:"media"`
	Reactions reactions.Summary `json:"reactions"`
}

// Snapshot is a point-in-time copy of the panel.
type Snapshot struct {
	Open           bool          `json:"open"`
	ActiveTab      Tab           `json:"active_tab"`
	UnreadMessages int           `json:"unread_messages"`
	UnreadPolls    int           `json:"unread_polls"`
	PollsEnabled   bool          `json:"polls_enabled"`
	Posters        posters.State `json:"posters"`
	Upload         upload.State  `json:"upload"`
	Messages       []MessageView `json:"messages"`
}

// Snapshot returns a copy of the panel state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		Open:           c.open,
		ActiveTab:      c.tab,
		UnreadMessages: c.unreadMessages,
		UnreadPolls:    c.unreadPolls,
		PollsEnabled:   c.pollsEnabled,
		Messages:       make([]MessageView, 0, len(c.messages)),
	}
	for _, m := range c.messages {
		s.Messages = append(s.Messages, view(m))
	}
	c.mu.Unlock()

	s.Posters = c.posters.State()
	s.Upload = c.uploads.State()
	return s
}

func view(m *models.Message) MessageView {
	v := MessageView{
		Message:   *m,
		Media:     media.Describe(m.Body, m.MIMEType),
		Reactions: reactions.Summarize(&m.Reactions),
	}
	v.Message.Reactions = models.Reactions{}
	return v
}

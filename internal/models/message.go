package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat entry shown in the panel.
type Message struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Body          string    `json:"body"`
	Timestamp     time.Time `json:"timestamp"`
	IsPrivate     bool      `json:"is_private"`
	MIMEType      string    `json:"mime_type,omitempty"`
	Reactions     Reactions `json:"-"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(participantID, displayName, body string, at time.Time) *Message {
	return &Message{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		DisplayName:   displayName,
		Body:          body,
		Timestamp:     at,
	}
}

// Reactions maps a reaction symbol to the participants that chose it.
// Symbols and voters keep their insertion order; a symbol disappears
// together with its last voter.
type Reactions struct {
	symbols []string
	voters  map[string][]string
}

// Add records participantID under symbol. It reports false when the
// participant had already reacted with that symbol.
func (r *Reactions) Add(symbol, participantID string) bool {
	if r.voters == nil {
		r.voters = make(map[string][]string)
	}
	ids, ok := r.voters[symbol]
	if !ok {
		r.symbols = append(r.symbols, symbol)
	}
	for _, id := range ids {
		if id == participantID {
			return false
		}
	}
	r.voters[symbol] = append(ids, participantID)
	return true
}

// Remove retracts participantID from symbol. It reports whether anything changed.
func (r *Reactions) Remove(symbol, participantID string) bool {
	ids, ok := r.voters[symbol]
	if !ok {
		return false
	}
	for i, id := range ids {
		if id != participantID {
			continue
		}
		ids = append(ids[:i:i], ids[i+1:]...)
		if len(ids) == 0 {
			delete(r.voters, symbol)
			r.dropSymbol(symbol)
		} else {
			r.voters[symbol] = ids
		}
		return true
	}
	return false
}

func (r *Reactions) dropSymbol(symbol string) {
	for i, s := range r.symbols {
		if s == symbol {
			r.symbols = append(r.symbols[:i:i], r.symbols[i+1:]...)
			return
		}
	}
}

// Symbols returns the reaction symbols in insertion order.
func (r *Reactions) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Voters returns a copy of the participants that reacted with symbol.
func (r *Reactions) Voters(symbol string) []string {
	ids := r.voters[symbol]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Len is the number of distinct symbols.
func (r *Reactions) Len() int {
	return len(r.symbols)
}

// Clone returns an independent copy.
func (r *Reactions) Clone() Reactions {
	c := Reactions{symbols: r.Symbols()}
	if len(r.voters) > 0 {
		c.voters = make(map[string][]string, len(r.voters))
		for s := range r.voters {
			c.voters[s] = r.Voters(s)
		}
	}
	return c
}

// ReactionEvent is a raw reaction coming from one participant.
type ReactionEvent struct {
	MessageID     string `json:"message_id" validate:"required"`
	Symbol        string `json:"symbol" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
	Retract       bool   `json:"retract"`
}

package models

import "time"

// ArchivedMessage is an outbound chat body stored for a meeting.
type ArchivedMessage struct {
	ID        int64     `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
}

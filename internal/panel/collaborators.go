package panel

import "context"

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators.go -package=mocks

// MeetingResolver yields the meeting the panel belongs to, or "" when it
// cannot be resolved.
type MeetingResolver interface {
	MeetingID() string
}

// LayoutRecomputer is the host video layout. It is told once about every
// visibility change of the panel.
type LayoutRecomputer interface {
	Recompute()
}

// MessageSink delivers an outbound chat body (text or media URL). mimeType
// is the declared type of an uploaded file and empty for typed text.
type MessageSink interface {
	Dispatch(ctx context.Context, body, mimeType string) error
}

// Metrics receives controller outcomes.
type Metrics interface {
	PosterFetch(outcome string)
	Upload(outcome string)
	Dispatch(kind string)
}

type noopLayout struct{}

func (noopLayout) Recompute() {}

type noopMetrics struct{}

func (noopMetrics) PosterFetch(string) {}
func (noopMetrics) Upload(string)      {}
func (noopMetrics) Dispatch(string)    {}

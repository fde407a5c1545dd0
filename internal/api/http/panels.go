package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	ws "meetpanel/internal/api/ws"
	"meetpanel/internal/metrics"
	"meetpanel/internal/models"
	"meetpanel/internal/panel"
	"meetpanel/internal/panel/media"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/upload"
	"meetpanel/internal/pkg/logger"
)

// Archive stores dispatched messages. *repository.MessageRepository
// satisfies it.
type Archive interface {
	SaveMessage(ctx context.Context, msg models.ArchivedMessage) (models.ArchivedMessage, error)
	GetMessages(ctx context.Context, meetingID string, limit int) ([]models.ArchivedMessage, error)
}

// Builder holds the shared collaborators every panel is built from.
type Builder struct {
	Posters            posters.Fetcher
	Uploader           upload.Uploader
	Archive            Archive // optional
	Hub                *ws.Hub
	Metrics            *metrics.Collector // optional
	Log                logrus.FieldLogger
	PreviewMaxEdge     uint
	PreviewMaxPixels   int64
	PageSize           int
	PollsEnabled       bool
	UploadErrorsInChat bool
}

// Panel is one live controller with its local preview store.
type Panel struct {
	ID        string
	Meetings  panel.MeetingResolver
	Ctrl      *panel.Controller
	Previews  *upload.PreviewStore
	CreatedAt time.Time

	unsubscribe func()
}

// MeetingID is the resolved meeting, "" when unresolved.
func (p *Panel) MeetingID() string { return p.Meetings.MeetingID() }

type frame struct {
	Type     string          `json:"type"`
	Event    panel.Event     `json:"event,omitempty"`
	Snapshot *panel.Snapshot `json:"snapshot,omitempty"`
	Body     string          `json:"body,omitempty"`
	Kind     media.Kind      `json:"kind,omitempty"`
}

// Build creates a panel for the meeting that meetings resolves to.
func (b *Builder) Build(meetings panel.MeetingResolver) *Panel {
	p := &Panel{
		ID:        uuid.New().String(),
		Meetings:  meetings,
		Previews:  upload.NewPreviewStore(b.PreviewMaxEdge, upload.WithMaxPixels(b.PreviewMaxPixels)),
		CreatedAt: time.Now(),
	}
	log := b.Log.WithFields(logrus.Fields{"panel_id": p.ID, "meeting_id": meetings.MeetingID()})

	opts := []panel.Option{
		panel.WithLogger(log),
		panel.WithPolls(b.PollsEnabled),
		panel.WithUploadErrorsInChat(b.UploadErrorsInChat),
		panel.WithPageSize(b.PageSize),
	}
	if b.Metrics != nil {
		opts = append(opts, panel.WithMetrics(b.Metrics))
		b.Metrics.PanelOpened()
	}

	sink := &hubSink{panelID: p.ID, meetings: meetings, archive: b.Archive, hub: b.Hub, log: log}
	p.Ctrl = panel.New(panel.Deps{
		Meetings: meetings,
		Sink:     sink,
		Posters:  b.Posters,
		Previews: p.Previews,
		Uploader: b.Uploader,
	}, opts...)

	p.unsubscribe = p.Ctrl.Subscribe(func(ev panel.Event) {
		if b.Hub.Subscribers(p.ID) == 0 {
			return
		}
		snap := p.Ctrl.Snapshot()
		data, err := json.Marshal(frame{Type: "snapshot", Event: ev, Snapshot: &snap})
		if err != nil {
			log.WithError(err).Error("encode snapshot frame")
			return
		}
		b.Hub.Broadcast(p.ID, data)
	})
	return p
}

// hubSink archives an outbound body, then pushes it to the panel's
// websocket subscribers.
type hubSink struct {
	panelID  string
	meetings panel.MeetingResolver
	archive  Archive
	hub      *ws.Hub
	log      logrus.FieldLogger
}

func (s *hubSink) Dispatch(ctx context.Context, body, mimeType string) error {
	kind := media.Classify(body, mimeType)
	if s.archive != nil {
		_, err := s.archive.SaveMessage(ctx, models.ArchivedMessage{
			MeetingID: s.meetings.MeetingID(),
			Body:      body,
			Kind:      string(kind),
			SentAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	data, err := json.Marshal(frame{Type: "outbound", Body: body, Kind: kind})
	if err != nil {
		return err
	}
	n := s.hub.Broadcast(s.panelID, data)
	s.log.WithFields(logrus.Fields{"kind": kind, "subscribers": n}).Debug("message dispatched")
	return nil
}

// Registry owns the live panels.
type Registry struct {
	mu      sync.RWMutex
	panels  map[string]*Panel
	builder *Builder
}

func NewRegistry(b *Builder) *Registry {
	if b.Log == nil {
		b.Log = logger.Discard()
	}
	if b.Hub == nil {
		b.Hub = ws.NewHub(b.Log)
	}
	return &Registry{panels: make(map[string]*Panel), builder: b}
}

// Create builds and registers a panel.
func (r *Registry) Create(meetings panel.MeetingResolver) *Panel {
	p := r.builder.Build(meetings)
	r.mu.Lock()
	r.panels[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *Registry) Get(id string) (*Panel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[id]
	return p, ok
}

// List returns the live panels, oldest first.
func (r *Registry) List() []*Panel {
	r.mu.RLock()
	out := make([]*Panel, 0, len(r.panels))
	for _, p := range r.panels {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Remove tears a panel down. It reports false for an unknown id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	p, ok := r.panels[id]
	delete(r.panels, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.teardown(p)
	return true
}

// Shutdown tears every panel down.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	panels := r.panels
	r.panels = make(map[string]*Panel)
	r.mu.Unlock()
	for _, p := range panels {
		r.teardown(p)
	}
}

func (r *Registry) teardown(p *Panel) {
	p.unsubscribe()
	p.Ctrl.Shutdown()
	r.builder.Hub.ClosePanel(p.ID)
	if r.builder.Metrics != nil {
		r.builder.Metrics.PanelClosed()
	}
}

package posters

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"meetpanel/internal/models"
	"meetpanel/internal/pkg/logger"
)

// ErrDiscarded is returned by Fetch when its result was dropped, either
// because a newer request started or because the caller no longer cares.
var ErrDiscarded = errors.New("poster fetch result discarded")

// Status of a posters session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusError   Status = "error"
)

// ErrorKind tells apart the failures a posters tab can show.
type ErrorKind string

const (
	ErrorNone         ErrorKind = ""
	ErrorUnauthorized ErrorKind = "unauthorized"
	ErrorFetch        ErrorKind = "fetch"
	ErrorEmpty        ErrorKind = "empty"
)

// User-facing messages.
const (
	MessageUnauthorized = "Unauthorized access"
	MessageFetch        = "Failed to load posters"
	MessageEmpty        = "No posters available"
)

// DefaultPageSize is used when the session is built with a non-positive size.
const DefaultPageSize = 12

// MeetingResolver yields the current meeting id, or "" when unresolved.
type MeetingResolver interface {
	MeetingID() string
}

// State is a snapshot of the pagination session.
type State struct {
	CurrentPage  int                 `json:"current_page"`
	TotalPages   int                 `json:"total_pages"`
	Items        []models.PosterDeck `json:"items"`
	Status       Status              `json:"status"`
	ErrorKind    ErrorKind           `json:"error_kind,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Generation   uint64              `json:"generation"`
}

// CanLoadMore reports whether another page exists and nothing is loading.
func (s State) CanLoadMore() bool {
	return s.Status == StatusLoaded && s.CurrentPage < s.TotalPages
}

// Option configures a Session.
type Option func(*Session)

// WithGuard makes the session drop results when guard reports false at
// completion time.
func WithGuard(guard func() bool) Option {
	return func(s *Session) { s.guard = guard }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

// Session tracks the pages loaded for one visit of the posters tab. Every
// request is tagged with a generation; only the newest one may change state.
type Session struct {
	fetcher  Fetcher
	meetings MeetingResolver
	pageSize int
	guard    func() bool
	log      logrus.FieldLogger

	mu         sync.Mutex
	state      State
	gen        uint64
	cancel     context.CancelFunc
	failedPage int
	loadedOnce bool
}

// NewSession returns an idle session.
func NewSession(fetcher Fetcher, meetings MeetingResolver, pageSize int, opts ...Option) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Session{
		fetcher:  fetcher,
		meetings: meetings,
		pageSize: pageSize,
		log:      logger.Discard(),
		state:    State{Status: StatusIdle, CurrentPage: 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset starts a new session: cached items are dropped, the page cursor goes
// back to 1 and any in-flight request is cancelled and ignored.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	s.state = State{Status: StatusIdle, CurrentPage: 1, Generation: s.gen}
	s.failedPage = 0
	s.loadedOnce = false
}

// Abandon cancels the in-flight request, if any. A loading session with no
// page applied goes back to idle so the next visit issues a fresh request.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	s.state.Generation = s.gen
	if s.state.Status == StatusLoading {
		s.settleLocked()
	}
}

// settleLocked ends a dropped request. Pages already applied stay visible.
func (s *Session) settleLocked() {
	if s.loadedOnce {
		s.state.Status = StatusLoaded
		return
	}
	s.state.Status = StatusIdle
}

func (s *Session) invalidateLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Loaded reports whether a fetch succeeded during this session.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedOnce
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Items = append([]models.PosterDeck(nil), s.state.Items...)
	return st
}

// Fetch loads page. Page 1 replaces the cached items, later pages append.
// The returned error mirrors the state the session ended in; ErrDiscarded
// means the state was left to a newer request.
func (s *Session) Fetch(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	gen, ctx, cancel := s.beginLocked(ctx)
	s.mu.Unlock()
	return s.run(ctx, cancel, gen, page)
}

// beginLocked supersedes any in-flight request and marks the session loading.
// Callers decide whether to start and call it under the same hold of s.mu,
// so one page has at most one request in flight.
func (s *Session) beginLocked(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	s.invalidateLocked()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Status = StatusLoading
	s.state.ErrorKind = ErrorNone
	s.state.ErrorMessage = ""
	s.state.Generation = s.gen
	return s.gen, ctx, cancel
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, page int) error {
	defer cancel()
	log := s.log.WithFields(logrus.Fields{"page": page, "generation": gen})

	meetingID := ""
	if s.meetings != nil {
		meetingID = s.meetings.MeetingID()
	}

	var (
		result Page
		err    error
	)
	if meetingID == "" {
		err = models.ErrUnauthorized
	} else {
		result, err = s.fetcher.Fetch(ctx, meetingID, page, s.pageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		log.Debug("stale poster response dropped")
		return ErrDiscarded
	}
	s.cancel = nil
	if s.guard != nil && !s.guard() {
		s.settleLocked()
		log.Debug("poster response no longer relevant")
		return ErrDiscarded
	}

	if err != nil {
		s.applyErrorLocked(page, err)
		log.WithError(err).WithField("meeting_id", meetingID).Warn("poster fetch failed")
		return err
	}
	return s.applyPageLocked(page, result, log)
}

func (s *Session) applyErrorLocked(page int, err error) {
	s.failedPage = page
	kind, msg := ErrorFetch, MessageFetch
	if errors.Is(err, models.ErrUnauthorized) {
		kind, msg = ErrorUnauthorized, MessageUnauthorized
	}
	s.state.ErrorKind = kind
	s.state.ErrorMessage = msg

	if page == 1 {
		s.state.Status = StatusError
		s.state.Items = nil
		s.state.CurrentPage = 1
		s.state.TotalPages = 0
		return
	}
	// A failed "load more" keeps the pages already shown.
	s.state.Status = StatusLoaded
}

func (s *Session) applyPageLocked(page int, result Page, log logrus.FieldLogger) error {
	s.failedPage = 0

	if page == 1 {
		if len(result.Items) == 0 {
			s.state.Status = StatusError
			s.state.ErrorKind = ErrorEmpty
			s.state.ErrorMessage = MessageEmpty
			s.state.Items = nil
			s.state.CurrentPage = 1
			s.state.TotalPages = 0
			s.failedPage = 1
			log.Info("no posters available")
			return models.ErrEmptyResult
		}
		s.state.Items = withLinks(nil, result.Items)
	} else {
		s.state.Items = withLinks(s.state.Items, result.Items)
	}

	total := max(result.TotalPages, page)
	if page > 1 && len(result.Items) == 0 {
		total = page
	}
	s.state.CurrentPage = page
	s.state.TotalPages = total
	s.state.Status = StatusLoaded
	s.loadedOnce = true

	log.WithFields(logrus.Fields{"items": len(result.Items), "total_pages": total}).Debug("poster page applied")
	return nil
}

// withLinks appends items to dst, filling in the fallback deck link.
func withLinks(dst, items []models.PosterDeck) []models.PosterDeck {
	for _, d := range items {
		d.Link = d.DeckLink()
		dst = append(dst, d)
	}
	return dst
}

// LoadMore fetches the next page. It is a no-op returning false while a
// request is loading or when the last page is already shown.
func (s *Session) LoadMore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.state.CanLoadMore() {
		s.mu.Unlock()
		return false, nil
	}
	page := s.state.CurrentPage + 1
	gen, ctx, cancel := s.beginLocked(ctx)
	s.mu.Unlock()
	return true, s.run(ctx, cancel, gen, page)
}

// Retry re-issues the page that failed last. It returns false when there is
// nothing to retry.
func (s *Session) Retry(ctx context.Context) (bool, error) {
	s.mu.Lock()
	page := s.failedPage
	if page == 0 || s.state.Status == StatusLoading {
		s.mu.Unlock()
		return false, nil
	}
	gen, ctx, cancel := s.beginLocked(ctx)
	s.mu.Unlock()
	return true, s.run(ctx, cancel, gen, page)
}

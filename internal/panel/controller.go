// Package panel holds the side-panel controller of a meeting: the tab state
// machine that ties chat messages, poster pagination and file uploads
// together.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"meetpanel/internal/models"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/upload"
	"meetpanel/internal/pkg/logger"
)

// Deps are the collaborators of a Controller. Layout may be nil.
type Deps struct {
	Meetings MeetingResolver
	Layout   LayoutRecomputer
	Sink     MessageSink
	Posters  posters.Fetcher
	Previews upload.Previewer
	Uploader upload.Uploader
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithPolls enables or disables the polls tab.
func WithPolls(enabled bool) Option {
	return func(c *Controller) { c.pollsEnabled = enabled }
}

// WithUploadErrorsInChat controls whether upload failures are dispatched as
// chat messages.
func WithUploadErrorsInChat(enabled bool) Option {
	return func(c *Controller) { c.uploadErrorsInChat = enabled }
}

// WithPageSize sets the poster page size.
func WithPageSize(n int) Option {
	return func(c *Controller) { c.pageSize = n }
}

// Controller is the state of one meeting side panel.
type Controller struct {
	meetings           MeetingResolver
	layout             LayoutRecomputer
	sink               MessageSink
	log                logrus.FieldLogger
	metrics            Metrics
	pollsEnabled       bool
	uploadErrorsInChat bool
	pageSize           int

	posters *posters.Session
	uploads *upload.Pipeline

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	open           bool
	tab            Tab
	unreadMessages int
	unreadPolls    int
	messages       []*models.Message
	byID           map[string]*models.Message
	shutdown       bool

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

// New returns a closed panel showing the chat tab.
func New(deps Deps, opts ...Option) *Controller {
	c := &Controller{
		meetings:           deps.Meetings,
		layout:             deps.Layout,
		sink:               deps.Sink,
		log:                logger.Discard(),
		metrics:            noopMetrics{},
		pollsEnabled:       true,
		uploadErrorsInChat: true,
		pageSize:           posters.DefaultPageSize,
		tab:                TabChat,
		byID:               make(map[string]*models.Message),
		observers:          make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.layout == nil {
		c.layout = noopLayout{}
	}
	c.bg, c.cancel = context.WithCancel(context.Background())

	c.posters = posters.NewSession(deps.Posters, deps.Meetings, c.pageSize,
		posters.WithGuard(c.postersRelevant),
		posters.WithSessionLogger(c.log.WithField("component", "posters")),
	)
	c.uploads = upload.NewPipeline(deps.Previews, deps.Uploader,
		upload.WithLogger(c.log.WithField("component", "upload")),
		upload.WithPhaseHook(func(upload.Phase) { c.notify(EventUpload) }),
	)
	return c
}

// postersRelevant is consulted by the posters session when a response
// arrives. It must not call back into the session.
func (c *Controller) postersRelevant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.tab == TabPosters && !c.shutdown
}

// SetActiveTab switches tabs and zeroes the counter of the entered tab.
// Entering posters from another tab starts a new posters session.
func (c *Controller) SetActiveTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidTab, string(tab))
	}
	if tab == TabPolls && !c.pollsEnabled {
		return models.ErrPollsDisabled
	}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	prev := c.tab
	c.tab = tab
	c.zeroUnreadLocked(tab)
	open := c.open
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"from": prev, "to": tab}).Debug("tab selected")

	switch {
	case tab == TabPosters && prev != TabPosters:
		c.posters.Reset()
		if open {
			c.fetchPosters(1)
		}
	case tab == TabPosters:
		st := c.posters.State()
		if open && !c.posters.Loaded() && st.Status != posters.StatusLoading {
			c.fetchPosters(1)
		}
	case prev == TabPosters:
		c.posters.Abandon()
	}

	c.notify(EventTab)
	return nil
}

// ActiveTab returns the selected tab.
func (c *Controller) ActiveTab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// Toggle flips visibility.
func (c *Controller) Toggle() {
	c.mu.Lock()
	open := !c.open
	c.mu.Unlock()
	c.setOpen(open)
}

// Open shows the panel. It does nothing when already open.
func (c *Controller) Open() { c.setOpen(true) }

// Close hides the panel. Messages, posters and the upload keep their state.
func (c *Controller) Close() { c.setOpen(false) }

// IsOpen reports visibility.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) setOpen(open bool) {
	c.mu.Lock()
	if c.shutdown || c.open == open {
		c.mu.Unlock()
		return
	}
	c.open = open
	tab := c.tab
	if open {
		c.zeroUnreadLocked(tab)
	}
	c.mu.Unlock()

	c.layout.Recompute()
	c.log.WithFields(logrus.Fields{"open": open, "tab": tab}).Debug("panel visibility changed")

	if tab == TabPosters {
		if open {
			if !c.posters.Loaded() {
				c.fetchPosters(1)
			}
		} else {
			c.posters.Abandon()
		}
	}
	c.notify(EventVisibility)
}

func (c *Controller) zeroUnreadLocked(tab Tab) {
	switch tab {
	case TabChat:
		c.unreadMessages = 0
	case TabPolls:
		c.unreadPolls = 0
	}
}

// fetchPosters runs a page fetch in the background.
func (c *Controller) fetchPosters(page int) {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		err := c.posters.Fetch(c.bg, page)
		c.recordFetch(err)
		c.notify(EventPosters)
	}()
	c.notify(EventPosters)
}

func (c *Controller) recordFetch(err error) {
	switch {
	case err == nil:
		c.metrics.PosterFetch("loaded")
	case errors.Is(err, posters.ErrDiscarded):
		c.metrics.PosterFetch("discarded")
	case errors.Is(err, models.ErrUnauthorized):
		c.metrics.PosterFetch("unauthorized")
	case errors.Is(err, models.ErrEmptyResult):
		c.metrics.PosterFetch("empty")
	default:
		c.metrics.PosterFetch("error")
	}
}

// LoadMorePosters fetches the next poster page on the caller's goroutine.
// It reports false when there was nothing to load.
func (c *Controller) LoadMorePosters(ctx context.Context) (bool, error) {
	if !c.postersRelevant() {
		return false, nil
	}
	started, err := c.posters.LoadMore(ctx)
	if started {
		c.recordFetch(err)
		c.notify(EventPosters)
	}
	return started, err
}

// RetryPosters re-issues the poster page that failed last.
func (c *Controller) RetryPosters(ctx context.Context) (bool, error) {
	if !c.postersRelevant() {
		return false, nil
	}
	started, err := c.posters.Retry(ctx)
	if started {
		c.recordFetch(err)
		c.notify(EventPosters)
	}
	return started, err
}

// ReceiveMessage appends msg. A message whose id is already known is ignored.
func (c *Controller) ReceiveMessage(msg models.Message) {
	c.mu.Lock()
	if _, dup := c.byID[msg.ID]; dup || msg.ID == "" {
		c.mu.Unlock()
		return
	}
	m := msg
	m.Reactions = msg.Reactions.Clone()
	c.messages = append(c.messages, &m)
	c.byID[m.ID] = &m
	if !(c.open && c.tab == TabChat) {
		c.unreadMessages++
	}
	c.mu.Unlock()

	c.notify(EventMessage)
}

// ApplyReaction adds or retracts participantID's reaction on a message.
func (c *Controller) ApplyReaction(messageID, symbol, participantID string, add bool) error {
	c.mu.Lock()
	m, ok := c.byID[messageID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrMessageNotFound, messageID)
	}
	var changed bool
	if add {
		changed = m.Reactions.Add(symbol, participantID)
	} else {
		changed = m.Reactions.Remove(symbol, participantID)
	}
	c.mu.Unlock()

	if changed {
		c.notify(EventReaction)
	}
	return nil
}

// NotePollActivity counts poll activity while the polls tab is not in view.
func (c *Controller) NotePollActivity() {
	if !c.pollsEnabled {
		return
	}
	c.mu.Lock()
	if c.open && c.tab == TabPolls {
		c.mu.Unlock()
		return
	}
	c.unreadPolls++
	c.mu.Unlock()

	c.notify(EventPolls)
}

// SendText dispatches trimmed text. Blank input is ignored.
func (c *Controller) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := c.sink.Dispatch(ctx, text, ""); err != nil {
		return fmt.Errorf("dispatch text: %w", err)
	}
	c.metrics.Dispatch("text")
	return nil
}

// SelectFile hands a picked file to the upload pipeline.
func (c *Controller) SelectFile(f upload.File) (upload.Handle, error) {
	return c.uploads.SelectFile(f)
}

// SendFile uploads the selected file and dispatches the resulting URL.
func (c *Controller) SendFile(ctx context.Context) (upload.Outcome, error) {
	out, err := c.uploads.Send(ctx)
	if err != nil {
		return out, err
	}
	return out, c.afterUpload(ctx, out)
}

// RetryUpload re-sends a failed upload.
func (c *Controller) RetryUpload(ctx context.Context) (upload.Outcome, error) {
	out, err := c.uploads.Retry(ctx)
	if err != nil {
		return out, err
	}
	return out, c.afterUpload(ctx, out)
}

// DiscardFile drops the selected file.
func (c *Controller) DiscardFile() error {
	return c.uploads.Discard()
}

func (c *Controller) afterUpload(ctx context.Context, out upload.Outcome) error {
	if out.OK() {
		c.metrics.Upload("success")
		if err := c.sink.Dispatch(ctx, out.URL, out.MIMEType); err != nil {
			return fmt.Errorf("dispatch upload: %w", err)
		}
		c.metrics.Dispatch("media")
		return nil
	}

	c.metrics.Upload("failure")
	if !c.uploadErrorsInChat {
		return nil
	}
	if err := c.sink.Dispatch(ctx, out.Failure, ""); err != nil {
		return fmt.Errorf("dispatch upload failure: %w", err)
	}
	c.metrics.Dispatch("upload_error")
	return nil
}

// Subscribe registers fn for state change events. Observers run on the
// goroutine that made the change and must not block.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Controller) notify(ev Event) {
	c.obsMu.Lock()
	fns := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Wait blocks until background poster fetches have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Shutdown cancels background work, releases the preview handle and waits
// for in-flight fetches. The controller ignores input afterwards.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	c.mu.Unlock()

	c.cancel()
	c.posters.Abandon()
	c.uploads.Close()
	c.wg.Wait()
}

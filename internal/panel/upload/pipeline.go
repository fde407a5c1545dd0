// Package upload runs the local file flow of the chat input: pick a file,
// show a preview, upload it and hand the resulting URL to the caller.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"meetpanel/internal/models"
	"meetpanel/internal/pkg/logger"
)

// ErrClosed is returned once the pipeline has been torn down.
var ErrClosed = errors.New("upload pipeline closed")

// Phase is the pipeline state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePreviewing Phase = "previewing"
	PhaseUploading  Phase = "uploading"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// File is a picked local file.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Outcome is the terminal output of one upload attempt. Exactly one of URL
// and Failure is set.
type Outcome struct {
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

// OK reports whether the upload produced a URL.
func (o Outcome) OK() bool { return o.URL != "" }

// State is a snapshot of the pipeline.
type State struct {
	Phase     Phase  `json:"phase"`
	FileName  string `json:"file_name,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	Size      int    `json:"size,omitempty"`
	Preview   Handle `json:"preview,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the send timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the pipeline logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithPhaseHook registers fn to be called after every phase change.
func WithPhaseHook(fn func(Phase)) Option {
	return func(p *Pipeline) { p.onPhase = fn }
}

// Pipeline owns at most one selected file and its preview handle.
type Pipeline struct {
	previews Previewer
	uploader Uploader
	now      func() time.Time
	log      logrus.FieldLogger
	onPhase  func(Phase)
	inflight *semaphore.Weighted

	mu      sync.Mutex
	phase   Phase
	file    *File
	preview Handle
	lastErr string
	closed  bool
}

// NewPipeline returns an idle pipeline.
func NewPipeline(previews Previewer, uploader Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		previews: previews,
		uploader: uploader,
		now:      time.Now,
		log:      logger.Discard(),
		inflight: semaphore.NewWeighted(1),
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SelectFile replaces the current selection. The previous preview handle is
// released before the new one is created.
func (p *Pipeline) SelectFile(f File) (Handle, error) {
	if f.MIMEType == "" && len(f.Data) > 0 {
		f.MIMEType = baseMIME(mimetype.Detect(f.Data).String())
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	if p.phase == PhaseUploading {
		p.mu.Unlock()
		return "", models.ErrBusy
	}
	p.releaseLocked()
	p.file = nil
	p.lastErr = ""

	h, err := p.previews.Create(f)
	if err != nil {
		changed := p.setPhaseLocked(PhaseIdle)
		p.mu.Unlock()
		p.firePhase(changed)
		return "", fmt.Errorf("create preview: %w", err)
	}
	p.file = &f
	p.preview = h
	changed := p.setPhaseLocked(PhasePreviewing)
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{"file": f.Name, "mime": f.MIMEType, "size": len(f.Data)}).Debug("file selected")
	p.firePhase(changed)
	return h, nil
}

// Send uploads the previewed file. It returns models.ErrBusy while another
// upload is in flight and ErrNotPreviewing when nothing is selected. Upload
// failures are reported through Outcome.Failure, not as an error.
func (p *Pipeline) Send(ctx context.Context) (Outcome, error) {
	return p.start(ctx, PhasePreviewing)
}

// Retry re-sends the file of a failed upload.
func (p *Pipeline) Retry(ctx context.Context) (Outcome, error) {
	return p.start(ctx, PhaseFailed)
}

func (p *Pipeline) start(ctx context.Context, from Phase) (Outcome, error) {
	if !p.inflight.TryAcquire(1) {
		return Outcome{}, models.ErrBusy
	}
	defer p.inflight.Release(1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if p.phase != from || p.file == nil {
		p.mu.Unlock()
		return Outcome{}, models.ErrNotPreviewing
	}
	f := *p.file
	changed := p.setPhaseLocked(PhaseUploading)
	p.mu.Unlock()
	p.firePhase(changed)

	url, err := p.uploader.Upload(ctx, f, p.now())
	if err != nil {
		return p.fail(f, err), nil
	}
	return p.succeed(f, url), nil
}

func (p *Pipeline) fail(f File, err error) Outcome {
	msg := err.Error()
	var uerr *Error
	if errors.As(err, &uerr) && uerr.Message != "" {
		msg = uerr.Message
	}

	p.mu.Lock()
	var changed []Phase
	if !p.closed {
		p.lastErr = msg
		changed = p.setPhaseLocked(PhaseFailed)
	}
	p.mu.Unlock()

	p.log.WithError(err).WithField("file", f.Name).Warn("file upload failed")
	p.firePhase(changed)
	return Outcome{Failure: msg}
}

func (p *Pipeline) succeed(f File, url string) Outcome {
	p.mu.Lock()
	var changed []Phase
	if !p.closed {
		p.releaseLocked()
		p.file = nil
		changed = append(changed, p.setPhaseLocked(PhaseSucceeded)...)
		changed = append(changed, p.setPhaseLocked(PhaseIdle)...)
	}
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{"file": f.Name, "url": url}).Info("file uploaded")
	p.firePhase(changed)
	return Outcome{URL: url, MIMEType: f.MIMEType}
}

// Discard drops the selection and its preview.
func (p *Pipeline) Discard() error {
	p.mu.Lock()
	if p.phase == PhaseUploading {
		p.mu.Unlock()
		return models.ErrBusy
	}
	p.releaseLocked()
	p.file = nil
	p.lastErr = ""
	changed := p.setPhaseLocked(PhaseIdle)
	p.mu.Unlock()

	p.firePhase(changed)
	return nil
}

// Close releases the preview handle. An upload still in flight finishes but
// its result no longer changes the pipeline.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.releaseLocked()
	p.file = nil
	p.closed = true
	changed := p.setPhaseLocked(PhaseIdle)
	p.mu.Unlock()

	p.firePhase(changed)
}

// State returns a snapshot.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := State{Phase: p.phase, Preview: p.preview, LastError: p.lastErr}
	if p.file != nil {
		s.FileName = p.file.Name
		s.MIMEType = p.file.MIMEType
		s.Size = len(p.file.Data)
	}
	return s
}

func (p *Pipeline) releaseLocked() {
	if p.preview == "" {
		return
	}
	if err := p.previews.Release(p.preview); err != nil {
		p.log.WithError(err).WithField("preview", p.preview).Error("release preview")
	}
	p.preview = ""
}

func (p *Pipeline) setPhaseLocked(next Phase) []Phase {
	if p.phase == next {
		return nil
	}
	p.phase = next
	return []Phase{next}
}

func (p *Pipeline) firePhase(phases []Phase) {
	if p.onPhase == nil {
		return
	}
	for _, ph := range phases {
		p.onPhase(ph)
	}
}

func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// ErrUnknownHandle is returned when releasing a handle that is not live.
var ErrUnknownHandle = errors.New("unknown preview handle")

// Handle is a locally valid reference to a not yet uploaded file.
type Handle string

// Previewer creates and releases preview handles. Every handle returned by
// Create must be passed to Release exactly once.
type Previewer interface {
	Create(f File) (Handle, error)
	Release(h Handle) error
}

// Preview is the renderable payload behind a handle.
type Preview struct {
	MIMEType string
	Data     []byte
}

// ErrTooManyPixels is returned when an image header declares more pixels
// than the store will decode.
var ErrTooManyPixels = errors.New("image too large to preview")

// DefaultMaxPixels caps the decoded size of a previewed image (about 40 MP).
const DefaultMaxPixels = 40_000_000

// PreviewOption configures a PreviewStore.
type PreviewOption func(*PreviewStore)

// WithMaxPixels sets the largest width*height the store decodes into a
// thumbnail. Larger images keep their raw payload.
func WithMaxPixels(n int64) PreviewOption {
	return func(s *PreviewStore) {
		if n > 0 {
			s.maxPixels = n
		}
	}
}

// PreviewStore keeps previews in memory. Images are shrunk to thumbnails so
// a large photo does not sit in memory at full size until it is sent.
type PreviewStore struct {
	maxEdge   uint
	maxPixels int64

	mu       sync.RWMutex
	entries  map[Handle]Preview
	created  int
	released int
}

// NewPreviewStore returns a store producing thumbnails no larger than maxEdge
// pixels on either side.
func NewPreviewStore(maxEdge uint, opts ...PreviewOption) *PreviewStore {
	s := &PreviewStore{
		maxEdge:   maxEdge,
		maxPixels: DefaultMaxPixels,
		entries:   make(map[Handle]Preview),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a preview for f.
func (s *PreviewStore) Create(f File) (Handle, error) {
	p := Preview{MIMEType: f.MIMEType, Data: f.Data}
	if strings.HasPrefix(f.MIMEType, "image/") {
		if thumb, err := s.thumbnail(f.Data); err == nil {
			p = Preview{MIMEType: "image/jpeg", Data: thumb}
		}
	}

	h := Handle("blob:" + uuid.New().String())
	s.mu.Lock()
	s.entries[h] = p
	s.created++
	s.mu.Unlock()
	return h, nil
}

func (s *PreviewStore) thumbnail(data []byte) ([]byte, error) {
	// Decoders allocate the pixel buffer from the header alone.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := resize.Thumbnail(s.maxEdge, s.maxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Release drops the preview behind h.
func (s *PreviewStore) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[h]; !ok {
		return fmt.Errorf("release %s: %w", h, ErrUnknownHandle)
	}
	delete(s.entries, h)
	s.released++
	return nil
}

// Get returns the preview behind h.
func (s *PreviewStore) Get(h Handle) (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[h]
	return p, ok
}

// Stats reports how many handles were created and released so far.
func (s *PreviewStore) Stats() (created, released int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, s.released
}

// Live is the number of handles not yet released.
func (s *PreviewStore) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

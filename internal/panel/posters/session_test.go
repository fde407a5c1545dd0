package posters

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpanel/internal/models"
)

type staticMeeting string

func (s staticMeeting) MeetingID() string { return string(s) }

type fakeFetcher struct {
	mu     sync.Mutex
	calls  atomic.Int32
	pages  map[int]Page
	errs   map[int]error
	gate   chan struct{}
	called chan int
	seen   []int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[int]Page{}, errs: map[int]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, meetingID string, page, pageSize int) (Page, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, page)
	gate := f.gate
	p, err := f.pages[page], f.errs[page]
	f.mu.Unlock()
	if f.called != nil {
		f.called <- page
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page{}, &FetchError{Err: ctx.Err()}
		}
	}
	return p, err
}

func decks(ids ...int) []models.PosterDeck {
	out := make([]models.PosterDeck, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.PosterDeck{ID: fmt.Sprint(id), Link: fmt.Sprint("/event/poster/", id)})
	}
	return out
}

func TestSessionLoadsAndAppendsPages(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1, 2), TotalPages: 2}
	f.pages[2] = Page{Items: decks(3), TotalPages: 2}
	s := NewSession(f, staticMeeting("m1"), 2)

	require.NoError(t, s.Fetch(context.Background(), 1))
	st := s.State()
	assert.Equal(t, StatusLoaded, st.Status)
	assert.True(t, st.CanLoadMore())

	started, err := s.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, started)

	st = s.State()
	assert.Equal(t, 2, st.CurrentPage)
	assert.Equal(t, decks(1, 2, 3), st.Items)

	started, err = s.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestSessionZeroTotalPagesTreatedAsOne(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1)}
	s := NewSession(f, staticMeeting("m1"), 12)

	require.NoError(t, s.Fetch(context.Background(), 1))
	assert.Equal(t, 1, s.State().TotalPages)
	assert.False(t, s.State().CanLoadMore())
}

func TestSessionEmptyFirstPage(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: []models.PosterDeck{}, TotalPages: 1}
	s := NewSession(f, staticMeeting("m1"), 12)

	err := s.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrEmptyResult)

	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, ErrorEmpty, st.ErrorKind)
	assert.Equal(t, MessageEmpty, st.ErrorMessage)
	assert.Empty(t, st.Items)
}

func TestSessionUnresolvedMeetingNeverFetches(t *testing.T) {
	f := newFakeFetcher()
	s := NewSession(f, staticMeeting(""), 12)

	err := s.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Zero(t, f.calls.Load())

	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, MessageUnauthorized, st.ErrorMessage)
}

func TestSessionFetchErrorThenRetry(t *testing.T) {
	f := newFakeFetcher()
	f.errs[1] = &FetchError{Status: 503}
	s := NewSession(f, staticMeeting("m1"), 12)

	assert.ErrorIs(t, s.Fetch(context.Background(), 1), models.ErrFetch)
	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, MessageFetch, st.ErrorMessage)
	assert.Empty(t, st.Items)
	assert.Equal(t, int32(1), f.calls.Load())

	f.mu.Lock()
	delete(f.errs, 1)
	f.pages[1] = Page{Items: decks(1), TotalPages: 1}
	f.mu.Unlock()

	retried, err := s.Retry(context.Background())
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, StatusLoaded, s.State().Status)

	retried, _ = s.Retry(context.Background())
	assert.False(t, retried)
}

func TestSessionLoadMoreFailureKeepsItems(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1), TotalPages: 2}
	f.errs[2] = &FetchError{Status: 500}
	s := NewSession(f, staticMeeting("m1"), 1)

	require.NoError(t, s.Fetch(context.Background(), 1))
	_, err := s.LoadMore(context.Background())
	assert.ErrorIs(t, err, models.ErrFetch)

	st := s.State()
	assert.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, decks(1), st.Items)
	assert.Equal(t, MessageFetch, st.ErrorMessage)
	assert.Equal(t, 1, st.CurrentPage)

	f.mu.Lock()
	delete(f.errs, 2)
	f.pages[2] = Page{Items: decks(2), TotalPages: 2}
	f.mu.Unlock()

	retried, err := s.Retry(context.Background())
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, decks(1, 2), s.State().Items)
	assert.Equal(t, []int{1, 2, 2}, f.seen)
}

func TestSessionLoadMoreWhileLoadingIsNoop(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1), TotalPages: 3}
	f.gate = make(chan struct{})
	f.called = make(chan int, 4)
	s := NewSession(f, staticMeeting("m1"), 1)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), 1) }()
	<-f.called

	started, err := s.LoadMore(context.Background())
	assert.NoError(t, err)
	assert.False(t, started)

	close(f.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSessionStaleResponseIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1), TotalPages: 1}
	f.gate = make(chan struct{})
	f.called = make(chan int, 4)
	s := NewSession(f, staticMeeting("m1"), 12)

	first := make(chan error, 1)
	go func() { first <- s.Fetch(context.Background(), 1) }()
	<-f.called

	// A reset supersedes the request; the older context is cancelled.
	s.Reset()
	assert.ErrorIs(t, <-first, ErrDiscarded)

	st := s.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Empty(t, st.Items)
	assert.Equal(t, 1, st.CurrentPage)
}

func TestSessionNewerFetchWins(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1, 2), TotalPages: 1}
	f.gate = make(chan struct{})
	f.called = make(chan int, 4)
	s := NewSession(f, staticMeeting("m1"), 12)

	first := make(chan error, 1)
	go func() { first <- s.Fetch(context.Background(), 1) }()
	<-f.called
	older := s.State().Generation

	second := make(chan error, 1)
	go func() { second <- s.Fetch(context.Background(), 1) }()
	<-f.called

	assert.ErrorIs(t, <-first, ErrDiscarded)
	close(f.gate)
	require.NoError(t, <-second)

	st := s.State()
	assert.Greater(t, st.Generation, older)
	assert.Equal(t, decks(1, 2), st.Items)
}

func TestSessionGuardDiscardsIrrelevantResult(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1), TotalPages: 1}
	relevant := false
	s := NewSession(f, staticMeeting("m1"), 12, WithGuard(func() bool { return relevant }))

	assert.ErrorIs(t, s.Fetch(context.Background(), 1), ErrDiscarded)
	assert.Equal(t, StatusIdle, s.State().Status)
	assert.False(t, s.Loaded())

	relevant = true
	require.NoError(t, s.Fetch(context.Background(), 1))
	assert.True(t, s.Loaded())
}

func TestSessionAbandonReturnsToIdle(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	f.called = make(chan int, 1)
	s := NewSession(f, staticMeeting("m1"), 12)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background(), 1) }()
	<-f.called

	s.Abandon()
	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Equal(t, StatusIdle, s.State().Status)
}

func TestSessionAbandonedLoadMoreKeepsPages(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: decks(1), TotalPages: 2}
	f.pages[2] = Page{Items: decks(2), TotalPages: 2}
	s := NewSession(f, staticMeeting("m1"), 1)
	require.NoError(t, s.Fetch(context.Background(), 1))

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
	f.called = make(chan int, 1)

	done := make(chan error, 1)
	go func() {
		_, err := s.LoadMore(context.Background())
		done <- err
	}()
	assert.Equal(t, 2, <-f.called)

	s.Abandon()
	assert.ErrorIs(t, <-done, ErrDiscarded)

	st := s.State()
	assert.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, decks(1), st.Items)
	assert.True(t, st.CanLoadMore())
}

func TestSessionConcurrentLoadMoreRequestsPageOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFakeFetcher()
		f.pages[1] = Page{Items: decks(1), TotalPages: 2}
		f.pages[2] = Page{Items: decks(2), TotalPages: 2}
		s := NewSession(f, staticMeeting("m1"), 1)
		require.NoError(t, s.Fetch(context.Background(), 1))

		f.mu.Lock()
		f.gate = make(chan struct{})
		f.mu.Unlock()

		const callers = 8
		var (
			wg      sync.WaitGroup
			started atomic.Int32
		)
		ready := make(chan struct{})
		for j := 0; j < callers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-ready
				ok, err := s.LoadMore(context.Background())
				assert.NoError(t, err)
				if ok {
					started.Add(1)
				}
			}()
		}
		close(ready)
		require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)
		f.mu.Lock()
		close(f.gate)
		f.mu.Unlock()
		wg.Wait()

		assert.Equal(t, int32(1), started.Load())
		assert.Equal(t, []int{1, 2}, f.seen)
		assert.Equal(t, decks(1, 2), s.State().Items)
	}
}

func TestSessionConcurrentRetryRequestsPageOnce(t *testing.T) {
	f := newFakeFetcher()
	f.errs[1] = &FetchError{Status: 502}
	s := NewSession(f, staticMeeting("m1"), 12)
	require.Error(t, s.Fetch(context.Background(), 1))

	f.mu.Lock()
	delete(f.errs, 1)
	f.pages[1] = Page{Items: decks(1), TotalPages: 1}
	f.gate = make(chan struct{})
	f.mu.Unlock()

	var (
		wg      sync.WaitGroup
		started atomic.Int32
	)
	ready := make(chan struct{})
	for j := 0; j < 8; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			if ok, _ := s.Retry(context.Background()); ok {
				started.Add(1)
			}
		}()
	}
	close(ready)
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, StatusLoaded, s.State().Status)
}

func TestSessionFillsFallbackDeckLinks(t *testing.T) {
	f := newFakeFetcher()
	f.pages[1] = Page{Items: []models.PosterDeck{{ID: "7"}, {ID: "8", Link: "https://decks.example.com/8"}}, TotalPages: 1}
	s := NewSession(f, staticMeeting("m1"), 12)

	require.NoError(t, s.Fetch(context.Background(), 1))
	items := s.State().Items
	require.Len(t, items, 2)
	assert.Equal(t, "/event/poster/7", items[0].Link)
	assert.Equal(t, "https://decks.example.com/8", items[1].Link)
}

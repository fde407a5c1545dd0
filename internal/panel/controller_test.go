package panel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"meetpanel/internal/models"
	"meetpanel/internal/panel/media"
	"meetpanel/internal/panel/mocks"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/upload"
)

type fakeFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	page  posters.Page
	err   error
	gate  chan struct{}
	hit   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, meetingID string, page, pageSize int) (posters.Page, error) {
	f.calls.Add(1)
	f.mu.Lock()
	p, err, gate, hit := f.page, f.err, f.gate, f.hit
	f.mu.Unlock()
	if hit != nil {
		hit <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return posters.Page{}, &posters.FetchError{Err: ctx.Err()}
		}
	}
	return p, err
}

type fakeUploader struct {
	url string
	err error
}

func (u *fakeUploader) Upload(ctx context.Context, f upload.File, sentAt time.Time) (string, error) {
	return u.url, u.err
}

type fixture struct {
	ctrl     *Controller
	meetings *mocks.MockMeetingResolver
	sink     *mocks.MockMessageSink
	fetcher  *fakeFetcher
	uploader *fakeUploader
	previews *upload.PreviewStore
}

func newFixture(t *testing.T, layout LayoutRecomputer, opts ...Option) *fixture {
	t.Helper()
	mc := gomock.NewController(t)
	f := &fixture{
		meetings: mocks.NewMockMeetingResolver(mc),
		sink:     mocks.NewMockMessageSink(mc),
		fetcher: &fakeFetcher{page: posters.Page{
			Items:      []models.PosterDeck{{ID: "1"}, {ID: "2"}},
			TotalPages: 2,
		}},
		uploader: &fakeUploader{url: "https://cdn/paper.pdf"},
		previews: upload.NewPreviewStore(64),
	}
	f.meetings.EXPECT().MeetingID().Return("room-1").AnyTimes()
	f.ctrl = New(Deps{
		Meetings: f.meetings,
		Layout:   layout,
		Sink:     f.sink,
		Posters:  f.fetcher,
		Previews: f.previews,
		Uploader: f.uploader,
	}, opts...)
	t.Cleanup(f.ctrl.Shutdown)
	return f
}

var pdf = upload.File{Name: "paper.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")}

func TestToggleRecomputesLayoutOncePerChange(t *testing.T) {
	mc := gomock.NewController(t)
	layout := mocks.NewMockLayoutRecomputer(mc)
	layout.EXPECT().Recompute().Times(3)
	f := newFixture(t, layout)

	f.ctrl.Toggle()
	assert.True(t, f.ctrl.IsOpen())
	f.ctrl.Toggle()
	assert.False(t, f.ctrl.IsOpen())
	f.ctrl.Close()
	f.ctrl.Open()
	f.ctrl.Open()
	assert.True(t, f.ctrl.IsOpen())
}

func TestPostersReentryResetsAndRefetches(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Open()

	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()
	st := f.ctrl.Snapshot().Posters
	assert.Equal(t, posters.StatusLoaded, st.Status)
	assert.Len(t, st.Items, 2)

	_, err := f.ctrl.LoadMorePosters(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.ctrl.Snapshot().Posters.Items, 4)
	assert.Equal(t, 2, f.ctrl.Snapshot().Posters.CurrentPage)

	require.NoError(t, f.ctrl.SetActiveTab(TabChat))
	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()

	st = f.ctrl.Snapshot().Posters
	assert.Equal(t, 1, st.CurrentPage)
	assert.Len(t, st.Items, 2)
	assert.Equal(t, int32(3), f.fetcher.calls.Load())
}

func TestReselectLoadedPostersDoesNotFetch(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Open()

	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()
	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()

	assert.Equal(t, int32(1), f.fetcher.calls.Load())
}

func TestPostersSelectedWhileClosedFetchOnOpen(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()
	assert.Zero(t, f.fetcher.calls.Load())

	f.ctrl.Open()
	f.ctrl.Wait()
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Equal(t, posters.StatusLoaded, f.ctrl.Snapshot().Posters.Status)
}

func TestClosingDuringFetchDiscardsAndReopenRefetches(t *testing.T) {
	f := newFixture(t, nil)
	f.fetcher.gate = make(chan struct{})
	f.fetcher.hit = make(chan struct{}, 4)
	f.ctrl.Open()

	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	<-f.fetcher.hit
	f.ctrl.Close()
	f.ctrl.Wait()

	st := f.ctrl.Snapshot().Posters
	assert.Equal(t, posters.StatusIdle, st.Status)
	assert.Empty(t, st.Items)

	f.fetcher.mu.Lock()
	f.fetcher.gate = nil
	f.fetcher.mu.Unlock()

	f.ctrl.Open()
	f.ctrl.Wait()
	assert.Equal(t, int32(2), f.fetcher.calls.Load())
	assert.Equal(t, posters.StatusLoaded, f.ctrl.Snapshot().Posters.Status)
}

func TestPostersUnresolvedMeeting(t *testing.T) {
	mc := gomock.NewController(t)
	meetings := mocks.NewMockMeetingResolver(mc)
	meetings.EXPECT().MeetingID().Return("").AnyTimes()
	fetcher := &fakeFetcher{}
	c := New(Deps{Meetings: meetings, Posters: fetcher, Previews: upload.NewPreviewStore(64), Uploader: &fakeUploader{}})
	defer c.Shutdown()

	c.Open()
	require.NoError(t, c.SetActiveTab(TabPosters))
	c.Wait()

	st := c.Snapshot().Posters
	assert.Equal(t, posters.StatusError, st.Status)
	assert.Equal(t, posters.ErrorUnauthorized, st.ErrorKind)
	assert.Equal(t, "Unauthorized access", st.ErrorMessage)
	assert.Zero(t, fetcher.calls.Load())
}

func TestPostersFetchMetrics(t *testing.T) {
	mc := gomock.NewController(t)
	metrics := mocks.NewMockMetrics(mc)
	metrics.EXPECT().PosterFetch("loaded").Times(1)
	f := newFixture(t, nil, WithMetrics(metrics))

	f.ctrl.Open()
	require.NoError(t, f.ctrl.SetActiveTab(TabPosters))
	f.ctrl.Wait()
}

func TestUnreadCounters(t *testing.T) {
	f := newFixture(t, nil)

	f.ctrl.ReceiveMessage(*models.NewMessage("p1", "Ana", "hi", time.Now()))
	f.ctrl.ReceiveMessage(*models.NewMessage("p2", "Bo", "yo", time.Now()))
	f.ctrl.NotePollActivity()

	s := f.ctrl.Snapshot()
	assert.Equal(t, 2, s.UnreadMessages)
	assert.Equal(t, 1, s.UnreadPolls)

	f.ctrl.Open()
	assert.Zero(t, f.ctrl.Snapshot().UnreadMessages)

	f.ctrl.ReceiveMessage(*models.NewMessage("p1", "Ana", "again", time.Now()))
	assert.Zero(t, f.ctrl.Snapshot().UnreadMessages)

	require.NoError(t, f.ctrl.SetActiveTab(TabPolls))
	assert.Zero(t, f.ctrl.Snapshot().UnreadPolls)
	f.ctrl.NotePollActivity()
	assert.Zero(t, f.ctrl.Snapshot().UnreadPolls)

	f.ctrl.ReceiveMessage(*models.NewMessage("p1", "Ana", "on polls", time.Now()))
	assert.Equal(t, 1, f.ctrl.Snapshot().UnreadMessages)
}

func TestDuplicateMessageIgnored(t *testing.T) {
	f := newFixture(t, nil)
	m := models.NewMessage("p1", "Ana", "hi", time.Now())

	f.ctrl.ReceiveMessage(*m)
	f.ctrl.ReceiveMessage(*m)
	assert.Len(t, f.ctrl.Snapshot().Messages, 1)
}

func TestSetActiveTabValidation(t *testing.T) {
	f := newFixture(t, nil, WithPolls(false))

	assert.ErrorIs(t, f.ctrl.SetActiveTab(Tab("settings")), models.ErrInvalidTab)
	assert.ErrorIs(t, f.ctrl.SetActiveTab(TabPolls), models.ErrPollsDisabled)
	assert.Equal(t, TabChat, f.ctrl.ActiveTab())

	f.ctrl.NotePollActivity()
	assert.Zero(t, f.ctrl.Snapshot().UnreadPolls)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab(" Posters ")
	require.NoError(t, err)
	assert.Equal(t, TabPosters, tab)

	_, err = ParseTab("files")
	assert.ErrorIs(t, err, models.ErrInvalidTab)
}

func TestSendText(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.EXPECT().Dispatch(gomock.Any(), "hello", "").Return(nil).Times(1)

	require.NoError(t, f.ctrl.SendText(context.Background(), "   "))
	require.NoError(t, f.ctrl.SendText(context.Background(), "  hello \n"))
}

func TestSendTextSinkError(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.EXPECT().Dispatch(gomock.Any(), "hello", "").Return(errors.New("offline"))

	err := f.ctrl.SendText(context.Background(), "hello")
	assert.EqualError(t, err, "dispatch text: offline")
}

func TestSendFileDispatchesURL(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.EXPECT().Dispatch(gomock.Any(), "https://cdn/paper.pdf", "application/pdf").Return(nil)

	_, err := f.ctrl.SelectFile(pdf)
	require.NoError(t, err)
	out, err := f.ctrl.SendFile(context.Background())
	require.NoError(t, err)
	assert.True(t, out.OK())

	assert.Equal(t, upload.PhaseIdle, f.ctrl.Snapshot().Upload.Phase)
	assert.Zero(t, f.previews.Live())
}

func TestUploadFailureShownInChat(t *testing.T) {
	f := newFixture(t, nil)
	f.uploader.err = &upload.Error{Status: 413, Message: "File size too large"}
	f.sink.EXPECT().Dispatch(gomock.Any(), "File size too large", "").Return(nil)

	_, err := f.ctrl.SelectFile(pdf)
	require.NoError(t, err)
	out, err := f.ctrl.SendFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "File size too large", out.Failure)

	up := f.ctrl.Snapshot().Upload
	assert.Equal(t, upload.PhaseFailed, up.Phase)
	assert.Equal(t, "File size too large", up.LastError)

	f.uploader.err = nil
	f.sink.EXPECT().Dispatch(gomock.Any(), "https://cdn/paper.pdf", "application/pdf").Return(nil)
	out, err = f.ctrl.RetryUpload(context.Background())
	require.NoError(t, err)
	assert.True(t, out.OK())
}

func TestUploadFailureKeptOutOfChat(t *testing.T) {
	f := newFixture(t, nil, WithUploadErrorsInChat(false))
	f.uploader.err = errors.New("boom")

	_, err := f.ctrl.SelectFile(pdf)
	require.NoError(t, err)
	out, err := f.ctrl.SendFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "boom", out.Failure)

	require.NoError(t, f.ctrl.DiscardFile())
	assert.Equal(t, upload.PhaseIdle, f.ctrl.Snapshot().Upload.Phase)
}

func TestSendFileWithoutSelection(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.ctrl.SendFile(context.Background())
	assert.ErrorIs(t, err, models.ErrNotPreviewing)
}

func TestReactionsInSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	m := models.NewMessage("p1", "Ana", "https://cdn.example.com/a/photo.png", time.Now())
	f.ctrl.ReceiveMessage(*m)

	require.NoError(t, f.ctrl.ApplyReaction(m.ID, "👍", "p2", true))
	require.NoError(t, f.ctrl.ApplyReaction(m.ID, "👍", "p3", true))
	require.NoError(t, f.ctrl.ApplyReaction(m.ID, "🎉", "p2", true))
	require.NoError(t, f.ctrl.ApplyReaction(m.ID, "🎉", "p2", false))

	views := f.ctrl.Snapshot().Messages
	require.Len(t, views, 1)
	assert.Equal(t, media.KindImage, views[0].Media.Kind)
	assert.Equal(t, 2, views[0].Reactions.Total)
	require.Len(t, views[0].Reactions.Entries, 1)
	assert.Equal(t, "👍", views[0].Reactions.Entries[0].Symbol)

	err := f.ctrl.ApplyReaction("missing", "👍", "p2", true)
	assert.ErrorIs(t, err, models.ErrMessageNotFound)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, nil)
	var got []Event
	unsubscribe := f.ctrl.Subscribe(func(ev Event) { got = append(got, ev) })

	f.ctrl.Open()
	f.ctrl.ReceiveMessage(*models.NewMessage("p1", "Ana", "hi", time.Now()))
	unsubscribe()
	f.ctrl.Close()

	assert.Equal(t, []Event{EventVisibility, EventMessage}, got)
}

func TestShutdownReleasesPreview(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.ctrl.SelectFile(pdf)
	require.NoError(t, err)
	assert.Equal(t, 1, f.previews.Live())

	f.ctrl.Shutdown()
	assert.Zero(t, f.previews.Live())
	created, released := f.previews.Stats()
	assert.Equal(t, created, released)

	f.ctrl.Open()
	assert.False(t, f.ctrl.IsOpen())
}

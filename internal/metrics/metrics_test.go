package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := New()
	c.PosterFetch("loaded")
	c.PosterFetch("loaded")
	c.PosterFetch("error")
	c.Upload("failure")
	c.Dispatch("text")
	c.PanelOpened()
	c.PanelOpened()
	c.PanelClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.posterFetches.WithLabelValues("loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.posterFetches.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploads.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.panels))
}

func TestHandlerExposesCounters(t *testing.T) {
	c := New()
	c.Upload("success")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `meetpanel_uploads_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

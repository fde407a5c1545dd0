package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubBroadcastPerPanel(t *testing.T) {
	h := NewHub(nil)
	a := NewClient(h, nil, "panel-a")
	b := NewClient(h, nil, "panel-b")
	h.Register(a)
	h.Register(b)

	assert.Equal(t, 1, h.Broadcast("panel-a", []byte("x")))
	assert.Equal(t, []byte("x"), <-a.Send)
	assert.Empty(t, b.Send)
	assert.Zero(t, h.Broadcast("panel-c", []byte("y")))
}

func TestHubDropsFramesForLaggingClient(t *testing.T) {
	h := NewHub(nil)
	c := NewClient(h, nil, "p")
	h.Register(c)

	for i := 0; i < sendQueue; i++ {
		h.Broadcast("p", []byte("frame"))
	}
	assert.Zero(t, h.Broadcast("p", []byte("overflow")))
	assert.Len(t, c.Send, sendQueue)
}

func TestHubUnregisterAndClosePanel(t *testing.T) {
	h := NewHub(nil)
	a := NewClient(h, nil, "p")
	b := NewClient(h, nil, "p")
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.Subscribers("p"))

	h.Unregister(a)
	h.Unregister(a)
	_, open := <-a.Send
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers("p"))

	h.ClosePanel("p")
	_, open = <-b.Send
	assert.False(t, open)
	assert.Zero(t, h.Subscribers("p"))

	h.Unregister(b)
}

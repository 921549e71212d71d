package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := newRegistry()
	_, ok := r.get("svc1")
	assert.False(t, ok)

	h := &RuntimeHandle{PID: 1, input: make(chan []byte, 1), broadcaster: newOutputBroadcaster()}
	r.put("svc1", h)

	got, ok := r.get("svc1")
	assert.True(t, ok)
	assert.Same(t, h, got)

	r.remove("svc1")
	_, ok = r.get("svc1")
	assert.False(t, ok)
}

func TestInputSenderAndSubscribe(t *testing.T) {
	h := &RuntimeHandle{PID: 1, input: make(chan []byte, 1), broadcaster: newOutputBroadcaster()}

	sender := h.InputSender()
	sender <- []byte("hello")
	assert.Equal(t, []byte("hello"), <-h.input)

	sub := h.Subscribe()
	assert.Equal(t, 1, h.broadcaster.subscriberCount())
	sub.Close()
	assert.Equal(t, 0, h.broadcaster.subscriberCount())
}

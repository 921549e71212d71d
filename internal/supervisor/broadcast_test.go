package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := newOutputBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish([]byte("hi"))

	c1 := <-s1.C()
	c2 := <-s2.C()
	assert.Equal(t, []byte("hi"), c1.Data)
	assert.Equal(t, []byte("hi"), c2.Data)
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := newOutputBroadcaster()
	slow := b.Subscribe()

	for i := 0; i < broadcastCapacity+10; i++ {
		b.Publish([]byte{byte(i)})
	}

	// Publish degraded to drop-and-count instead of blocking; the dropped
	// count is queued as a lag notice by the first Publish that finds room
	// again after the buffer has been drained.
	sawLag := false
	for i := 0; i < broadcastCapacity+10; i++ {
		select {
		case chunk := <-slow.C():
			if chunk.Lagged > 0 {
				sawLag = true
			}
		default:
		}
	}
	b.Publish([]byte("after drain"))
	select {
	case chunk := <-slow.C():
		if chunk.Lagged > 0 {
			sawLag = true
		}
	default:
	}
	assert.True(t, sawLag, "a subscriber who never reads should accumulate lag")
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	b := newOutputBroadcaster()
	sub := b.Subscribe()
	sub.Close()
	require.Equal(t, 0, b.subscriberCount())
	b.Publish([]byte("after close"))
	select {
	case <-sub.C():
		t.Fatal("closed subscription should not receive further chunks")
	default:
	}
}

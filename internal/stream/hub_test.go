package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	assert.Equal(t, 0, hub.Count())

	sub := hub.Subscribe()
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, 1, hub.Count())

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.Count())

	// The queue is closed so a draining reader terminates.
	_, open := <-sub.Events()
	assert.False(t, open)

	// Safe to call again.
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
}

func TestHub_PublishDelivers(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	a := hub.Subscribe()
	b := hub.Subscribe()

	event := NewEvent(EventPrice, "AAPL", map[string]float64{"price": 185.5})
	hub.Publish(event)

	for _, sub := range []*Subscriber{a, b} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, EventPrice, got.Type)
			assert.Equal(t, "AAPL", got.Symbol)
		case <-time.After(time.Second):
			t.Fatal("event was not delivered")
		}
	}
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(2, zap.NewNop())
	slow := hub.Subscribe()
	healthy := hub.Subscribe()

	// Fill the slow subscriber's queue, then overflow it. Nobody reads from
	// slow, so the third publish must drop it without blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			hub.Publish(NewEvent(EventHeartbeat, "", i))
			// Keep the healthy subscriber healthy.
			<-healthy.Events()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, 1, hub.Count())

	// The dropped subscriber's queue drains its backlog and then closes.
	received := 0
	for range slow.Events() {
		received++
	}
	assert.Equal(t, 2, received)

	// The healthy subscriber keeps receiving.
	hub.Publish(NewEvent(EventHeartbeat, "", 3))
	select {
	case event := <-healthy.Events():
		assert.Equal(t, EventHeartbeat, event.Type)
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber stopped receiving")
	}
}

func TestHub_DefaultQueueSize(t *testing.T) {
	hub := NewHub(0, zap.NewNop())
	sub := hub.Subscribe()
	assert.Equal(t, 64, cap(sub.events))
}

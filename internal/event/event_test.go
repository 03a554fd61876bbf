package event_test

import (
	"testing"
	"time"

	"github.com/davguerra/filmoteca/internal/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HandlerFunction_ReceivesDispatches(t *testing.T) {
	bus := event.New()
	received := make([]event.Payload, 0)

	bus.RegisterHandlerFunction(event.ContentUpdateEvent, func(_ event.Event, payload event.Payload) {
		received = append(received, payload)
	})

	id := uuid.New()
	bus.Dispatch(event.ContentUpdateEvent, id)
	bus.Dispatch(event.DirectorUpdateEvent, "uid-1")

	require.Len(t, received, 1, "handler must only see the event it registered for")
	assert.Equal(t, id, received[0])
}

func Test_HandlerChannel_ReceivesAllRegisteredEvents(t *testing.T) {
	bus := event.New()
	channel := make(event.HandlerChannel, 10)
	bus.RegisterHandlerChannel(channel, event.ContentUpdateEvent, event.DirectorUpdateEvent)

	bus.Dispatch(event.ContentUpdateEvent, uuid.Nil)
	bus.Dispatch(event.DirectorUpdateEvent, "uid-1")

	first := <-channel
	second := <-channel
	assert.Equal(t, event.ContentUpdateEvent, first.Event)
	assert.Equal(t, event.DirectorUpdateEvent, second.Event)
	assert.Equal(t, "uid-1", second.Payload)
}

func Test_DeregisteredChannel_ReceivesNothing(t *testing.T) {
	bus := event.New()
	channel := make(event.HandlerChannel, 10)
	bus.RegisterHandlerChannel(channel, event.ContentUpdateEvent)
	bus.DeregisterHandlerChannel(channel)

	bus.Dispatch(event.ContentUpdateEvent, uuid.Nil)

	select {
	case message := <-channel:
		t.Fatalf("expected no message, received %v", message)
	case <-time.After(time.Millisecond * 50):
	}
}

func Test_AsyncHandlerFunction_RunsOffDispatchGoroutine(t *testing.T) {
	bus := event.New()
	done := make(chan event.Payload, 1)

	bus.RegisterAsyncHandlerFunction(event.ContentUpdateEvent, func(_ event.Event, payload event.Payload) {
		done <- payload
	})

	id := uuid.New()
	bus.Dispatch(event.ContentUpdateEvent, id)

	select {
	case payload := <-done:
		assert.Equal(t, id, payload)
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

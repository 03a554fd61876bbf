// Package event provides the in-process event bus which connects the
// stores to the live snapshot streams and the websocket gateway. Stores
// dispatch an event after every successful write; any part of the
// architecture interested in reacting to data changes registers a handler
// function or channel against the relevant event.
package event

import (
	"sync"

	"github.com/davguerra/filmoteca/pkg/logger"
)

var log = logger.Get("EventBus")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
		DeregisterHandlerChannel(HandlerChannel)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		mutex        sync.Mutex
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	// ContentUpdateEvent is dispatched whenever a content item is created,
	// overwritten or deleted. The payload is the uuid.UUID of the item
	// affected (uuid.Nil for bulk/unknown).
	ContentUpdateEvent Event = "content:update"

	// DirectorUpdateEvent is dispatched whenever a director profile is
	// written. The payload is the directors uid (string).
	DirectorUpdateEvent Event = "director:update"
)

func New() EventCoordinator {
	return &eventHandler{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel takes an event type and a channel and will send
// HandlerEvent messages on the channel any time a Dispatch for the provided
// event occurs. This method can be used multiple times for different events
// on the same channel.
//
// If the channel is BLOCKED when the event bus attempts to send the message,
// then the thread dispatching the event will also be BLOCKED. Buffer the
// handler channels appropriately to avoid dispatcher-side blocking.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// DeregisterHandlerChannel removes the provided channel from all events it
// was registered against. Streams deregister their channel when their
// context is cancelled so the bus does not dispatch to a dead consumer.
func (handler *eventHandler) DeregisterHandlerChannel(handle HandlerChannel) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	for event, channels := range handler.chanHandlers {
		for idx, ch := range channels {
			if ch == handle {
				handler.chanHandlers[event] = append(channels[:idx], channels[idx+1:]...)
				break
			}
		}
	}
}

// RegisterHandlerFunction takes an event type and a handler method which will
// be stored and called with the payload whenever the event is dispatched.
// The handler provided should be guaranteed to return quickly, else other
// threads calling Dispatch on this event bus will be blocked.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction behaves the same as RegisterHandlerFunction,
// however the handler is called inside a new goroutine on dispatch.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch delivers the event and payload to all registered handler
// functions and channels for the given event.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	log.Verbosef("Dispatching event %s\n", event)
	if handles, ok := handler.fnHandlers[event]; ok {
		for _, handle := range handles {
			if handle.async {
				go handle.handle(event, payload)
			} else {
				handle.handle(event, payload)
			}
		}
	}

	if channels, ok := handler.chanHandlers[event]; ok {
		message := HandlerEvent{Event: event, Payload: payload}
		for _, channel := range channels {
			channel <- message
		}
	}
}

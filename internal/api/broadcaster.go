package api

import (
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/davguerra/filmoteca/internal/http/websocket"
	"github.com/google/uuid"
)

const (
	titleContentUpdate  = "CONTENT_UPDATE"
	titleDirectorUpdate = "DIRECTOR_UPDATE"
)

// broadcaster bridges the event bus to the socket hub: every store write
// becomes a broadcast telling connected clients which record changed, so
// they can re-fetch the views they hold.
type broadcaster struct {
	socketHub *websocket.SocketHub
}

func newBroadcaster(socketHub *websocket.SocketHub, eventBus event.EventHandler) *broadcaster {
	caster := &broadcaster{socketHub: socketHub}

	eventBus.RegisterAsyncHandlerFunction(event.ContentUpdateEvent, func(_ event.Event, payload event.Payload) {
		body := map[string]any{}
		if id, ok := payload.(uuid.UUID); ok {
			body["contentId"] = id
		}

		caster.broadcast(titleContentUpdate, body)
	})

	eventBus.RegisterAsyncHandlerFunction(event.DirectorUpdateEvent, func(_ event.Event, payload event.Payload) {
		body := map[string]any{}
		if uid, ok := payload.(string); ok {
			body["directorId"] = uid
		}

		caster.broadcast(titleDirectorUpdate, body)
	})

	return caster
}

func (caster *broadcaster) broadcast(title string, body map[string]any) {
	caster.socketHub.Broadcast(&websocket.Message{
		Title: title,
		Body:  body,
		Type:  websocket.Update,
	})
}

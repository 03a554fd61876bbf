// Package websocket pushes catalogue and profile change notifications to
// connected clients. Clients receive a welcome message carrying the current
// state on connect, then an update broadcast every time a store write is
// dispatched on the event bus; they re-fetch whatever views they care about
// over the REST API in response.
package websocket

import (
	"context"
	"net/http"

	"github.com/davguerra/filmoteca/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var socketLogger = logger.Get("WebSocket")

// SocketHub manages websocket upgrading, client lifecycles and message
// broadcasting. All client mutation happens on the Start loop's goroutine;
// the exported methods communicate with it over channels.
type SocketHub struct {
	upgrader           *websocket.Upgrader
	clients            map[uuid.UUID]*socketClient
	registerCh         chan *socketClient
	deregisterCh       chan *socketClient
	sendCh             chan *Message
	connectionCallback func() map[string]any
	running            bool
}

func NewHub() *SocketHub {
	return &SocketHub{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WithConnectionCallback sets a callback executed for each new client; its
// result is embedded in the welcome message so the client starts with the
// servers current state rather than waiting for the next update broadcast.
func (hub *SocketHub) WithConnectionCallback(callback func() map[string]any) {
	hub.connectionCallback = callback
}

// Start runs the hub loop until the provided context is cancelled. Must be
// running before any client can connect or any broadcast can be sent.
func (hub *SocketHub) Start(ctx context.Context) {
	if hub.running {
		socketLogger.Emit(logger.WARNING, "Attempting to start socket hub when already running! Ignoring request.\n")
		return
	} else if ctx.Err() != nil {
		socketLogger.Emit(logger.STOP, "Refusing to start socket hub as provided context is already cancelled\n")
		return
	}
	socketLogger.Emit(logger.INFO, "Opening socket hub!\n")

	hub.sendCh = make(chan *Message)
	hub.registerCh = make(chan *socketClient)
	hub.deregisterCh = make(chan *socketClient)
	hub.clients = make(map[uuid.UUID]*socketClient)
	hub.running = true

	defer hub.close()
	for {
		select {
		case message := <-hub.sendCh:
			for id, client := range hub.clients {
				if err := client.SendMessage(message); err != nil {
					socketLogger.Emit(logger.ERROR, "Failed to send message to client {%v}: %v\n", id, err.Error())
				}
			}
		case client := <-hub.registerCh:
			hub.clients[client.id] = client
			socketLogger.Emit(logger.NEW, "Registered new client {%v}\n", client.id)
		case client := <-hub.deregisterCh:
			if _, ok := hub.clients[client.id]; ok {
				delete(hub.clients, client.id)
				socketLogger.Emit(logger.REMOVE, "Deregistered client {%v}\n", client.id)
			}
		case <-ctx.Done():
			socketLogger.Emit(logger.REMOVE, "Shutting down socket hub! Closing all clients.\n")
			return
		}
	}
}

// Broadcast pushes the given message to every connected client. Ignored if
// the hub is not running.
func (hub *SocketHub) Broadcast(message *Message) {
	if !hub.running {
		socketLogger.Emit(logger.WARNING, "Attempted to broadcast via socket hub, however the hub is offline. Ignoring message.\n")
		return
	}

	hub.sendCh <- message
}

// UpgradeToSocket upgrades the given HTTP request to a websocket, registers
// the client and blocks until the connection drops.
func (hub *SocketHub) UpgradeToSocket(w http.ResponseWriter, r *http.Request) {
	if !hub.running {
		socketLogger.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: hub has not been started!\n")
		return
	}

	sock, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		socketLogger.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: %v\n", err.Error())
		return
	}

	client := &socketClient{id: uuid.New(), socket: sock}

	body := map[string]any{}
	if hub.connectionCallback != nil {
		body = hub.connectionCallback()
	}
	body["client"] = client.id

	// The welcome must be written before the client is registered: once
	// registered, the hub loop owns all writes to this connection, and
	// gorilla forbids two goroutines writing concurrently.
	if err := client.SendMessage(&Message{Title: "CONNECTION_ESTABLISHED", Body: body, Type: Welcome}); err != nil {
		socketLogger.Emit(logger.WARNING, "Failed to send welcome to client {%v}: %v\n", client.id, err.Error())
		client.Close()
		return
	}

	hub.registerCh <- client
	defer func() {
		hub.deregisterCh <- client
		client.Close()
	}()

	if err := client.WaitForClose(); err != nil {
		socketLogger.Emit(logger.WARNING, "Client {%v} closed, error: %v\n", client.id, err.Error())
	}
}

func (hub *SocketHub) close() {
	for _, client := range hub.clients {
		client.Close()
	}

	hub.clients = nil
	hub.running = false
	socketLogger.Emit(logger.STOP, "Socket hub is now closed!\n")
}

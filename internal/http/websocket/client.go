package websocket

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type socketClient struct {
	id     uuid.UUID
	socket *websocket.Conn
}

func (client *socketClient) SendMessage(message *Message) error {
	return client.socket.WriteJSON(message)
}

// WaitForClose blocks until the clients connection drops. Inbound frames
// are read and discarded; the socket protocol carries no client commands.
func (client *socketClient) WaitForClose() error {
	for {
		if _, _, err := client.socket.ReadMessage(); err != nil {
			return err
		}
	}
}

func (client *socketClient) Close() {
	client.socket.Close()
}

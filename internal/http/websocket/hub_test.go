package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	socket "github.com/davguerra/filmoteca/internal/http/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub spins up a running hub behind an httptest server and returns the
// hub plus the ws:// URL to dial.
func startHub(t *testing.T, hub *socket.SocketHub) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.UpgradeToSocket(w, r)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// dial connects to the hub, retrying until the hub loop is accepting
// registrations.
func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		dialed, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}

		conn = dialed
		return true
	}, time.Second*5, time.Millisecond*20)

	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))
	return conn
}

func Test_Hub_WelcomeCarriesConnectionState(t *testing.T) {
	hub := socket.NewHub()
	hub.WithConnectionCallback(func() map[string]any {
		return map[string]any{"feed": "snapshot"}
	})
	url := startHub(t, hub)

	conn := dial(t, url)

	var welcome socket.Message
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
	assert.Equal(t, socket.Welcome, welcome.Type)
	assert.Equal(t, "snapshot", welcome.Body["feed"])
	assert.Contains(t, welcome.Body, "client")
}

func Test_Hub_WelcomeArrivesBeforeBroadcasts(t *testing.T) {
	hub := socket.NewHub()
	url := startHub(t, hub)

	// Ensure the hub loop is up before flooding it with broadcasts.
	first := dial(t, url)
	var message socket.Message
	require.NoError(t, first.ReadJSON(&message))
	require.Equal(t, socket.Welcome, message.Type)

	// Broadcast continuously while new clients connect: every client must
	// still see the welcome as its very first frame, with the broadcast
	// writer never touching the connection until registration completes.
	stopBroadcasting := make(chan struct{})
	defer close(stopBroadcasting)
	go func() {
		for {
			select {
			case <-stopBroadcasting:
				return
			default:
				hub.Broadcast(&socket.Message{Title: "CONTENT_UPDATE", Body: map[string]any{}, Type: socket.Update})
				time.Sleep(time.Millisecond)
			}
		}
	}()

	for i := 0; i < 5; i++ {
		conn := dial(t, url)

		var welcome socket.Message
		require.NoError(t, conn.ReadJSON(&welcome))
		assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
		assert.Equal(t, socket.Welcome, welcome.Type)

		var update socket.Message
		require.NoError(t, conn.ReadJSON(&update))
		assert.Equal(t, "CONTENT_UPDATE", update.Title)
		assert.Equal(t, socket.Update, update.Type)
	}
}

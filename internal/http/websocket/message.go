package websocket

type messageType int

const (
	Update messageType = iota
	Welcome
)

// Message is one server-to-client push. The platform's socket traffic is
// one-directional: clients subscribe and receive change notifications, they
// never issue commands over the socket (mutations go through the REST API).
type Message struct {
	Title string         `json:"title"`
	Body  map[string]any `json:"body"`
	Type  messageType    `json:"type"`
}

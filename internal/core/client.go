package core

// Client is one live bidirectional connection as seen by the core layer.
type Client struct {
	// ID identifies the connection itself, not the user behind it.
	ID     string
	Events chan *Event

	// UserID is the identity bound via Register, zero while unauthenticated.
	// It is written only by the connection's own handler goroutine.
	UserID int64
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 16),
	}
}

// Deliver pushes an event to the client without blocking.
func (c *Client) Deliver(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}

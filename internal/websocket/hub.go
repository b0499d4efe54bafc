package websocket

import "github.com/rs/zerolog/log"

type publication struct {
	userID  string
	message []byte
}

// Hub maintains the set of active clients and fans task updates out to the
// connections of the owning user. All map access happens on the Run goroutine.
type Hub struct {
	// Connected clients grouped by user ID.
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	publish chan publication
	done    chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		publish:       make(chan publication, 64),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, subs := range h.subscriptions {
				for client := range subs {
					close(client.Send)
				}
			}
			h.subscriptions = make(map[string]map[*Client]bool)
			return
		case client := <-h.register:
			if h.subscriptions[client.UserID] == nil {
				h.subscriptions[client.UserID] = make(map[*Client]bool)
			}
			h.subscriptions[client.UserID][client] = true
			log.Debug().Str("user_id", client.UserID).Int("user_clients", len(h.subscriptions[client.UserID])).Msg("Client connected")
		case client := <-h.unregister:
			if h.remove(client) {
				log.Debug().Str("user_id", client.UserID).Msg("Client disconnected")
			}
		case p := <-h.publish:
			for client := range h.subscriptions[p.userID] {
				select {
				case client.Send <- p.message:
				default:
					// Slow consumer; drop it rather than block the hub.
					h.remove(client)
				}
			}
		}
	}
}

// Stop closes every client send channel and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a message for every connection of the given user. It never
// blocks the caller; when the queue is full the message is dropped.
func (h *Hub) Publish(userID string, message []byte) {
	select {
	case h.publish <- publication{userID: userID, message: message}:
	default:
		log.Warn().Str("user_id", userID).Msg("Live update queue full, dropping message")
	}
}

func (h *Hub) remove(client *Client) bool {
	subs, ok := h.subscriptions[client.UserID]
	if !ok || !subs[client] {
		return false
	}
	delete(subs, client)
	close(client.Send)
	if len(subs) == 0 {
		delete(h.subscriptions, client.UserID)
	}
	return true
}

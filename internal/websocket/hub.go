package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

type publication struct {
	email   string
	message []byte
}

// Hub tracks clients waiting on a verification and pushes events to them.
type Hub struct {
	// Clients grouped by the email address they are watching.
	subscriptions map[string]map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	publish chan publication
	done    chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		publish:       make(chan publication, 64),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.addSubscription(client)
			log.Debug().Str("email", client.Email).Int("watchers", len(h.subscriptions[client.Email])).Msg("Verification watcher connected")
		case client := <-h.Unregister:
			if h.removeSubscription(client) {
				close(client.Send)
				log.Debug().Str("email", client.Email).Msg("Verification watcher disconnected")
			}
		case p := <-h.publish:
			h.broadcastTo(p.email, p.message)
		case <-h.done:
			for _, subs := range h.subscriptions {
				for client := range subs {
					close(client.Send)
				}
			}
			h.subscriptions = make(map[string]map[*Client]bool)
			return
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

// Subscribe registers client with the hub. It is a no-op after Close.
func (h *Hub) Subscribe(client *Client) {
	select {
	case h.Register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) unsubscribe(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// PublishVerified notifies clients watching email that the account is verified.
func (h *Hub) PublishVerified(id, email string) {
	message, err := json.Marshal(NewUserVerifiedMessage(id, email))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode verification event")
		return
	}
	select {
	case h.publish <- publication{email: email, message: message}:
	case <-h.done:
	default:
		log.Warn().Str("email", email).Msg("Verification event dropped, hub busy")
	}
}

func (h *Hub) broadcastTo(email string, message []byte) {
	for client := range h.subscriptions[email] {
		select {
		case client.Send <- message:
		default:
			h.removeSubscription(client)
			close(client.Send)
		}
	}
}

func (h *Hub) addSubscription(client *Client) {
	if h.subscriptions[client.Email] == nil {
		h.subscriptions[client.Email] = make(map[*Client]bool)
	}
	h.subscriptions[client.Email][client] = true
}

func (h *Hub) removeSubscription(client *Client) bool {
	subs, ok := h.subscriptions[client.Email]
	if !ok || !subs[client] {
		return false
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscriptions, client.Email)
	}
	return true
}

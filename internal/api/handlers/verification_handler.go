package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/chat-auth-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// VerificationEventsHandler upgrades clients that wait for an address to be
// verified.
type VerificationEventsHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewVerificationEventsHandler creates a handler that only accepts upgrades
// from allowedOrigin.
func NewVerificationEventsHandler(hub *ws.Hub, allowedOrigin string) *VerificationEventsHandler {
	return &VerificationEventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *VerificationEventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, email)
	h.hub.Subscribe(client)

	go client.WritePump()
	go client.ReadPump()
}

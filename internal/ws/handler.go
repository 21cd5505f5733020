// Package ws is the network-facing boundary of the relay: it upgrades HTTP
// connections, registers them with the relay server, and pumps messages in
// both directions.
package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/uidraft/backend/internal/auth"
	"github.com/uidraft/backend/internal/presence"
	"github.com/uidraft/backend/internal/relay"
)

// TokenVerifier resolves a token to a user identity. The relay works without
// one; identity only tags connections for logging.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

type Handler struct {
	server   *relay.Server
	presence *presence.Tracker
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHandler(server *relay.Server, tracker *presence.Tracker, verifier TokenVerifier, logger zerolog.Logger) *Handler {
	return &Handler{
		server:   server,
		presence: tracker,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// The editor runs on a different origin than the API.
				return true
			},
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.resolveUser(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, h.server, h.presence, userID, h.logger)
	client.id = h.server.Connect(client)
	h.logger.Info().Str("conn", client.id).Str("user", userID).Msg("client connected")

	go client.writePump()
	go client.readPump()
}

// resolveUser extracts an optional identity from the upgrade request. The
// socket protocol itself carries no authentication (room membership is
// enforced per message by the relay); a valid token only attributes the
// connection in logs.
func (h *Handler) resolveUser(r *http.Request) string {
	token := auth.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" || h.verifier == nil {
		return ""
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		return ""
	}
	return userID.String()
}

package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	inboundTimeout = 15 * time.Second
	sendBuffer     = 256
)

// Handler upgrades authenticated HTTP requests to sockets.
type Handler struct {
	hub      *Hub
	verifier auth.Verifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler builds a socket handler. Browser origins must appear in
// allowedOrigins; "*" allows any.
func NewHandler(hub *Hub, verifier auth.Verifier, allowedOrigins []string, logger zerolog.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		logger:   logger.With().Str("component", "realtime").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect verifies the handshake token, then upgrades and joins the
// caller's room. The token comes from ?token= or an Authorization header.
// Unauthenticated handshakes are refused before the upgrade.
func (h *Handler) HandleConnect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token, _ = auth.BearerToken(c.Request().Header.Get("Authorization"))
	}

	id, err := h.verifier.Verify(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication error")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("upgrade failed")
		return nil
	}

	client := &Client{
		ID:       uuid.NewString(),
		Identity: id,
		Send:     make(chan []byte, sendBuffer),
	}
	h.hub.Register(client)
	h.hub.SendTo(client, "authenticated", map[string]string{"id": id.UserID.String()})

	h.logger.Info().
		Str("client", client.ID).
		Str("user_id", id.UserID.String()).
		Str("role", id.Role).
		Msg("socket connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		h.logger.Info().Str("client", client.ID).Msg("socket disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client", client.ID).Msg("socket read error")
			}
			return
		}

		ctx, cancel := context.WithTimeout(auth.WithIdentity(context.Background(), client.Identity), inboundTimeout)
		h.hub.Dispatch(ctx, client, message)
		cancel()
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func clientMessage(err error) string {
	return apperr.Message(err)
}

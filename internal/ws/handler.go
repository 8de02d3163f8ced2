package ws

import (
	"net/http"
	"strings"

	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	hub      *Hub
	verifier auth.Verifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler authenticates sockets with verifier. Browsers cannot set headers
// on a websocket handshake, so the token may also come as ?token=.
func NewHandler(hub *Hub, verifier auth.Verifier, allowOrigins []string, log *zap.Logger) *Handler {
	h := &Handler{hub: hub, verifier: verifier, logger: logger.OrNop(log).Named("ws")}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil {
		http.Error(w, "websocket unavailable", http.StatusServiceUnavailable)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}
	}
	if token == "" || h.verifier == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, id.UID)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

// Handle mounts the socket on a fiber route.
func (h *Handler) Handle(c fiber.Ctx) error {
	return adaptor.HTTPHandler(h)(c)
}

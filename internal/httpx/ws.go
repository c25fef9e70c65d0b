package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jatango/cart-engine/internal/syncx"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin policy is handled by the gateway in front of us
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams cart invalidation signals to a connected session. The
// payload is always {"type":"invalidate"}; clients respond by re-fetching
// the cart, never by patching local state.
type WSHandler struct {
	Channel syncx.Channel
}

func (h *WSHandler) Register(r *chi.Mux) {
	r.Get("/cart/ws", h.serve)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
		return
	}

	signals, cancel, err := h.Channel.Subscribe(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	// reader goroutine just detects the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case _, ok := <-signals:
			if !ok {
				return
			}
			if err := conn.WriteJSON(map[string]string{"type": "invalidate"}); err != nil {
				return
			}
		}
	}
}

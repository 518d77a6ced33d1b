package session

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type Handler struct {
	originPatterns []string
}

// NewHandler accepts WebSocket connections from the given origins
// (full URLs or host patterns).
func NewHandler(origins []string) *Handler {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return &Handler{originPatterns: patterns}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(conn, uuid.New().String())
	slog.Info("selection session opened", "client", client.ClientID)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)

	slog.Info("selection session closed", "client", client.ClientID)
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
)

// StreamProgress handles GET /videos/{id}/progress. A websocket client
// receives every progress event until a terminal one; a plain request gets
// the current event as JSON.
func (h *Handlers) StreamProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !websocket.IsWebSocketUpgrade(r) {
		e, err := h.deps.Progress.Snapshot(r.Context(), id)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(h.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	// The subscription ends when the client goes away.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	pongWait := h.pongTimeout
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pongWait * 9 / 10)
	defer ping.Stop()

	events := h.deps.Progress.Subscribe(ctx, id)
	terminal := false
	for {
		select {
		case e, ok := <-events:
			if !ok {
				h.closeStream(conn, id, terminal)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("progress stream closed by client",
					slog.String("video_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			terminal = terminal || e.Terminal()
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				h.logger.Debug("progress stream ping failed",
					slog.String("video_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

// closeStream sends a normal closure after a terminal event and a going-away
// closure when the stream stopped early.
func (h *Handlers) closeStream(conn *websocket.Conn, id string, terminal bool) {
	code, reason := websocket.CloseNormalClosure, "done"
	if !terminal {
		code, reason = websocket.CloseGoingAway, "stream ended"
		h.logger.Debug("progress stream ended before a terminal event", slog.String("video_id", id))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsWriteTimeout))
}

package api

import (
	"fmt"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleEventsWS streams published activity as JSON messages. The optional
// "portfolio" query parameter restricts the stream to one portfolio.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, fmt.Errorf("event stream: %w", errUnavailable))
		return
	}
	filter := r.URL.Query().Get("portfolio")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ch, cancel := s.events.Subscribe(64)
	defer cancel()

	// Clients never send; CloseRead handles pings and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())
	s.log.Debug().Str("portfolio", filter).Msg("event stream opened")

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if filter != "" && !strings.EqualFold(filter, e.Portfolio) {
				continue
			}
			if err := wsjson.Write(ctx, conn, e); err != nil {
				s.log.Debug().Err(err).Msg("event stream closed")
				return
			}
		}
	}
}

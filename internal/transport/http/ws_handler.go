package http

import (
	"net/http"
	"time"

	"elearn-progress-service/internal/app"
	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler streams a user's new activities over a websocket.
type WSHandler struct {
	feed     *app.ActivityFeed
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.ActivityFeed, allowedOrigins []string, log *logger.Logger) *WSHandler {
	return &WSHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when none are configured, matching the CORS policy.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

type outboundMessage struct {
	Type    string          `json:"type"`
	Payload domain.Activity `json:"payload"`
}

// ServeHTTP subscribes to the timeline named by the userId query parameter, defaulting to the
// caller. Like the REST timeline, only the owner or an admin may subscribe.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callerID, ok := caller(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = callerID
	}
	if userID != callerID && !isAdmin(r) {
		writeError(w, h.log, r, errForeignTimeline)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(userID)
	defer cancel()

	// The read loop only drains control frames; it ends when the client goes away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
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

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case activity, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundMessage{Type: "activity", Payload: activity}); err != nil {
				h.log.Debug("ws write failed", "user_id", userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"img2imgd/pkg/types"
)

const (
	// wsWriteWait bounds every frame write.
	wsWriteWait = 10 * time.Second
	// wsMaxMessageSize caps client frames; clients only send control frames.
	wsMaxMessageSize = 512
)

// wsUpgrader builds the upgrader for the current settings. With CORS enabled
// the allowed origins apply to the handshake too; otherwise gorilla's
// same-origin check is used.
func wsUpgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if settings.CORSEnabled {
		origins := settings.CORSOrigins
		u.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || slices.Contains(origins, "*") || slices.Contains(origins, o)
		}
	}
	return u
}

// serveWS pushes the same events as /events as JSON text frames. Each
// connection holds its own subscription, so a slow client loses only its own
// events. The connection is pinged every EventHeartbeat and dropped when no
// pong arrives within four heartbeats.
func serveWS(svc Service, w http.ResponseWriter, r *http.Request) {
	lvl := requestLogLevel(r)
	start := time.Now()
	conn, err := wsUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logEnd(r, lvl, "ws", http.StatusBadRequest, start, err)
		return
	}
	defer conn.Close()
	logStart(r, lvl, "ws")

	events, cancel := svc.Subscribe(64)
	defer cancel()
	eventSubscribers.Inc()
	defer eventSubscribers.Dec()

	ctx, stop := joinContexts(serverBaseCtx, r.Context())
	defer stop()

	pongWait := 4 * settings.EventHeartbeat
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	gone := readPump(conn)

	tick := time.NewTicker(settings.EventHeartbeat)
	defer tick.Stop()
	for {
		select {
		case <-gone:
			logEnd(r, lvl, "ws", http.StatusSwitchingProtocols, start, nil)
			return
		case <-ctx.Done():
			closeWS(conn, websocket.CloseGoingAway, "server shutting down")
			logEnd(r, lvl, "ws", http.StatusSwitchingProtocols, start, nil)
			return
		case <-tick.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logEnd(r, lvl, "ws", http.StatusSwitchingProtocols, start, err)
				return
			}
		case e, ok := <-events:
			if !ok {
				closeWS(conn, websocket.CloseNormalClosure, "")
				logEnd(r, lvl, "ws", http.StatusSwitchingProtocols, start, nil)
				return
			}
			if err := writeWSEvent(conn, e); err != nil {
				logEnd(r, lvl, "ws", http.StatusSwitchingProtocols, start, err)
				return
			}
		}
	}
}

// readPump drains client frames so control frames are processed. The
// returned channel is closed when the peer goes away or the read deadline
// passes.
func readPump(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) && zlog != nil {
					zlog.Debug().Err(err).Msg("ws read")
				}
				return
			}
		}
	}()
	return gone
}

func writeWSEvent(conn *websocket.Conn, e types.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(e)
}

func closeWS(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

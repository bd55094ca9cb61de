// Package frontend is the operator front-end fanout: a WebSocket endpoint
// that broadcasts every standardized gateway.FrontendEvent to connected
// operator sockets and accepts a small set of operator-originated control
// messages, per spec §4.10 and §6.
package frontend

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/callbridge/voicegateway/pkg/gateway"
)

// writeTimeout bounds how long a single best-effort broadcast write may
// block; a slow or wedged operator socket must never stall the others.
const writeTimeout = 2 * time.Second

// Hub tracks connected operator sockets and fans events out to them.
// Grounded on the teacher's lokutor.go WebSocket read/write-loop shape,
// generalized from one request/response connection to an arbitrary,
// mutex-guarded set of long-lived subscriber connections.
type Hub struct {
	log gateway.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub builds an empty Hub.
func NewHub(log gateway.Logger) *Hub {
	if log == nil {
		log = gateway.NoOpLogger{}
	}
	return &Hub{log: log, conns: make(map[*websocket.Conn]struct{})}
}

// add registers conn for broadcast.
func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// remove unregisters conn. Safe to call more than once.
func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast sends ev to every connected operator socket, best-effort: a
// write failure on one socket drops that socket but never affects the
// others (spec §5's "front-end broadcast is best-effort" rule).
func (h *Hub) Broadcast(ev gateway.FrontendEvent) {
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	for _, conn := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, conn, ev)
		cancel()
		if err != nil {
			h.log.Warn("operator socket write failed, dropping connection", "err", err)
			h.remove(conn)
			conn.Close(websocket.StatusAbnormalClosure, "write failed")
		}
	}
}

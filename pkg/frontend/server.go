package frontend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"

	"github.com/callbridge/voicegateway/pkg/gateway"
)

// conversationHistoryReader is the subset of a Redis-backed conversation
// log the get_conversation_history request needs; gateway.ConversationLog
// itself only guarantees Append, since logging must remain best-effort and
// fire-and-forget for every other caller.
type conversationHistoryReader interface {
	All(ctx context.Context, callID string) ([]gateway.ConversationEntry, error)
}

// inboundFrame is the envelope for every operator-originated message, per
// spec §6. Session is left as raw JSON and decoded into gateway.SessionFields
// only for session.update frames, since the other two frame kinds don't carry it.
type inboundFrame struct {
	Type    string          `json:"type"`
	CallID  string          `json:"callId"`
	Session json.RawMessage `json:"session"`
}

// Server is the operator front-end: an HTTP server exposing the `/logs`
// WebSocket fanout and a `/healthz` liveness endpoint. Grounded on
// lookatitude-beluga-ai's webhook_server/main.go (gorilla/mux router,
// http.Server with explicit timeouts, signal-driven graceful shutdown).
type Server struct {
	gw  *gateway.Gateway
	hub *Hub
	log gateway.Logger

	httpServer *http.Server
}

// NewServer builds a front-end server bound to addr (e.g. ":8081"),
// fanning out gw's events over a `/logs` WebSocket.
func NewServer(addr string, gw *gateway.Gateway, log gateway.Logger) *Server {
	if log == nil {
		log = gateway.NoOpLogger{}
	}
	s := &Server{gw: gw, hub: NewHub(log), log: log}

	router := mux.NewRouter()
	router.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	gw.RegisterListener(s.hub.Broadcast)
	return s
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("front-end server shutdown error", "err", err)
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.hub.add(conn)
	defer s.hub.remove(conn)

	s.sendActiveCallsList(ctx, conn)

	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}
		s.dispatch(ctx, conn, frame)
	}
}

func (s *Server) sendActiveCallsList(ctx context.Context, conn *websocket.Conn) {
	ev := gateway.FrontendEvent{
		Type:      "active_calls_list",
		Timestamp: time.Now(),
		Source:    "frontend",
		Payload:   s.gw.ActiveCallSummaries(),
	}
	wsjson.Write(ctx, conn, ev)
}

func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, frame inboundFrame) {
	switch frame.Type {
	case "session.update":
		s.handleSessionUpdate(frame)

	case "get_call_configuration":
		o, ok := s.resolveCall(frame.CallID)
		if !ok {
			return
		}
		wsjson.Write(ctx, conn, gateway.FrontendEvent{
			Type:      "call_configuration",
			CallID:    o.CallID(),
			Timestamp: time.Now(),
			Source:    "frontend",
			Payload:   o.ConfigSnapshot(),
		})

	case "get_conversation_history":
		s.handleGetConversationHistory(ctx, conn, frame)
	}
}

func (s *Server) handleSessionUpdate(frame inboundFrame) {
	if len(frame.Session) == 0 {
		return
	}
	var fields gateway.SessionFields
	if err := json.Unmarshal(frame.Session, &fields); err != nil {
		s.log.Warn("session.update: invalid session fields", "err", err)
		return
	}
	o, ok := s.resolveCall(frame.CallID)
	if !ok {
		return
	}
	o.UpdateConfig(fields)
}

func (s *Server) handleGetConversationHistory(ctx context.Context, conn *websocket.Conn, frame inboundFrame) {
	o, ok := s.resolveCall(frame.CallID)
	if !ok {
		return
	}

	reader, ok := s.gw.ConversationLog().(conversationHistoryReader)
	if !ok {
		wsjson.Write(ctx, conn, gateway.FrontendEvent{
			Type:      "conversation_history",
			CallID:    o.CallID(),
			Timestamp: time.Now(),
			Source:    "frontend",
			Payload:   o.History(),
		})
		return
	}

	entries, err := reader.All(ctx, o.CallID())
	if err != nil {
		s.log.Warn("get_conversation_history failed", "callId", o.CallID(), "err", err)
		return
	}
	wsjson.Write(ctx, conn, gateway.FrontendEvent{
		Type:      "conversation_history",
		CallID:    o.CallID(),
		Timestamp: time.Now(),
		Source:    "frontend",
		Payload:   entries,
	})
}

// resolveCall looks up callID, falling back to the gateway's primary call
// when callID is empty, per spec §4.10's "applies to... the current primary
// call" rule.
func (s *Server) resolveCall(callID string) (*gateway.CallOrchestrator, bool) {
	if callID == "" {
		callID = s.gw.PrimaryCallID()
	}
	if callID == "" {
		return nil, false
	}
	return s.gw.Call(callID)
}

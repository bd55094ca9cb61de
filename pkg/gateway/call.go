package gateway

import (
	"sync"
	"time"
)

// Message is one turn of conversational context, mirroring the shape the
// conversation log persists.
type Message struct {
	Role    string // "caller", "bot", "system", "tool"
	Content string
}

// ConversationSession holds the mutable conversational state for one call:
// message history and tool-collected parameters. Adapted from the teacher's
// ConversationSession (mutex-guarded field access, each getter/setter taking
// its own lock rather than exposing the struct for direct mutation) but
// narrowed to what this domain needs — voice/model/instructions live in
// gateway.Config instead, since here they are per-call configuration, not
// conversational state.
type ConversationSession struct {
	mu         sync.RWMutex
	history    []Message
	parameters map[string]interface{}
}

// NewConversationSession creates an empty session.
func NewConversationSession() *ConversationSession {
	return &ConversationSession{parameters: make(map[string]interface{})}
}

// AddMessage appends one turn to the history.
func (s *ConversationSession) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content})
}

// History returns a copy of the accumulated conversation history.
func (s *ConversationSession) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// SetParameters merges params into the session's stored parameter map. This
// is the sole effect of the save_parameters tool (ToolRegistry.RegisterBuiltins).
func (s *ConversationSession) SetParameters(params map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range params {
		s.parameters[k] = v
	}
}

// Parameters returns a copy of the stored parameter map.
func (s *ConversationSession) Parameters() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.parameters))
	for k, v := range s.parameters {
		out[k] = v
	}
	return out
}

// CallMetrics is the small per-call counter set surfaced in the
// active_calls_list front-end payload. Conversation-log entries do not
// carry it.
type CallMetrics struct {
	TurnsCompleted     int
	BargeIns           int
	DTMFFinalizations  int
	CleanupReason      string
}

// Call is the per-call record spec §3 describes: the orchestrator's
// exclusive territory. External adapters hold only the call identifier and
// invoke orchestrator methods — nothing here is touched directly from
// outside the call's owning goroutine.
type Call struct {
	ID string

	ChannelID         string
	MediaChannelID    string
	ListenerChannelID string
	MixerBridgeID     string
	ListenerBridgeID  string

	State CallState

	// Orthogonal flags, deliberately minimal (spec §9's "avoid boolean
	// sprawl" note): state plus these four is the whole picture.
	CleanupCalled     bool
	OverallTTSActive  bool
	DTMFModeActive    bool
	FirstInteraction  bool

	Config     Config
	Session    *ConversationSession
	Metrics    CallMetrics
	CreatedAt  time.Time

	Timers   *TimerSet
	Playback *PlaybackQueue
	DTMF     *DTMFCollector

	CurrentResponseID string

	cleanupOnce sync.Once
}

// NewCall constructs a fresh call record in state Arming with
// FirstInteraction true, per spec §3's lifecycle and invariants.
func NewCall(id string, cfg Config) *Call {
	return &Call{
		ID:               id,
		State:            StateArming,
		FirstInteraction: true,
		Config:           cfg,
		Session:          NewConversationSession(),
		CreatedAt:        time.Now(),
		Timers:           NewTimerSet(),
	}
}

// MarkCleanedUp sets the at-most-once cleanup flag and reports whether this
// call was the one to set it (false means cleanup already ran).
func (c *Call) MarkCleanedUp() bool {
	did := false
	c.cleanupOnce.Do(func() {
		c.CleanupCalled = true
		did = true
	})
	return did
}

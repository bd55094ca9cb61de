package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// InferenceEventType classifies a normalized event surfaced by
// InferenceSessionAdapter, per spec §4.6.
type InferenceEventType string

const (
	InferenceSpeechStarted     InferenceEventType = "speech-started"
	InferenceInterimTranscript InferenceEventType = "interim-transcript"
	InferenceFinalTranscript   InferenceEventType = "final-transcript"
	InferenceAudioChunk        InferenceEventType = "audio-chunk"
	InferenceAudioStreamEnd    InferenceEventType = "audio-stream-end"
	InferenceToolCall          InferenceEventType = "tool-call"
	InferenceSessionError      InferenceEventType = "session-error"
	InferenceSessionEnded      InferenceEventType = "session-ended"
)

// InferenceEvent is one normalized event from the inference session.
type InferenceEvent struct {
	Type InferenceEventType

	Text       string
	Audio      []byte
	ResponseID string

	ToolCallID string
	ToolName   string
	ToolArgs   json.RawMessage

	Err    error
	Reason string
}

// SessionConfig is the session.update frame's payload, per spec §6.
type SessionConfig struct {
	Modalities           []string          `json:"modalities"`
	TurnDetection        map[string]interface{} `json:"turn_detection"`
	Voice                string            `json:"voice"`
	InputAudioFormat     string            `json:"input_audio_format"`
	InputAudioSampleRate int               `json:"input_audio_sample_rate"`
	OutputAudioFormat    string            `json:"output_audio_format"`
	OutputAudioSampleRate int              `json:"output_audio_sample_rate"`
	Instructions         string            `json:"instructions"`
	Tools                []json.RawMessage `json:"tools,omitempty"`
}

// InferenceSessionAdapter opens one outbound WebSocket per activation to the
// realtime model endpoint. Grounded on the teacher's LokutorTTS WebSocket
// client (pkg/providers/tts/lokutor.go): a single mutex-guarded
// *websocket.Conn, wsjson for control frames, a conn.Read loop dispatching
// on message kind, conn reset to nil plus abnormal-close on any I/O error.
type InferenceSessionAdapter struct {
	endpoint string
	apiKey   string

	mu        sync.Mutex
	conn      *websocket.Conn
	events    chan InferenceEvent
	closeOnce sync.Once
	endReason string
}

// NewInferenceSessionAdapter builds an adapter for one call. endpoint is the
// full `wss://<host>/v1/realtime?model=<id>` URL.
func NewInferenceSessionAdapter(endpoint, apiKey string) *InferenceSessionAdapter {
	return &InferenceSessionAdapter{
		endpoint: endpoint,
		apiKey:   apiKey,
		events:   make(chan InferenceEvent, 64),
	}
}

// Start dials the socket, sends the session configuration frame, and begins
// the read loop on its own goroutine. The returned channel delivers every
// normalized event until Stop or a fatal error; exactly one
// InferenceSessionEnded event is always eventually sent before it closes.
func (a *InferenceSessionAdapter) Start(ctx context.Context, cfg SessionConfig) (<-chan InferenceEvent, error) {
	header := map[string][]string{"Authorization": {"Bearer " + a.apiKey}}
	conn, _, err := websocket.Dial(ctx, a.endpoint, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("inference session: dial %s: %w", safeHost(a.endpoint), err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	if err := wsjson.Write(ctx, conn, map[string]interface{}{"type": "session.update", "session": cfg}); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "session.update write failed")
		return nil, fmt.Errorf("inference session: send session.update: %w", err)
	}

	go a.readLoop(ctx)
	return a.events, nil
}

// SendAudio forwards one packet of caller audio as an
// input_audio_buffer.append frame, base64-encoded per spec §6.
func (a *InferenceSessionAdapter) SendAudio(ctx context.Context, pcm []byte) error {
	conn := a.currentConn()
	if conn == nil {
		return ErrNoActiveSession
	}
	frame := map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return fmt.Errorf("inference session: send audio: %w", err)
	}
	return nil
}

// SendToolResult forwards a tool's result as the paired
// conversation.item.create / response.create frames and requests the next
// response, per spec §4.6.
func (a *InferenceSessionAdapter) SendToolResult(ctx context.Context, callID string, result json.RawMessage) error {
	conn := a.currentConn()
	if conn == nil {
		return ErrNoActiveSession
	}

	item := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  string(result),
		},
	}
	if err := wsjson.Write(ctx, conn, item); err != nil {
		return fmt.Errorf("inference session: send tool result: %w", err)
	}
	if err := wsjson.Write(ctx, conn, map[string]interface{}{"type": "response.create"}); err != nil {
		return fmt.Errorf("inference session: request next response: %w", err)
	}
	return nil
}

// Stop closes the socket and guarantees a single session-ended event with
// reason is surfaced before the events channel closes.
func (a *InferenceSessionAdapter) Stop(reason string) {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		conn := a.conn
		a.conn = nil
		a.endReason = reason
		a.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, reason)
		}
	})
}

func (a *InferenceSessionAdapter) currentConn() *websocket.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

func (a *InferenceSessionAdapter) readLoop(ctx context.Context) {
	defer a.finish()

	for {
		conn := a.currentConn()
		if conn == nil {
			return
		}

		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			a.mu.Lock()
			stopped := a.conn == nil // Stop already closed the socket
			if a.conn != nil {
				a.conn.Close(websocket.StatusAbnormalClosure, "read failed")
				a.conn = nil
			}
			a.mu.Unlock()
			if !stopped {
				a.emit(InferenceEvent{Type: InferenceSessionError, Err: fmt.Errorf("inference session: read: %w", err)})
			}
			return
		}

		a.dispatch(raw)
	}
}

// wireFrame is the minimal envelope every inbound frame shares.
type wireFrame struct {
	Type string `json:"type"`
}

func (a *InferenceSessionAdapter) dispatch(raw json.RawMessage) {
	var env wireFrame
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	switch env.Type {
	case "speech_started", "input_audio_buffer.speech_started":
		a.emit(InferenceEvent{Type: InferenceSpeechStarted})

	case "transcript.interim", "conversation.item.input_audio_transcription.delta":
		var f struct {
			Text string `json:"text"`
		}
		json.Unmarshal(raw, &f)
		a.emit(InferenceEvent{Type: InferenceInterimTranscript, Text: f.Text})

	case "transcript.final", "conversation.item.input_audio_transcription.completed":
		var f struct {
			Text string `json:"text"`
		}
		json.Unmarshal(raw, &f)
		a.emit(InferenceEvent{Type: InferenceFinalTranscript, Text: f.Text})

	case "response.audio.delta", "audio.delta":
		var f struct {
			Delta      string `json:"delta"`
			ResponseID string `json:"response_id"`
		}
		json.Unmarshal(raw, &f)
		audioBytes, err := base64.StdEncoding.DecodeString(f.Delta)
		if err != nil {
			return
		}
		a.emit(InferenceEvent{Type: InferenceAudioChunk, Audio: audioBytes, ResponseID: f.ResponseID})

	case "response.audio.done":
		var f struct {
			ResponseID string `json:"response_id"`
		}
		json.Unmarshal(raw, &f)
		a.emit(InferenceEvent{Type: InferenceAudioStreamEnd, ResponseID: f.ResponseID})

	case "response.output_item.done":
		var f struct {
			Item struct {
				Type      string          `json:"type"`
				CallID    string          `json:"call_id"`
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"item"`
		}
		json.Unmarshal(raw, &f)
		if f.Item.Type == "function_call" {
			a.emit(InferenceEvent{
				Type:       InferenceToolCall,
				ToolCallID: f.Item.CallID,
				ToolName:   f.Item.Name,
				ToolArgs:   f.Item.Arguments,
			})
		}

	case "error":
		var f struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.Unmarshal(raw, &f)
		a.emit(InferenceEvent{Type: InferenceSessionError, Err: fmt.Errorf("inference session: %s", f.Error.Message)})
	}
}

func (a *InferenceSessionAdapter) finish() {
	a.mu.Lock()
	reason := a.endReason
	a.mu.Unlock()
	if reason == "" {
		reason = "closed"
	}
	a.emit(InferenceEvent{Type: InferenceSessionEnded, Reason: reason})
	close(a.events)
}

// emit sends non-blocking; if the events channel is already closed (Stop
// raced with a trailing read), the recover prevents a panic from escaping
// the read loop.
func (a *InferenceSessionAdapter) emit(ev InferenceEvent) {
	defer func() { recover() }()
	select {
	case a.events <- ev:
	default:
	}
}

func safeHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<unparseable>"
	}
	return u.Host
}

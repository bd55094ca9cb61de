package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/callbridge/voicegateway/pkg/gateway"
)

// ariEvent is the union of the ARI event shapes this adapter consumes,
// per spec §4.9's emitted-event list. Fields absent from a given event type
// simply decode as zero values.
type ariEvent struct {
	Type string `json:"type"`

	Channel *struct {
		ID string `json:"id"`
	} `json:"channel,omitempty"`

	Playback *struct {
		ID        string `json:"id"`
		TargetURI string `json:"target_uri"`
	} `json:"playback,omitempty"`

	Digit string `json:"digit,omitempty"`
}

// EventStream is the WebSocket half of the PBX Control Adapter. Grounded on
// the teacher's LokutorTTS WebSocket client shape (mutex-guarded conn,
// lazy dial, a read loop switching on message content) but inverted from a
// request/response client into a long-lived subscriber: it never writes to
// the socket, only reads and dispatches.
type EventStream struct {
	wsURL string
	log   gateway.Logger
	gw    *gateway.Gateway

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewEventStream builds an EventStream against an ARI events endpoint such
// as "ws://127.0.0.1:8088/ari/events?app=voicegateway&api_key=user:pass&subscribeAll=true".
func NewEventStream(wsURL string, gw *gateway.Gateway, log gateway.Logger) *EventStream {
	if log == nil {
		log = gateway.NoOpLogger{}
	}
	return &EventStream{wsURL: wsURL, gw: gw, log: log}
}

// Run dials the event stream and reads until ctx is cancelled or the
// connection is lost, dispatching each decoded event to the owning call's
// orchestrator. It returns nil only when ctx is cancelled; any other return
// means the connection was lost and the caller should redial (main.go loops
// on Run with a short backoff, since ARI offers no resumable subscription).
func (e *EventStream) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, e.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ari events: dial: %w", err)
	}
	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.conn = nil
		e.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.log.Warn("ari event stream read failed", "err", err)
			return fmt.Errorf("ari events: read: %w", err)
		}

		var ev ariEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			e.log.Warn("ari event decode failed", "err", err)
			continue
		}
		e.dispatch(ctx, ev)
	}
}

func (e *EventStream) dispatch(ctx context.Context, ev ariEvent) {
	switch ev.Type {
	case "StasisStart":
		if ev.Channel == nil {
			return
		}
		if _, ok := e.gw.CallByChannelID(ev.Channel.ID); ok {
			return
		}
		if _, err := e.gw.StartCall(ctx, ev.Channel.ID, e.gw.DefaultCallConfig()); err != nil {
			e.log.Error("failed to start call", "channel", ev.Channel.ID, "err", err)
		}

	case "StasisEnd", "ChannelHangupRequest":
		if ev.Channel == nil {
			return
		}
		if o, ok := e.gw.CallByChannelID(ev.Channel.ID); ok {
			o.HandleChannelEnded()
		}

	case "ChannelDtmfReceived":
		if ev.Channel == nil {
			return
		}
		if o, ok := e.gw.CallByChannelID(ev.Channel.ID); ok {
			o.HandleDTMF(ev.Digit)
		}

	case "ChannelTalkingStarted":
		if ev.Channel == nil {
			return
		}
		if o, ok := e.gw.CallByChannelID(ev.Channel.ID); ok {
			o.HandleTalkStarted()
		}

	case "ChannelTalkingFinished":
		if ev.Channel == nil {
			return
		}
		if o, ok := e.gw.CallByChannelID(ev.Channel.ID); ok {
			o.HandleTalkFinished()
		}

	case "PlaybackFinished":
		if ev.Playback == nil {
			return
		}
		channelID := strings.TrimPrefix(ev.Playback.TargetURI, "channel:")
		if o, ok := e.gw.CallByChannelID(channelID); ok {
			o.HandlePlaybackFinished(ev.Playback.ID, true)
		}

	case "PlaybackFailed":
		if ev.Playback == nil {
			return
		}
		channelID := strings.TrimPrefix(ev.Playback.TargetURI, "channel:")
		if o, ok := e.gw.CallByChannelID(channelID); ok {
			o.HandlePlaybackFinished(ev.Playback.ID, false)
		}
	}
}

// DialURL builds an ARI events WebSocket URL from its parts, applying the
// api_key=user:pass convention Asterisk's ARI documentation uses for the
// WebSocket upgrade (HTTP basic auth has no equivalent on a raw websocket
// handshake without custom headers). cmd/gateway uses this to assemble the
// events endpoint from discrete configuration rather than a pre-built URL.
func DialURL(baseWS, appName, username, password string) string {
	u, err := url.Parse(baseWS)
	if err != nil {
		return baseWS
	}
	q := u.Query()
	q.Set("app", appName)
	q.Set("api_key", username+":"+password)
	q.Set("subscribeAll", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

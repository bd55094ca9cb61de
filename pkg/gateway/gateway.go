package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Gateway is the long-lived, provider-holding owner spec.md §9 asks for: it
// mints one CallOrchestrator per PBX channel, tracks every active call in a
// mutex-guarded registry, and fans normalized events out to the front-end.
// Grounded on the teacher's Orchestrator (provider fields plus a
// sync.RWMutex guarding config, one long-lived instance handing out
// per-session objects via NewManagedStream) generalized from a single
// stt/llm/tts provider set to the one inference-endpoint/PBX-adapter pair
// this domain needs, plus the active-calls bookkeeping the teacher never
// needed (its ManagedStream instances were not tracked centrally).
type Gateway struct {
	pbx        PBXAdapter
	log        Logger
	convLog    ConversationLog
	tools      *ToolRegistry
	fallback   FallbackTranscriber
	rtpHostIP  string
	artifacts  ArtifactWriter
	removeArt  ArtifactRemover
	newSession SessionFactory
	sessionCfg func(cfg Config) SessionConfig
	defaultCfg Config

	mu        sync.RWMutex
	calls     map[string]*CallOrchestrator
	primary   string
	listeners []func(FrontendEvent)
}

// GatewayDeps bundles the collaborators a Gateway is built from.
type GatewayDeps struct {
	PBX             PBXAdapter
	Log             Logger
	ConversationLog ConversationLog
	Tools           *ToolRegistry
	Fallback        FallbackTranscriber
	RTPHostIP       string
	ArtifactWriter  ArtifactWriter
	ArtifactRemover ArtifactRemover
	NewSession      SessionFactory
	SessionConfig   func(cfg Config) SessionConfig
	DefaultConfig   Config
}

// NewGateway constructs an empty registry. Use RegisterListener to attach
// the front-end fanout before any call starts, since events published
// during Arm would otherwise be dropped.
func NewGateway(deps GatewayDeps) *Gateway {
	log := deps.Log
	if log == nil {
		log = NoOpLogger{}
	}
	convLog := deps.ConversationLog
	if convLog == nil {
		convLog = NoOpConversationLog{}
	}
	return &Gateway{
		pbx:        deps.PBX,
		log:        log,
		convLog:    convLog,
		tools:      deps.Tools,
		fallback:   deps.Fallback,
		rtpHostIP:  deps.RTPHostIP,
		artifacts:  deps.ArtifactWriter,
		removeArt:  deps.ArtifactRemover,
		newSession: deps.NewSession,
		sessionCfg: deps.SessionConfig,
		defaultCfg: deps.DefaultConfig,
		calls:      make(map[string]*CallOrchestrator),
	}
}

// RegisterListener subscribes fn to every FrontendEvent published by any
// call this gateway owns. Not safe to call concurrently with StartCall.
func (g *Gateway) RegisterListener(fn func(FrontendEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gateway) publish(ev FrontendEvent) {
	g.mu.RLock()
	listeners := g.listeners
	g.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Publish broadcasts ev to every registered front-end listener. Exported
// for adapters that sit outside any single call's scope — such as the ARI
// event stream reporting its own connection status via a null-callId
// event (spec.md §6's ari_connection_status) — since those adapters have
// no CallOrchestrator to route through.
func (g *Gateway) Publish(ev FrontendEvent) {
	g.publish(ev)
}

// StartCall answers channelID, arms a fresh CallOrchestrator for it, and
// registers it in the active-calls map under a newly minted call id. The
// first call registered becomes the "primary" call surfaced to a
// single-line operator view (spec.md §9); callers juggling more than one
// concurrent call should use ActiveCallIDs instead.
func (g *Gateway) StartCall(ctx context.Context, channelID string, cfg Config) (*CallOrchestrator, error) {
	if g.pbx == nil {
		return nil, fmt.Errorf("gateway: no PBX adapter configured")
	}

	id := uuid.NewString()
	call := NewCall(id, cfg)
	call.ChannelID = channelID

	o := NewCallOrchestrator(call, CallOrchestratorDeps{
		PBX:             g.pbx,
		Log:             g.log,
		ConversationLog: g.convLog,
		Publish:         g.publish,
		NewSession:      g.newSession,
		Tools:           g.tools,
		Fallback:        g.fallback,
		RTPHostIP:       g.rtpHostIP,
		SessionConfig:   g.sessionCfg,
		ArtifactWriter:  g.artifacts,
		ArtifactRemover: g.removeArt,
	})

	g.mu.Lock()
	g.calls[id] = o
	if g.primary == "" {
		g.primary = id
	}
	g.mu.Unlock()

	go o.Run()
	go g.reapWhenDone(id, o)

	o.Arm(ctx)
	return o, nil
}

// reapWhenDone removes id from the active-calls map once its orchestrator's
// Run loop exits, which happens exactly once per call after Cleanup cancels
// its context.
func (g *Gateway) reapWhenDone(id string, o *CallOrchestrator) {
	<-o.Done()
	g.mu.Lock()
	delete(g.calls, id)
	if g.primary == id {
		g.primary = ""
		for other, oc := range g.calls {
			if g.primary == "" || oc.call.CreatedAt.Before(g.calls[g.primary].call.CreatedAt) {
				g.primary = other
			}
		}
	}
	g.mu.Unlock()
}

// ConversationLog returns the conversation log this gateway was built with,
// for the front-end's get_conversation_history request — which needs the
// Redis-backed implementation's All method, not just Append.
func (g *Gateway) ConversationLog() ConversationLog {
	return g.convLog
}

// DefaultCallConfig returns the configuration StartCall uses when the
// caller has no per-channel override, for pkg/ari's StasisStart handler.
func (g *Gateway) DefaultCallConfig() Config {
	return g.defaultCfg
}

// Call returns the orchestrator for id, if still active.
func (g *Gateway) Call(id string) (*CallOrchestrator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.calls[id]
	return o, ok
}

// CallByChannelID finds the call owning channelID, whether it names the
// primary channel, the media-injection channel, or the listener channel —
// pkg/ari's event stream only ever learns a raw ARI channel id, never the
// internally minted call id.
func (g *Gateway) CallByChannelID(channelID string) (*CallOrchestrator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, o := range g.calls {
		if o.call.ChannelID == channelID || o.call.MediaChannelID == channelID || o.call.ListenerChannelID == channelID {
			return o, true
		}
	}
	return nil, false
}

// ActiveCallIDs returns the ids of every currently tracked call.
func (g *Gateway) ActiveCallIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.calls))
	for id := range g.calls {
		ids = append(ids, id)
	}
	return ids
}

// PrimaryCallID returns the id of the longest-tracked still-active call, or
// "" if none are active.
func (g *Gateway) PrimaryCallID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.primary
}

// ActiveCallSummaries mirrors the active_calls_list front-end payload shape
// from spec.md §6: one row per active call with its current state and
// metrics.
type ActiveCallSummary struct {
	CallID  string
	State   CallState
	Metrics CallMetrics
}

// ActiveCallSummaries snapshots every active call's state and metrics.
func (g *Gateway) ActiveCallSummaries() []ActiveCallSummary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ActiveCallSummary, 0, len(g.calls))
	for id, o := range g.calls {
		out = append(out, ActiveCallSummary{CallID: id, State: o.State(), Metrics: o.MetricsSnapshot()})
	}
	return out
}

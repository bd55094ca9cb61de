package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callbridge/voicegateway/internal/rtp"
	"github.com/callbridge/voicegateway/pkg/audio"
)

// FrontendEvent is one standardized event broadcast to every connected
// operator socket, per spec §6/§4.10.
type FrontendEvent struct {
	Type      string      `json:"type"`
	CallID    string      `json:"callId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Payload   interface{} `json:"payload,omitempty"`
	LogLevel  string      `json:"logLevel,omitempty"`
}

// SessionFactory opens a new inference session adapter for one activation.
// Supplied by Gateway, which holds the shared endpoint/credential config;
// the orchestrator only knows how to drive the adapter, not how to build
// one.
type SessionFactory func() *InferenceSessionAdapter

// CallOrchestrator is the per-call state machine, spec §4.8. It owns the
// call record exclusively; every external trigger arrives as a posted
// closure executed serially on the orchestrator's own goroutine — the
// "serialized mailbox" spec §5 requires, grounded on the teacher's
// ManagedStream (one goroutine per call, non-blocking emit with panic
// recovery, sync.Once-guarded close, context cancellation reaching every
// suspension point).
type CallOrchestrator struct {
	call *Call

	pbx        PBXAdapter
	log        Logger
	convLog    ConversationLog
	publish    func(FrontendEvent)
	newSession SessionFactory
	tools      *ToolRegistry
	fallback   FallbackTranscriber
	rtpHostIP  string
	sessionCfg func(cfg Config) SessionConfig
	artifacts  ArtifactWriter
	removeArt  ArtifactRemover

	scheduler *RecognitionScheduler
	session   *InferenceSessionAdapter
	tts       *TTSPipeline
	energy    *EnergyDetector
	receiver  *rtp.Receiver

	greetingHandle string

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan func()

	done chan struct{}
}

// CallOrchestratorDeps bundles the collaborators NewCallOrchestrator wires
// in, so call sites don't need a long positional parameter list.
type CallOrchestratorDeps struct {
	PBX             PBXAdapter
	Log             Logger
	ConversationLog ConversationLog
	Publish         func(FrontendEvent)
	NewSession      SessionFactory
	Tools           *ToolRegistry
	Fallback        FallbackTranscriber
	RTPHostIP       string
	SessionConfig   func(cfg Config) SessionConfig
	ArtifactWriter  ArtifactWriter
	ArtifactRemover ArtifactRemover
}

// NewCallOrchestrator builds an orchestrator for call in state Arming. Run
// must be started on its own goroutine before posting anything to it.
func NewCallOrchestrator(call *Call, deps CallOrchestratorDeps) *CallOrchestrator {
	ctx, cancel := context.WithCancel(context.Background())

	log := deps.Log
	if log == nil {
		log = NoOpLogger{}
	}
	convLog := deps.ConversationLog
	if convLog == nil {
		convLog = NoOpConversationLog{}
	}
	fallback := deps.Fallback
	if fallback == nil {
		fallback = NoFallbackTranscriber{}
	}
	tools := deps.Tools
	if tools == nil {
		tools = NewToolRegistry()
		tools.RegisterBuiltins()
	}
	writeArtifact := deps.ArtifactWriter
	if writeArtifact == nil {
		writeArtifact = func(name string, data []byte) (string, error) {
			return "", fmt.Errorf("tts pipeline: no artifact writer configured")
		}
	}
	removeArtifact := deps.ArtifactRemover
	if removeArtifact == nil {
		removeArtifact = func(mediaRef string) error { return nil }
	}

	o := &CallOrchestrator{
		call:       call,
		pbx:        deps.PBX,
		log:        log,
		convLog:    convLog,
		publish:    deps.Publish,
		newSession: deps.NewSession,
		tools:      tools,
		fallback:   fallback,
		rtpHostIP:  deps.RTPHostIP,
		sessionCfg: deps.SessionConfig,
		artifacts:  writeArtifact,
		removeArt:  removeArtifact,
		ctx:        ctx,
		cancel:     cancel,
		inbox:      make(chan func(), 256),
		done:       make(chan struct{}),
	}

	o.scheduler = NewRecognitionScheduler(call.Config,
		o.activateSession,
		func(name TimerName, onExpire func()) {
			call.Timers.Set(name, durationFor(call.Config, name), func() { o.Post(o.guarded(onExpire)) })
		},
		call.Timers.Cancel,
		o.requestTalkDetect,
		o.removeTalkDetect,
		o.flushEnergyBuffer,
		o.stopCurrentPlayback,
		func() { o.Cleanup(ReasonVADMaxWaitPostPrompt, nil) },
	)

	o.energy = NewEnergyDetector(call.Config.VADTalkThreshold, time.Duration(call.Config.VADSilenceThresholdMs)*time.Millisecond, 7)

	return o
}

// durationFor maps a scheduler-armed timer name to its configured duration.
func durationFor(cfg Config, name TimerName) time.Duration {
	switch name {
	case TimerBargeInActivation:
		return cfg.BargeInDelay
	case TimerVADInitialSilenceDel:
		return cfg.VADInitialSilenceDelay
	case TimerVADMaxWaitAfterProm:
		return cfg.VADMaxWaitAfterPrompt
	case TimerNoSpeechBegin:
		return cfg.NoSpeechBeginTimeout
	case TimerSpeechEndSilence:
		return cfg.SpeechEndSilenceTimeout
	case TimerMaxRecognitionDur:
		return cfg.MaxRecognitionDuration
	case TimerDTMFInterDigit:
		return cfg.DTMFInterDigitTimeout
	case TimerDTMFFinal:
		return cfg.DTMFFinalTimeout
	default:
		return 0
	}
}

// Run processes the mailbox until the context is cancelled. Call this on
// its own goroutine immediately after construction.
func (o *CallOrchestrator) Run() {
	defer close(o.done)
	for {
		select {
		case fn := <-o.inbox:
			fn()
		case <-o.ctx.Done():
			o.drainInbox()
			return
		}
	}
}

// drainInbox runs any already-queued closures once after cancellation so a
// Cleanup posted concurrently with context cancellation still executes.
func (o *CallOrchestrator) drainInbox() {
	for {
		select {
		case fn := <-o.inbox:
			fn()
		default:
			return
		}
	}
}

// Post enqueues fn to run serially on the orchestrator goroutine. Safe to
// call from any goroutine (PBX event source, inference session reader,
// timer expiry).
func (o *CallOrchestrator) Post(fn func()) {
	select {
	case o.inbox <- fn:
	case <-o.ctx.Done():
	}
}

// guarded wraps fn so it is skipped once cleanup has been triggered,
// satisfying spec §8's "no further state-mutating message is processed"
// invariant.
func (o *CallOrchestrator) guarded(fn func()) func() {
	return func() {
		if o.call.CleanupCalled {
			return
		}
		fn()
	}
}

// Done is closed once Run has exited.
func (o *CallOrchestrator) Done() <-chan struct{} {
	return o.done
}

// --- Arming -----------------------------------------------------------

// Arm wires the call's media path: answers the channel, binds an RTP
// receiver, creates the mixer bridge and auxiliary channels, then starts
// either the greeting or the recognition scheduler. Call this once, before
// Run's goroutine needs to see any PBX events.
func (o *CallOrchestrator) Arm(ctx context.Context) {
	if err := o.pbx.Answer(ctx, o.call.ChannelID); err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("answer: %w", err))
		return
	}

	receiver, err := rtp.New(o.rtpHostIP)
	if err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("bind rtp: %w", err))
		return
	}
	o.receiver = receiver

	bridgeID, err := o.pbx.CreateMixerBridge(ctx)
	if err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("create bridge: %w", err))
		return
	}
	o.call.MixerBridgeID = bridgeID

	addr := receiver.LocalAddr()
	mediaChan, err := o.pbx.CreateMediaInjectionChannel(ctx, addr.IP.String(), addr.Port, "ulaw")
	if err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("create media channel: %w", err))
		return
	}
	o.call.MediaChannelID = mediaChan

	listenerChan, err := o.pbx.CreateListenerChannel(ctx, o.call.ChannelID, "both")
	if err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("create listener channel: %w", err))
		return
	}
	o.call.ListenerChannelID = listenerChan

	if err := o.pbx.AddToBridge(ctx, bridgeID, o.call.ChannelID); err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("add channel to bridge: %w", err))
		return
	}
	if err := o.pbx.AddToBridge(ctx, bridgeID, listenerChan); err != nil {
		o.Cleanup(ReasonStasisStartError, fmt.Errorf("add listener to bridge: %w", err))
		return
	}

	o.call.Playback = NewPlaybackQueue(o.playMedia)
	o.call.Playback.OnDrained = func() { o.Post(o.guarded(o.onPlaybackDrained)) }
	o.call.Playback.OnInterrupt = func() {
		o.emitFrontend("tts_playback_interrupted", nil, "")
	}
	codec := o.call.Config.TTSCodec
	if codec == "" {
		codec = audio.CodecPCM16
	}
	sampleRate := o.call.Config.TTSSampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}
	o.tts = NewTTSPipeline(o.call.ID, o.call.Config.TTSPlaybackMode, codec, sampleRate, o.artifacts, o.removeArt, o.call.Playback)

	go receiver.Start()
	go o.pumpRTP()

	if o.call.Config.Greeting != "" {
		o.call.State = StateGreeting
		o.call.OverallTTSActive = true
		o.scheduler.ArmForTurn(o.call.FirstInteraction, true)
		handle, err := o.pbx.Play(ctx, o.call.ChannelID, o.call.Config.Greeting)
		if err != nil {
			o.emitFrontend("playback_failed_to_start", map[string]string{"media": o.call.Config.Greeting}, "warn")
			o.onGreetingFinished()
			return
		}
		o.greetingHandle = handle
		o.emitFrontend("playback_started", map[string]string{"media": o.call.Config.Greeting}, "")
	} else {
		o.call.State = StateListening
		o.scheduler.ArmForTurn(o.call.FirstInteraction, false)
	}

	o.emitFrontend("call_resources_initialized", nil, "")
}

func (o *CallOrchestrator) pumpRTP() {
	for {
		select {
		case payload, ok := <-o.receiver.Payloads():
			if !ok {
				return
			}
			data := payload.Data
			o.Post(o.guarded(func() { o.handleAudioPayload(data) }))
		case err, ok := <-o.receiver.Errs():
			if !ok {
				return
			}
			o.Post(func() { o.Cleanup(ReasonStasisStartError, err) })
			return
		case <-o.ctx.Done():
			return
		}
	}
}

// --- PBX-triggered transitions -----------------------------------------

func (o *CallOrchestrator) onGreetingFinished() {
	o.greetingHandle = ""
	o.call.OverallTTSActive = false
	o.call.State = StateListening
	o.scheduler.PlaybackFinished()
}

// HandlePlaybackFinished reports that a PBX playback completed (ok) or
// failed. Per spec §7, a playback failure is treated as playback-finished
// for scheduling purposes.
func (o *CallOrchestrator) HandlePlaybackFinished(handle string, ok bool) {
	o.Post(o.guarded(func() {
		if handle == o.greetingHandle {
			if !ok {
				o.emitFrontend("playback_failed_to_start", map[string]string{"handle": handle}, "warn")
			}
			o.onGreetingFinished()
			return
		}
		o.call.Playback.Finished(ok)
	}))
}

func (o *CallOrchestrator) onPlaybackDrained() {
	if o.call.State != StateSpeaking {
		return
	}
	o.call.OverallTTSActive = false
	if o.call.FirstInteraction {
		o.call.FirstInteraction = false
	}
	o.call.State = StateListening
	o.scheduler.ArmForTurn(o.call.FirstInteraction, false)
}

func (o *CallOrchestrator) playMedia(ref string) {
	ctx, cancel := context.WithTimeout(o.ctx, 5*time.Second)
	defer cancel()
	_, err := o.pbx.Play(ctx, o.call.ChannelID, ref)
	if err != nil {
		o.Post(o.guarded(func() {
			o.emitFrontend("playback_failed_to_start", map[string]string{"media": ref}, "warn")
			o.call.Playback.Finished(false)
		}))
		return
	}
	o.emitFrontend("playback_started", map[string]string{"media": ref}, "")
}

func (o *CallOrchestrator) stopCurrentPlayback() {
	if o.greetingHandle != "" {
		ctx, cancel := context.WithTimeout(o.ctx, 2*time.Second)
		defer cancel()
		o.absorbNotFound(o.pbx.StopPlayback(ctx, o.greetingHandle))
		o.greetingHandle = ""
	}
	if o.call.Playback != nil {
		o.call.Playback.Interrupt()
	}
}

// HandleTalkStarted reports a PBX talk-detect start event.
func (o *CallOrchestrator) HandleTalkStarted() {
	o.Post(o.guarded(func() {
		o.emitFrontend("vad_speech_detected_start", nil, "")
		o.scheduler.TalkStarted()
	}))
}

// HandleTalkFinished reports a PBX talk-detect end event.
func (o *CallOrchestrator) HandleTalkFinished() {
	o.Post(o.guarded(func() {
		o.emitFrontend("vad_speech_detected_end", nil, "")
	}))
}

// HandleDTMF reports one received digit.
func (o *CallOrchestrator) HandleDTMF(digit string) {
	o.Post(o.guarded(func() { o.handleDTMF(digit) }))
}

func (o *CallOrchestrator) handleDTMF(digit string) {
	if !o.call.Config.EnableDTMFRecognition {
		return
	}
	o.emitFrontend("dtmf_received", map[string]string{"digit": digit, "name": DigitName(digit)}, "")

	if !o.call.DTMFModeActive {
		o.enterDTMFMode()
	}

	res, done := o.call.DTMF.AddDigit(digit)
	if !done {
		return
	}
	o.finalizeDTMF(res)
}

func (o *CallOrchestrator) enterDTMFMode() {
	o.call.DTMFModeActive = true
	o.call.State = StateDTMF
	o.stopCurrentPlayback()
	if o.session != nil {
		o.session.Stop(ReasonDTMFTerminatorReceived)
		o.session = nil
	}
	o.energy.Reset()
	for _, name := range []TimerName{TimerBargeInActivation, TimerNoSpeechBegin, TimerInitialStreamIdle,
		TimerSpeechEndSilence, TimerMaxRecognitionDur, TimerVADInitialSilenceDel, TimerVADMaxWaitAfterProm} {
		o.call.Timers.Cancel(name)
	}
	ctx, cancel := context.WithTimeout(o.ctx, 2*time.Second)
	defer cancel()
	o.absorbNotFound(o.pbx.RemoveTalkDetect(ctx, o.call.ChannelID))

	o.call.DTMF = NewDTMFCollector(o.call.Config.DTMFMaxDigits, o.call.Config.DTMFTerminatorDigit,
		func() { o.call.Timers.Set(TimerDTMFInterDigit, o.call.Config.DTMFInterDigitTimeout, func() { o.Post(o.guarded(o.onDTMFInterDigitTimeout)) }) },
		func() {
			if !o.call.Timers.Running(TimerDTMFFinal) {
				o.call.Timers.Set(TimerDTMFFinal, o.call.Config.DTMFFinalTimeout, func() { o.Post(o.guarded(o.onDTMFFinalTimeout)) })
			}
		},
		func() {
			o.call.Timers.Cancel(TimerDTMFInterDigit)
			o.call.Timers.Cancel(TimerDTMFFinal)
		},
	)
	o.emitFrontend("dtmf_mode_activated", nil, "")
}

func (o *CallOrchestrator) onDTMFInterDigitTimeout() {
	if !o.call.DTMFModeActive {
		return
	}
	o.finalizeDTMF(o.call.DTMF.InterDigitTimeout())
}

func (o *CallOrchestrator) onDTMFFinalTimeout() {
	if !o.call.DTMFModeActive {
		return
	}
	o.finalizeDTMF(o.call.DTMF.FinalTimeout())
}

func (o *CallOrchestrator) finalizeDTMF(res DTMFResult) {
	ctx, cancel := context.WithTimeout(o.ctx, 2*time.Second)
	defer cancel()
	o.absorbNotFound(o.pbx.SetChannelVar(ctx, o.call.ChannelID, "DTMF_RESULT", res.Digits))
	o.emitFrontend("dtmf_input_finalized", map[string]string{"digits": res.Digits}, "")
	o.call.Metrics.DTMFFinalizations++
	o.Cleanup(res.Reason, nil)
}

// HandleChannelEnded reports the PBX channel has ended.
func (o *CallOrchestrator) HandleChannelEnded() {
	o.Post(func() { o.Cleanup(ReasonChannelEnded, nil) })
}

// UpdateConfig applies a partial configuration change from the operator
// front-end's session.update request (spec §6). Takes effect on the
// orchestrator's own goroutine like every other mutation.
func (o *CallOrchestrator) UpdateConfig(fields SessionFields) {
	o.Post(o.guarded(func() {
		o.call.Config = o.call.Config.Apply(fields)
		o.scheduler.SetConfig(o.call.Config)
		o.emitFrontend("session_update_applied", nil, "")
	}))
}

// CallID returns the call's identifier.
func (o *CallOrchestrator) CallID() string { return o.call.ID }

// ConfigSnapshot returns a copy of the call's current configuration, for
// the front-end's get_call_configuration request.
func (o *CallOrchestrator) ConfigSnapshot() Config { return o.call.Config }

// State returns the call's current state.
func (o *CallOrchestrator) State() CallState { return o.call.State }

// MetricsSnapshot returns a copy of the call's current metrics.
func (o *CallOrchestrator) MetricsSnapshot() CallMetrics { return o.call.Metrics }

// History returns the call's conversation history, for the front-end's
// get_conversation_history request.
func (o *CallOrchestrator) History() []Message { return o.call.Session.History() }

// --- Recognition scheduler side effects --------------------------------

func (o *CallOrchestrator) requestTalkDetect() {
	ctx, cancel := context.WithTimeout(o.ctx, 2*time.Second)
	defer cancel()
	if err := o.pbx.SetTalkDetect(ctx, o.call.ChannelID, int(o.call.Config.VADTalkThreshold*1000), o.call.Config.VADSilenceThresholdMs); err != nil {
		o.Cleanup(ReasonTalkDetectSetupFailed, err)
	}
}

func (o *CallOrchestrator) removeTalkDetect() {
	ctx, cancel := context.WithTimeout(o.ctx, 2*time.Second)
	defer cancel()
	o.absorbNotFound(o.pbx.RemoveTalkDetect(ctx, o.call.ChannelID))
}

func (o *CallOrchestrator) flushEnergyBuffer() {
	o.energy.Reset()
}

func (o *CallOrchestrator) activateSession() {
	if o.session != nil {
		return // at most one active session per call (spec §3 invariant)
	}
	o.call.Timers.Set(TimerNoSpeechBegin, o.call.Config.NoSpeechBeginTimeout, func() {
		o.Post(o.guarded(func() { o.Cleanup(ReasonNoSpeechBeginTimeout, nil) }))
	})
	o.call.Timers.Set(TimerMaxRecognitionDur, o.call.Config.MaxRecognitionDuration, func() {
		o.Post(o.guarded(func() { o.Cleanup(ReasonMaxRecognitionTimeout, nil) }))
	})

	session := o.newSession()
	o.session = session
	events, err := session.Start(o.ctx, o.sessionCfg(o.call.Config))
	if err != nil {
		o.Cleanup(ReasonOpenAIStreamError, err)
		return
	}
	o.emitFrontend("openai_stream_activated", nil, "")
	go o.pumpSessionEvents(events)
}

func (o *CallOrchestrator) pumpSessionEvents(events <-chan InferenceEvent) {
	for ev := range events {
		ev := ev
		o.Post(o.guarded(func() { o.handleInferenceEvent(ev) }))
	}
}

func (o *CallOrchestrator) handleInferenceEvent(ev InferenceEvent) {
	switch ev.Type {
	case InferenceSpeechStarted:
		o.call.Timers.Cancel(TimerNoSpeechBegin)
		o.call.Timers.Set(TimerInitialStreamIdle, o.call.Config.SpeechEndSilenceTimeout, func() {
			o.Post(o.guarded(func() { o.Cleanup(ReasonStreamIdleTimeout, nil) }))
		})
		if o.call.OverallTTSActive {
			o.call.Metrics.BargeIns++
			o.call.Playback.Interrupt()
			o.call.OverallTTSActive = false
		}
		o.emitFrontend("openai_speech_started", nil, "")

	case InferenceInterimTranscript:
		o.call.Timers.Cancel(TimerInitialStreamIdle)
		o.emitFrontend("openai_interim_transcript", map[string]string{"text": ev.Text}, "")

	case InferenceFinalTranscript:
		o.call.Session.AddMessage("caller", ev.Text)
		o.logConversation(ActorCaller, "transcript", ev.Text, "")
		o.emitFrontend("openai_final_transcript", map[string]string{"text": ev.Text}, "")
		o.call.Metrics.TurnsCompleted++
		o.call.State = StateSpeaking
		o.call.OverallTTSActive = true
		o.call.Timers.CancelAll()

	case InferenceAudioChunk:
		if o.call.CurrentResponseID != ev.ResponseID {
			o.call.CurrentResponseID = ev.ResponseID
			o.tts.BeginResponse(ev.ResponseID)
		}
		if err := o.tts.HandleChunk(ev.ResponseID, ev.Audio); err != nil {
			o.log.Warn("tts pipeline chunk failed", "call", o.call.ID, "error", err)
		}
		o.emitFrontend("openai_tts_chunk_received_and_queued", map[string]string{"responseId": ev.ResponseID}, "")

	case InferenceAudioStreamEnd:
		if err := o.tts.HandleStreamEnd(ev.ResponseID); err != nil {
			o.log.Warn("tts pipeline stream end failed", "call", o.call.ID, "error", err)
		}
		o.emitFrontend("openai_tts_stream_ended", map[string]string{"responseId": ev.ResponseID}, "")

	case InferenceToolCall:
		o.handleToolCall(ev)

	case InferenceSessionError:
		o.log.Warn("inference session error", "call", o.call.ID, "error", ev.Err)
		o.logConversation(ActorError, "session_error", errString(ev.Err), "")
		o.maybeRunFallback()
		o.Cleanup(ReasonOpenAIStreamError, ev.Err)

	case InferenceSessionEnded:
		o.session = nil
	}
}

func (o *CallOrchestrator) handleToolCall(ev InferenceEvent) {
	o.logConversation(ActorToolCall, "tool_call", string(ev.ToolArgs), ev.ToolName)
	result, err := o.tools.Invoke(o.ctx, ev.ToolName, o.call.Session, ev.ToolArgs)
	if err != nil {
		result = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	o.logConversation(ActorToolResponse, "tool_response", string(result), ev.ToolName)

	if o.session != nil {
		if err := o.session.SendToolResult(o.ctx, ev.ToolCallID, result); err != nil {
			o.log.Warn("send tool result failed", "call", o.call.ID, "error", err)
		}
	}
}

// maybeRunFallback calls the configured fallback transcriber, if any, and
// logs its best-effort text only. It passes no audio (a nil slice): the
// orchestrator keeps no buffer of the turn's caller audio. Per SPEC_FULL.md
// §5.2 this never drives a synthesized response.
func (o *CallOrchestrator) maybeRunFallback() {
	if _, ok := o.fallback.(NoFallbackTranscriber); ok {
		return
	}
	text, err := o.fallback.Transcribe(o.ctx, nil)
	if err != nil {
		return
	}
	o.logConversation(ActorSystem, "fallback_transcript", text, "")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (o *CallOrchestrator) logConversation(actor ConversationActor, kind, content, toolName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	entry := ConversationEntry{Actor: actor, Type: kind, Content: content, ToolName: toolName}
	if err := o.convLog.Append(ctx, o.call.ID, entry); err != nil {
		o.log.Warn("conversation log append failed", "call", o.call.ID, "error", err)
	}
}

func (o *CallOrchestrator) emitFrontend(eventType string, payload interface{}, logLevel string) {
	if o.publish == nil {
		return
	}
	o.publish(FrontendEvent{
		Type:      eventType,
		CallID:    o.call.ID,
		Timestamp: time.Now(),
		Source:    "orchestrator",
		Payload:   payload,
		LogLevel:  logLevel,
	})
}

// handleAudioPayload is posted for every RTP payload received. While the
// session is active it forwards live; otherwise (no session activated yet,
// or DTMF mode) it is not forwarded — DTMF mode suppresses recognition for
// the remainder of the turn per spec §3's invariant. Before activation the
// payload only updates the energy detector; it is not buffered, so caller
// audio received before the session opens never reaches the session.
func (o *CallOrchestrator) handleAudioPayload(data []byte) {
	if o.call.DTMFModeActive {
		return
	}
	if o.session != nil {
		if err := o.session.SendAudio(o.ctx, data); err != nil {
			o.log.Warn("send audio failed", "call", o.call.ID, "error", err)
		}
		return
	}
	o.energy.Process(data, time.Now())
}

func (o *CallOrchestrator) absorbNotFound(err error) {
	if err == nil || errors.Is(err, ErrPBXNotFound) {
		return
	}
	o.log.Warn("pbx operation failed", "call", o.call.ID, "error", err)
}

// Cleanup is the at-most-once teardown path, spec §3/§5/§7. reason
// classifies why; cause may be nil for non-error reasons (timer expiry,
// DTMF finalization, normal channel end).
func (o *CallOrchestrator) Cleanup(reason string, cause error) {
	if !o.call.MarkCleanedUp() {
		return
	}
	o.call.Metrics.CleanupReason = reason
	o.call.State = StateEnding

	o.emitFrontend("call_cleanup_started", map[string]string{"reason": reason}, "")

	o.call.Timers.CancelAll()

	if o.session != nil {
		o.session.Stop(reason)
		o.session = nil
	}
	if o.call.Playback != nil {
		o.call.Playback.Interrupt()
	}
	if o.tts != nil {
		if err := o.tts.Cleanup(); err != nil {
			o.log.Warn("tts artifact cleanup failed", "call", o.call.ID, "error", err)
		}
	}
	if o.receiver != nil {
		o.receiver.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if o.call.DTMFModeActive || reason == ReasonTalkDetectSetupFailed {
		o.absorbNotFound(o.pbx.RemoveTalkDetect(ctx, o.call.ChannelID))
	}
	o.absorbNotFound(o.pbx.ContinueInDialplan(ctx, o.call.ChannelID))

	if cause != nil {
		o.logConversation(ActorError, "cleanup", fmt.Sprintf("%s: %s", reason, cause), "")
	}
	o.emitFrontend("call_cleanup_completed", map[string]string{"reason": reason}, "")

	o.cancel()
}

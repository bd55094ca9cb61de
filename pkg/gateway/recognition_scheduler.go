package gateway

// RecognitionScheduler decides when the inference session activates, per
// spec §4.5. It owns no call state directly — every decision is reported
// back through the callbacks supplied at construction, so the orchestrator
// remains the single owner of call state (spec §3's ownership rule).
type RecognitionScheduler struct {
	cfg Config

	// activateNow opens the inference session immediately.
	activateNow func()
	// armTimer arms the named timer; the caller supplies its duration.
	armTimer func(name TimerName, onExpire func())
	// cancelTimer cancels the named timer.
	cancelTimer func(name TimerName)
	// requestTalkDetect asks the PBX adapter to enable talk-detection on the
	// channel with the configured thresholds.
	requestTalkDetect func()
	// removeTalkDetect asks the PBX adapter to remove talk-detection.
	removeTalkDetect func()
	// flushBuffer is called on VAD-mode activation, just before activateNow.
	// The orchestrator wires it to reset its energy detector; no caller
	// audio is held before activation, so nothing is handed to the session.
	flushBuffer func()
	// stopPlayback stops current playback for a barge-in.
	stopPlayback func()
	// onMaxWaitTimeout is invoked when the vad-max-wait-after-prompt timer
	// expires with no speech seen; the caller treats this as a terminal
	// call-cleanup timeout.
	onMaxWaitTimeout func()

	// activationDecided is a one-way flag: once set, no further activation
	// decision is made for this turn. It is distinct from "session open" —
	// the vadMode flush-on-early-speech path is the single activation the
	// delay timer was always going to perform, triggered early, not a
	// second competing activation (see SPEC_FULL.md §9 Open Question 2).
	activationDecided bool

	// speechSeenDuringDelay records that talk-started fired while the
	// vadMode initial-silence-delay timer was still running.
	speechSeenDuringDelay bool

	// playbackActive tracks whether a greeting/response is currently
	// playing, for the afterPrompt sub-mode's barge-in-vs-activate rule.
	playbackActive bool
}

// NewRecognitionScheduler builds a scheduler bound to cfg and the supplied
// side-effect callbacks.
func NewRecognitionScheduler(cfg Config, activateNow func(), armTimer func(TimerName, func()), cancelTimer func(TimerName), requestTalkDetect, removeTalkDetect, flushBuffer, stopPlayback, onMaxWaitTimeout func()) *RecognitionScheduler {
	return &RecognitionScheduler{
		cfg:               cfg,
		activateNow:       activateNow,
		armTimer:          armTimer,
		cancelTimer:       cancelTimer,
		requestTalkDetect: requestTalkDetect,
		removeTalkDetect:  removeTalkDetect,
		flushBuffer:       flushBuffer,
		stopPlayback:      stopPlayback,
		onMaxWaitTimeout:  onMaxWaitTimeout,
	}
}

// SetConfig replaces the scheduler's configuration snapshot, for the
// operator front-end's session.update path (spec §6). The new snapshot
// applies at once: later ArmForTurn calls and the current turn's remaining
// callbacks (TalkStarted, PlaybackFinished, timer expiries) all read it;
// timers already armed keep their durations.
func (s *RecognitionScheduler) SetConfig(cfg Config) {
	s.cfg = cfg
}

// modeFor returns the effective mode: the first-interaction override on the
// first turn, the configured mode otherwise.
func (s *RecognitionScheduler) modeFor(firstInteraction bool) RecognitionMode {
	if firstInteraction {
		return s.cfg.FirstInteractionMode
	}
	return s.cfg.RecognitionActivationMode
}

// ArmForTurn begins scheduling for one turn (call-start, or the moment a
// synthesized response finishes draining). playbackActive should be true
// when a greeting or response is about to play (afterPrompt's barge-in
// window) and false when scheduling begins with no playback pending.
func (s *RecognitionScheduler) ArmForTurn(firstInteraction, playbackActive bool) {
	s.activationDecided = false
	s.speechSeenDuringDelay = false
	s.playbackActive = playbackActive

	switch s.modeFor(firstInteraction) {
	case RecognitionImmediate:
		s.activate()

	case RecognitionFixedDelay:
		if s.cfg.BargeInDelay <= 0 {
			s.activate()
			return
		}
		s.armTimer(TimerBargeInActivation, s.activate)

	case RecognitionVAD:
		s.requestTalkDetect()
		switch s.cfg.VADRecogActivation {
		case VADModeDefault:
			s.armTimer(TimerVADInitialSilenceDel, s.onInitialSilenceDelayExpired)
		case VADAfterPrompt:
			if !playbackActive {
				s.activate()
			}
			// else: wait for TalkStarted (barge-in) or PlaybackFinished.
		}
	}
}

// TalkStarted reports a PBX talk-detection start event for the current turn.
func (s *RecognitionScheduler) TalkStarted() {
	if s.activationDecided {
		return
	}
	if s.cfg.RecognitionActivationMode != RecognitionVAD {
		return
	}

	switch s.cfg.VADRecogActivation {
	case VADModeDefault:
		// Speech during the delay window is remembered, not acted on yet.
		s.speechSeenDuringDelay = true
	case VADAfterPrompt:
		if s.playbackActive {
			s.stopPlayback()
			// Activation still waits for playback to actually finish.
			return
		}
		s.activate()
	}
}

// PlaybackFinished reports that the greeting/response playback this turn was
// waiting on has fully drained.
func (s *RecognitionScheduler) PlaybackFinished() {
	s.playbackActive = false
	if s.activationDecided {
		return
	}
	if s.cfg.RecognitionActivationMode == RecognitionVAD && s.cfg.VADRecogActivation == VADAfterPrompt {
		s.activate()
	}
}

// onInitialSilenceDelayExpired is the vadMode initial-silence-delay timer's
// expiry callback.
func (s *RecognitionScheduler) onInitialSilenceDelayExpired() {
	if s.activationDecided {
		return
	}
	if s.speechSeenDuringDelay {
		s.activate()
		return
	}
	s.armTimer(TimerVADMaxWaitAfterProm, s.onMaxWaitAfterPromptExpired)
}

// onMaxWaitAfterPromptExpired is the vad-max-wait-after-prompt timer's
// expiry callback: no speech arrived after the prompt finished, so the
// turn ends in a terminal timeout rather than an activation decision.
func (s *RecognitionScheduler) onMaxWaitAfterPromptExpired() {
	if s.activationDecided {
		return
	}
	s.activationDecided = true
	s.onMaxWaitTimeout()
}

// activate is the single activation choke point: cancels any VAD
// bookkeeping, removes talk-detect, calls flushBuffer, and opens the
// session.
func (s *RecognitionScheduler) activate() {
	if s.activationDecided {
		return
	}
	s.activationDecided = true

	if s.cfg.RecognitionActivationMode == RecognitionVAD {
		s.cancelTimer(TimerVADInitialSilenceDel)
		s.cancelTimer(TimerVADMaxWaitAfterProm)
		s.removeTalkDetect()
		s.flushBuffer()
	}
	s.cancelTimer(TimerBargeInActivation)
	s.activateNow()
}

// ActivationDecided reports whether this turn's activation decision has
// already been made.
func (s *RecognitionScheduler) ActivationDecided() bool {
	return s.activationDecided
}

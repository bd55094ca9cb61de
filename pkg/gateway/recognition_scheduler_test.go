package gateway

import "testing"

type schedulerHarness struct {
	activated       int
	talkDetectOn    int
	talkDetectOff   int
	flushed         int
	stopped         int
	maxWaitTimedOut int
	timers          map[TimerName]func()
}

func newSchedulerHarness() *schedulerHarness {
	return &schedulerHarness{timers: make(map[TimerName]func())}
}

func (h *schedulerHarness) build(cfg Config) *RecognitionScheduler {
	return NewRecognitionScheduler(cfg,
		func() { h.activated++ },
		func(name TimerName, onExpire func()) { h.timers[name] = onExpire },
		func(name TimerName) { delete(h.timers, name) },
		func() { h.talkDetectOn++ },
		func() { h.talkDetectOff++ },
		func() { h.flushed++ },
		func() { h.stopped++ },
		func() { h.maxWaitTimedOut++ },
	)
}

func (h *schedulerHarness) fire(name TimerName) {
	if cb, ok := h.timers[name]; ok {
		cb()
	}
}

func TestRecognitionScheduler_Immediate_ActivatesOnArm(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionImmediate
	cfg.FirstInteractionMode = RecognitionImmediate
	s := h.build(cfg)

	s.ArmForTurn(false, false)

	if h.activated != 1 {
		t.Fatalf("activated = %d, want 1", h.activated)
	}
}

func TestRecognitionScheduler_FixedDelayZero_ActivatesSynchronously(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionFixedDelay
	cfg.FirstInteractionMode = RecognitionFixedDelay
	cfg.BargeInDelay = 0
	s := h.build(cfg)

	s.ArmForTurn(false, false)

	if h.activated != 1 {
		t.Fatalf("activated = %d, want 1", h.activated)
	}
}

func TestRecognitionScheduler_FixedDelayPositive_ActivatesOnTimerExpiry(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionFixedDelay
	cfg.FirstInteractionMode = RecognitionFixedDelay
	cfg.BargeInDelay = 2_000_000_000 // 2s, irrelevant since we fire manually
	s := h.build(cfg)

	s.ArmForTurn(false, false)
	if h.activated != 0 {
		t.Fatalf("activated = %d before timer fires, want 0", h.activated)
	}

	h.fire(TimerBargeInActivation)
	if h.activated != 1 {
		t.Fatalf("activated = %d after timer fires, want 1", h.activated)
	}
}

func TestRecognitionScheduler_VADMode_SpeechDuringDelayFlushesOnExpiry(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionVAD
	cfg.FirstInteractionMode = RecognitionVAD
	cfg.VADRecogActivation = VADModeDefault
	s := h.build(cfg)

	s.ArmForTurn(false, false)
	if h.talkDetectOn != 1 {
		t.Fatalf("talkDetectOn = %d, want 1", h.talkDetectOn)
	}

	s.TalkStarted() // remembered, does not activate yet
	if h.activated != 0 {
		t.Fatalf("activated = %d before delay expiry, want 0", h.activated)
	}

	h.fire(TimerVADInitialSilenceDel)
	if h.activated != 1 {
		t.Fatalf("activated = %d after delay expiry with remembered speech, want 1", h.activated)
	}
	if h.talkDetectOff != 1 {
		t.Fatalf("talkDetectOff = %d, want 1", h.talkDetectOff)
	}
	if h.flushed != 1 {
		t.Fatalf("flushed = %d, want 1", h.flushed)
	}
}

func TestRecognitionScheduler_VADMode_NoSpeechArmsMaxWaitTimer(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionVAD
	cfg.FirstInteractionMode = RecognitionVAD
	cfg.VADRecogActivation = VADModeDefault
	s := h.build(cfg)

	s.ArmForTurn(false, false)
	h.fire(TimerVADInitialSilenceDel)

	if h.activated != 0 {
		t.Fatalf("activated = %d, want 0 (no speech observed)", h.activated)
	}
	if _, armed := h.timers[TimerVADMaxWaitAfterProm]; !armed {
		t.Fatal("expected vad-max-wait-after-prompt timer to be armed")
	}
}

func TestRecognitionScheduler_VADMode_MaxWaitExpiryReportsTimeout(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionVAD
	cfg.FirstInteractionMode = RecognitionVAD
	cfg.VADRecogActivation = VADModeDefault
	s := h.build(cfg)

	s.ArmForTurn(false, false)
	h.fire(TimerVADInitialSilenceDel)
	h.fire(TimerVADMaxWaitAfterProm)

	if h.maxWaitTimedOut != 1 {
		t.Fatalf("maxWaitTimedOut = %d, want 1", h.maxWaitTimedOut)
	}
	if h.activated != 0 {
		t.Fatalf("activated = %d, want 0 (timeout is terminal, not an activation)", h.activated)
	}
	if !s.ActivationDecided() {
		t.Fatal("expected ActivationDecided to be true after the max-wait timeout")
	}
}

func TestRecognitionScheduler_AfterPrompt_BargeInStopsPlaybackWithoutActivating(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionVAD
	cfg.FirstInteractionMode = RecognitionVAD
	cfg.VADRecogActivation = VADAfterPrompt
	s := h.build(cfg)

	s.ArmForTurn(false, true) // playback active (greeting)
	if h.activated != 0 {
		t.Fatalf("activated = %d, want 0 while playback pending", h.activated)
	}

	s.TalkStarted()
	if h.stopped != 1 {
		t.Fatalf("stopped = %d, want 1 (barge-in should stop playback)", h.stopped)
	}
	if h.activated != 0 {
		t.Fatalf("activated = %d, want 0 (must wait for playback to finish)", h.activated)
	}

	s.PlaybackFinished()
	if h.activated != 1 {
		t.Fatalf("activated = %d, want 1 after playback finishes post barge-in", h.activated)
	}
}

func TestRecognitionScheduler_AfterPrompt_ActivatesImmediatelyWhenNoPlaybackPending(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionVAD
	cfg.FirstInteractionMode = RecognitionVAD
	cfg.VADRecogActivation = VADAfterPrompt
	s := h.build(cfg)

	s.ArmForTurn(false, false)

	if h.activated != 1 {
		t.Fatalf("activated = %d, want 1", h.activated)
	}
}

func TestRecognitionScheduler_FirstInteractionOverrideAppliesOnlyOnFirstTurn(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionFixedDelay
	cfg.FirstInteractionMode = RecognitionImmediate
	cfg.BargeInDelay = 2_000_000_000

	s := h.build(cfg)
	s.ArmForTurn(true, false) // first turn: immediate override
	if h.activated != 1 {
		t.Fatalf("first turn activated = %d, want 1 (immediate override)", h.activated)
	}

	s.ArmForTurn(false, false) // subsequent turn: fixed-delay, not yet expired
	if h.activated != 1 {
		t.Fatalf("activated = %d after second ArmForTurn, want still 1 (delay not expired)", h.activated)
	}
}

func TestRecognitionScheduler_ActivateIsIdempotentPerTurn(t *testing.T) {
	h := newSchedulerHarness()
	cfg := DefaultConfig()
	cfg.RecognitionActivationMode = RecognitionImmediate
	cfg.FirstInteractionMode = RecognitionImmediate
	s := h.build(cfg)

	s.ArmForTurn(false, false)
	s.TalkStarted() // no-op: not VAD mode, but exercises the guard path too
	if h.activated != 1 {
		t.Fatalf("activated = %d, want 1", h.activated)
	}
	if !s.ActivationDecided() {
		t.Fatal("expected ActivationDecided true after activation")
	}
}

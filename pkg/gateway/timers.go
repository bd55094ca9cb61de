package gateway

import (
	"sync"
	"time"
)

// TimerName identifies one of the named per-call countdowns from spec §4.3.
type TimerName string

const (
	TimerBargeInActivation    TimerName = "barge-in-activation"
	TimerNoSpeechBegin        TimerName = "no-speech-begin"
	TimerInitialStreamIdle    TimerName = "initial-stream-idle"
	TimerSpeechEndSilence     TimerName = "speech-end-silence"
	TimerMaxRecognitionDur    TimerName = "max-recognition-duration"
	TimerDTMFInterDigit       TimerName = "dtmf-inter-digit"
	TimerDTMFFinal            TimerName = "dtmf-final"
	TimerVADMaxWaitAfterProm  TimerName = "vad-max-wait-after-prompt"
	TimerVADInitialSilenceDel TimerName = "vad-initial-silence-delay"
)

// TimerSet holds the named one-shot timers for a single call. Setting an
// already-running timer cancels the prior instance first. Every expiry
// action is invoked on its own goroutine via time.AfterFunc and is
// responsible for re-checking whatever state it assumed when armed — the
// TimerSet itself makes no promise about what state still holds by the time
// the callback runs.
type TimerSet struct {
	mu     sync.Mutex
	timers map[TimerName]*time.Timer
}

// NewTimerSet creates an empty timer set.
func NewTimerSet() *TimerSet {
	return &TimerSet{timers: make(map[TimerName]*time.Timer)}
}

// Set arms (or re-arms) the named timer, cancelling any prior instance of
// the same name first.
func (s *TimerSet) Set(name TimerName, d time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.timers[name] = time.AfterFunc(d, onExpire)
}

// Cancel stops the named timer if running. A no-op if the timer isn't set.
// Returns true if a running timer was cancelled.
func (s *TimerSet) Cancel(name TimerName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[name]
	if !ok {
		return false
	}
	delete(s.timers, name)
	return t.Stop()
}

// Running reports whether the named timer is in the set: true from Set until
// Cancel or CancelAll removes it. A timer that has already fired stays in
// the set, so it still reports true.
func (s *TimerSet) Running(name TimerName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// CancelAll stops every timer. Called once during cleanup; safe to call
// more than once.
func (s *TimerSet) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

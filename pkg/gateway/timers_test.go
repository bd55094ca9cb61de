package gateway

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerSet_SetCancelsPriorInstance(t *testing.T) {
	ts := NewTimerSet()
	var fired int32

	ts.Set(TimerNoSpeechBegin, 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	ts.Set(TimerNoSpeechBegin, 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("fired = %d, want 1 (re-set must cancel the prior instance)", got)
	}
}

func TestTimerSet_CancelPreventsExpiry(t *testing.T) {
	ts := NewTimerSet()
	var fired int32

	ts.Set(TimerMaxRecognitionDur, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	if !ts.Cancel(TimerMaxRecognitionDur) {
		t.Fatal("Cancel should report the timer was running")
	}

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("fired = %d, want 0", got)
	}
}

func TestTimerSet_CancelAllStopsEverything(t *testing.T) {
	ts := NewTimerSet()
	var fired int32

	ts.Set(TimerDTMFInterDigit, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	ts.Set(TimerDTMFFinal, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	ts.CancelAll()

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("fired = %d, want 0 after CancelAll", got)
	}
	if ts.Running(TimerDTMFInterDigit) || ts.Running(TimerDTMFFinal) {
		t.Fatal("no timer should report Running after CancelAll")
	}
}

func TestTimerSet_CancelOnAbsentTimerIsNoOp(t *testing.T) {
	ts := NewTimerSet()
	if ts.Cancel(TimerVADMaxWaitAfterProm) {
		t.Fatal("Cancel on an absent timer should return false")
	}
}

package gateway

import (
	"encoding/binary"
	"testing"
	"time"
)

func pcmChunk(amplitude int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func TestEnergyDetector_RequiresConsecutiveFramesToConfirmStart(t *testing.T) {
	d := NewEnergyDetector(0.1, 200*time.Millisecond, 3)
	loud := pcmChunk(20000, 160)
	base := time.Now()

	if ev := d.Process(loud, base); ev != nil {
		t.Fatalf("frame 1: expected no event yet, got %+v", ev)
	}
	if ev := d.Process(loud, base); ev != nil {
		t.Fatalf("frame 2: expected no event yet, got %+v", ev)
	}
	ev := d.Process(loud, base)
	if ev == nil || ev.Type != EnergySpeechStart {
		t.Fatalf("frame 3: expected speech start, got %+v", ev)
	}
	if !d.IsSpeaking() {
		t.Fatal("expected IsSpeaking true after confirmed start")
	}
}

func TestEnergyDetector_SilenceDurationEndsSpeech(t *testing.T) {
	d := NewEnergyDetector(0.1, 50*time.Millisecond, 1)
	loud := pcmChunk(20000, 160)
	quiet := pcmChunk(0, 160)
	base := time.Now()

	ev := d.Process(loud, base)
	if ev == nil || ev.Type != EnergySpeechStart {
		t.Fatalf("expected speech start, got %+v", ev)
	}

	if ev := d.Process(quiet, base.Add(10*time.Millisecond)); ev != nil {
		t.Fatalf("expected no event within silence window, got %+v", ev)
	}
	ev = d.Process(quiet, base.Add(80*time.Millisecond))
	if ev == nil || ev.Type != EnergySpeechEnd {
		t.Fatalf("expected speech end after silence window elapsed, got %+v", ev)
	}
	if d.IsSpeaking() {
		t.Fatal("expected IsSpeaking false after speech end")
	}
}

func TestEnergyDetector_BriefSpikeDoesNotConfirmStart(t *testing.T) {
	d := NewEnergyDetector(0.1, 50*time.Millisecond, 5)
	loud := pcmChunk(20000, 160)
	quiet := pcmChunk(0, 160)
	base := time.Now()

	d.Process(loud, base)
	d.Process(loud, base)
	if ev := d.Process(quiet, base); ev != nil {
		t.Fatalf("expected no event, got %+v", ev)
	}
	if d.IsSpeaking() {
		t.Fatal("spike below minConfirmed frames should not confirm speech")
	}
}

func TestEnergyDetector_Reset(t *testing.T) {
	d := NewEnergyDetector(0.1, 50*time.Millisecond, 1)
	d.Process(pcmChunk(20000, 160), time.Now())
	if !d.IsSpeaking() {
		t.Fatal("expected speaking before reset")
	}
	d.Reset()
	if d.IsSpeaking() {
		t.Fatal("expected not speaking after reset")
	}
}

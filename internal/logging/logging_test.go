package logging

import "testing"

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	l := New("")
	if !l.logger.Enabled(nil, parseLevel("info")) {
		t.Fatal("expected info level to be enabled by default")
	}
	if l.logger.Enabled(nil, parseLevel("debug")) {
		t.Fatal("expected debug level to be disabled by default")
	}
}

func TestNew_HonorsExplicitLevel(t *testing.T) {
	l := New("debug")
	if !l.logger.Enabled(nil, parseLevel("debug")) {
		t.Fatal("expected debug level to be enabled when requested")
	}
}

func TestSlogLogger_SatisfiesGatewayLoggerShape(t *testing.T) {
	l := New("error")
	l.Debug("ignored")
	l.Info("ignored")
	l.Warn("ignored")
	l.Error("recorded", "key", "value")
}

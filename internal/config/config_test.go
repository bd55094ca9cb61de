package config

import (
	"testing"
	"time"

	"github.com/callbridge/voicegateway/pkg/gateway"
)

func TestLoad_DefaultsWhenEnvironmentUnset(t *testing.T) {
	cfg, srv := Load()

	if cfg.RecognitionActivationMode != gateway.RecognitionImmediate {
		t.Fatalf("RecognitionActivationMode = %q, want %q", cfg.RecognitionActivationMode, gateway.RecognitionImmediate)
	}
	if srv.FrontendAddr != ":8081" {
		t.Fatalf("FrontendAddr = %q, want :8081", srv.FrontendAddr)
	}
	if srv.ARIAppName != "voicegateway" {
		t.Fatalf("ARIAppName = %q, want voicegateway", srv.ARIAppName)
	}
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("RECOGNITION_ACTIVATION_MODE", "vad")
	t.Setenv("MAX_RECOGNITION_DURATION_SECONDS", "45")
	t.Setenv("DTMF_ENABLED", "false")
	t.Setenv("VAD_TALK_THRESHOLD", "0.05")

	cfg, _ := Load()

	if cfg.RecognitionActivationMode != gateway.RecognitionVAD {
		t.Fatalf("RecognitionActivationMode = %q, want vad", cfg.RecognitionActivationMode)
	}
	if cfg.MaxRecognitionDuration != 45*time.Second {
		t.Fatalf("MaxRecognitionDuration = %v, want 45s", cfg.MaxRecognitionDuration)
	}
	if cfg.EnableDTMFRecognition {
		t.Fatal("expected DTMF_ENABLED=false to disable DTMF recognition")
	}
	if cfg.VADTalkThreshold != 0.05 {
		t.Fatalf("VADTalkThreshold = %v, want 0.05", cfg.VADTalkThreshold)
	}
}

func TestLoad_InvalidNumberFallsBackToDefault(t *testing.T) {
	t.Setenv("MAX_RECOGNITION_DURATION_SECONDS", "not-a-number")

	cfg, _ := Load()
	if cfg.MaxRecognitionDuration != gateway.DefaultConfig().MaxRecognitionDuration {
		t.Fatalf("MaxRecognitionDuration = %v, want default", cfg.MaxRecognitionDuration)
	}
}

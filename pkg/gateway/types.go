// Package gateway implements the per-call orchestrator that bridges an
// Asterisk-style PBX media channel with a realtime speech-to-speech
// inference session: RTP ingest, VAD/barge-in, DTMF collection, a queued
// TTS playback pipeline, and the timers governing each phase.
package gateway

import (
	"time"

	"github.com/callbridge/voicegateway/pkg/audio"
)

// Logger is the structured logging surface the gateway depends on. It is
// satisfied by *slog.Logger via SlogLogger, and by NoOpLogger in tests.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards every message. Used as the default when no logger is
// supplied.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// RecognitionMode selects how the inference session is activated.
type RecognitionMode string

const (
	RecognitionImmediate  RecognitionMode = "immediate"
	RecognitionFixedDelay RecognitionMode = "fixed_delay"
	RecognitionVAD        RecognitionMode = "vad"
)

// VADRecogActivation selects the VAD sub-mode.
type VADRecogActivation string

const (
	VADModeDefault  VADRecogActivation = "vadMode"
	VADAfterPrompt  VADRecogActivation = "afterPrompt"
)

// TTSPlaybackMode selects the TTS pipeline strategy.
type TTSPlaybackMode string

const (
	TTSPlaybackFullChunk TTSPlaybackMode = "full_chunk"
	TTSPlaybackStream    TTSPlaybackMode = "stream"
)

// CallState is the explicit state-machine enum for a call, per spec §4.8.
type CallState string

const (
	StateArming    CallState = "Arming"
	StateGreeting  CallState = "Greeting"
	StateListening CallState = "Listening"
	StateSpeaking  CallState = "Speaking"
	StateDTMF      CallState = "DTMF"
	StateEnding    CallState = "Ending"
)

// Cleanup / termination reason codes, per spec §7 and §8's scenario 4 and 6.
const (
	ReasonStasisStartError           = "STASIS_START_ERROR"
	ReasonTalkDetectSetupFailed      = "TALK_DETECT_SETUP_FAILED"
	ReasonOpenAIStreamError          = "OPENAI_STREAM_ERROR"
	ReasonNoSpeechBeginTimeout       = "NO_SPEECH_BEGIN_TIMEOUT"
	ReasonStreamIdleTimeout          = "OPENAI_STREAM_IDLE_TIMEOUT"
	ReasonMaxRecognitionTimeout      = "MAX_RECOGNITION_DURATION_TIMEOUT"
	ReasonVADMaxWaitPostPrompt       = "VAD_MAX_WAIT_POST_PROMPT_TIMEOUT"
	ReasonDTMFInterDigitTimeout      = "DTMF_INTER_DIGIT_TIMEOUT"
	ReasonDTMFFinalTimeout           = "DTMF_FINAL_TIMEOUT"
	ReasonDTMFTerminatorReceived     = "DTMF_TERMINATOR_RECEIVED"
	ReasonDTMFMaxDigitsReached       = "DTMF_MAX_DIGITS_REACHED"
	ReasonChannelEnded               = "CHANNEL_ENDED"
	ReasonVADSpeechDuringDelayFlush  = "vad_speech_during_delay_window_flush_attempt"
)

// Config is the tunable configuration for one call, populated from
// environment variables and overridable per-session via the operator
// session.update message.
type Config struct {
	RecognitionActivationMode RecognitionMode
	FirstInteractionMode      RecognitionMode
	BargeInDelay              time.Duration

	NoSpeechBeginTimeout    time.Duration
	SpeechEndSilenceTimeout time.Duration
	MaxRecognitionDuration  time.Duration

	VADSilenceThresholdMs    int
	VADTalkThreshold         float64
	VADInitialSilenceDelay   time.Duration
	VADMaxWaitAfterPrompt    time.Duration
	VADRecogActivation       VADRecogActivation

	EnableDTMFRecognition    bool
	DTMFInterDigitTimeout    time.Duration
	DTMFFinalTimeout         time.Duration
	DTMFMaxDigits            int
	DTMFTerminatorDigit      string

	TTSPlaybackMode TTSPlaybackMode
	TTSCodec        audio.Codec
	TTSSampleRate   int

	Instructions string
	TTSVoice     string
	Model        string
	Greeting     string // PBX media reference, empty = no greeting
}

// DefaultConfig returns the documented environment defaults.
func DefaultConfig() Config {
	return Config{
		RecognitionActivationMode: RecognitionImmediate,
		FirstInteractionMode:      RecognitionImmediate,
		BargeInDelay:              0,
		NoSpeechBeginTimeout:      10 * time.Second,
		SpeechEndSilenceTimeout:   700 * time.Millisecond,
		MaxRecognitionDuration:    30 * time.Second,
		VADSilenceThresholdMs:     500,
		VADTalkThreshold:          0.02,
		VADInitialSilenceDelay:    2 * time.Second,
		VADMaxWaitAfterPrompt:     5 * time.Second,
		VADRecogActivation:        VADAfterPrompt,
		EnableDTMFRecognition:     true,
		DTMFInterDigitTimeout:     3 * time.Second,
		DTMFFinalTimeout:          5 * time.Second,
		DTMFMaxDigits:             16,
		DTMFTerminatorDigit:       "#",
		TTSPlaybackMode:           TTSPlaybackFullChunk,
		TTSCodec:                  audio.CodecPCM16,
		TTSSampleRate:             24000,
	}
}

// SessionFields mirrors the operator `session.update` payload fields from
// spec §6. Pointer fields are optional partial updates; nil means "leave
// unchanged".
type SessionFields struct {
	Instructions                   *string  `json:"instructions,omitempty"`
	TTSVoice                       *string  `json:"ttsVoice,omitempty"`
	Model                          *string  `json:"model,omitempty"`
	RecognitionActivationMode      *string  `json:"recognitionActivationMode,omitempty"`
	BargeInDelaySeconds            *float64 `json:"bargeInDelaySeconds,omitempty"`
	VADRecogActivation             *string  `json:"vadRecogActivation,omitempty"`
	VADInitialSilenceDelaySeconds  *float64 `json:"vadInitialSilenceDelaySeconds,omitempty"`
	NoSpeechBeginTimeoutSeconds    *float64 `json:"noSpeechBeginTimeoutSeconds,omitempty"`
	SpeechEndSilenceTimeoutSeconds *float64 `json:"speechEndSilenceTimeoutSeconds,omitempty"`
	MaxRecognitionDurationSeconds  *float64 `json:"maxRecognitionDurationSeconds,omitempty"`
	VADSilenceThresholdMs          *int     `json:"vadSilenceThresholdMs,omitempty"`
	VADTalkThreshold               *float64 `json:"vadTalkThreshold,omitempty"`
	VADMaxWaitAfterPromptSeconds   *float64 `json:"vadMaxWaitAfterPromptSeconds,omitempty"`
	EnableDtmfRecognition          *bool    `json:"enableDtmfRecognition,omitempty"`
	DtmfInterDigitTimeoutSeconds   *float64 `json:"dtmfInterDigitTimeoutSeconds,omitempty"`
	DtmfFinalTimeoutSeconds        *float64 `json:"dtmfFinalTimeoutSeconds,omitempty"`
}

// Apply merges non-nil fields of SessionFields into cfg, returning the
// updated copy.
func (cfg Config) Apply(f SessionFields) Config {
	if f.Instructions != nil {
		cfg.Instructions = *f.Instructions
	}
	if f.TTSVoice != nil {
		cfg.TTSVoice = *f.TTSVoice
	}
	if f.Model != nil {
		cfg.Model = *f.Model
	}
	if f.RecognitionActivationMode != nil {
		cfg.RecognitionActivationMode = RecognitionMode(*f.RecognitionActivationMode)
	}
	if f.BargeInDelaySeconds != nil {
		cfg.BargeInDelay = secondsToDuration(*f.BargeInDelaySeconds)
	}
	if f.VADRecogActivation != nil {
		cfg.VADRecogActivation = VADRecogActivation(*f.VADRecogActivation)
	}
	if f.VADInitialSilenceDelaySeconds != nil {
		cfg.VADInitialSilenceDelay = secondsToDuration(*f.VADInitialSilenceDelaySeconds)
	}
	if f.NoSpeechBeginTimeoutSeconds != nil {
		cfg.NoSpeechBeginTimeout = secondsToDuration(*f.NoSpeechBeginTimeoutSeconds)
	}
	if f.SpeechEndSilenceTimeoutSeconds != nil {
		cfg.SpeechEndSilenceTimeout = secondsToDuration(*f.SpeechEndSilenceTimeoutSeconds)
	}
	if f.MaxRecognitionDurationSeconds != nil {
		cfg.MaxRecognitionDuration = secondsToDuration(*f.MaxRecognitionDurationSeconds)
	}
	if f.VADSilenceThresholdMs != nil {
		cfg.VADSilenceThresholdMs = *f.VADSilenceThresholdMs
	}
	if f.VADTalkThreshold != nil {
		cfg.VADTalkThreshold = *f.VADTalkThreshold
	}
	if f.VADMaxWaitAfterPromptSeconds != nil {
		cfg.VADMaxWaitAfterPrompt = secondsToDuration(*f.VADMaxWaitAfterPromptSeconds)
	}
	if f.EnableDtmfRecognition != nil {
		cfg.EnableDTMFRecognition = *f.EnableDtmfRecognition
	}
	if f.DtmfInterDigitTimeoutSeconds != nil {
		cfg.DTMFInterDigitTimeout = secondsToDuration(*f.DtmfInterDigitTimeoutSeconds)
	}
	if f.DtmfFinalTimeoutSeconds != nil {
		cfg.DTMFFinalTimeout = secondsToDuration(*f.DtmfFinalTimeoutSeconds)
	}
	return cfg
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

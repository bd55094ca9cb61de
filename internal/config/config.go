// Package config loads gateway configuration from the environment, per
// spec §6's "Environment (selected)" list. Grounded on the teacher's
// cmd/agent/main.go (godotenv.Load, a flat list of os.Getenv reads with
// documented fallbacks, log.Println when .env is absent rather than a
// fatal error).
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/callbridge/voicegateway/pkg/audio"
	"github.com/callbridge/voicegateway/pkg/gateway"
)

// ServerConfig holds the process-wide settings that sit outside a single
// call's gateway.Config: PBX/inference endpoints and credentials, the
// Redis conversation log, the operator front-end address, and the
// filesystem root for TTS artifacts.
type ServerConfig struct {
	ARIBaseURL  string
	ARIUsername string
	ARIPassword string
	ARIAppName  string
	ARIEventsWS string

	InferenceEndpoint string
	InferenceAPIKey   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ConvLogTTL    time.Duration

	FrontendAddr string
	RTPHostIP    string
	SoundsRoot   string
}

// Load reads .env (if present) and the process environment into a
// gateway.Config (per-call defaults) and a ServerConfig (process-wide
// wiring). Missing optional variables fall back to gateway.DefaultConfig's
// values, except AGENT_INSTRUCTIONS, OPENAI_TTS_VOICE, OPENAI_REALTIME_MODEL
// and GREETING_MEDIA_REF, whose fallbacks are set here; a missing .env file
// is logged, not fatal, matching the teacher.
func Load() (gateway.Config, ServerConfig) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using process environment")
	}

	cfg := gateway.DefaultConfig()

	cfg.RecognitionActivationMode = gateway.RecognitionMode(getString("RECOGNITION_ACTIVATION_MODE", string(cfg.RecognitionActivationMode)))
	cfg.FirstInteractionMode = gateway.RecognitionMode(getString("FIRST_INTERACTION_RECOGNITION_MODE", string(cfg.FirstInteractionMode)))
	cfg.BargeInDelay = getSeconds("BARGE_IN_DELAY_SECONDS", cfg.BargeInDelay)

	cfg.NoSpeechBeginTimeout = getSeconds("NO_SPEECH_BEGIN_TIMEOUT_SECONDS", cfg.NoSpeechBeginTimeout)
	cfg.SpeechEndSilenceTimeout = getSeconds("SPEECH_END_SILENCE_TIMEOUT_SECONDS", cfg.SpeechEndSilenceTimeout)
	cfg.MaxRecognitionDuration = getSeconds("MAX_RECOGNITION_DURATION_SECONDS", cfg.MaxRecognitionDuration)

	cfg.VADSilenceThresholdMs = getInt("VAD_SILENCE_THRESHOLD_MS", cfg.VADSilenceThresholdMs)
	cfg.VADTalkThreshold = getFloat("VAD_TALK_THRESHOLD", cfg.VADTalkThreshold)
	cfg.VADInitialSilenceDelay = getSeconds("VAD_INITIAL_SILENCE_DELAY_SECONDS", cfg.VADInitialSilenceDelay)
	cfg.VADMaxWaitAfterPrompt = getSeconds("VAD_MAX_WAIT_AFTER_PROMPT_SECONDS", cfg.VADMaxWaitAfterPrompt)
	cfg.VADRecogActivation = gateway.VADRecogActivation(getString("VAD_RECOG_ACTIVATION", string(cfg.VADRecogActivation)))

	cfg.EnableDTMFRecognition = getBool("DTMF_ENABLED", cfg.EnableDTMFRecognition)
	cfg.DTMFInterDigitTimeout = getSeconds("DTMF_INTERDIGIT_TIMEOUT_SECONDS", cfg.DTMFInterDigitTimeout)
	cfg.DTMFFinalTimeout = getSeconds("DTMF_FINAL_TIMEOUT_SECONDS", cfg.DTMFFinalTimeout)
	cfg.DTMFMaxDigits = getInt("DTMF_MAX_DIGITS", cfg.DTMFMaxDigits)
	cfg.DTMFTerminatorDigit = getString("DTMF_TERMINATOR_DIGIT", cfg.DTMFTerminatorDigit)

	cfg.TTSPlaybackMode = gateway.TTSPlaybackMode(getString("OPENAI_TTS_PLAYBACK_MODE", string(cfg.TTSPlaybackMode)))
	cfg.TTSCodec = audio.Codec(getString("OPENAI_TTS_CODEC", string(cfg.TTSCodec)))
	cfg.TTSSampleRate = getInt("OPENAI_TTS_SAMPLE_RATE", cfg.TTSSampleRate)

	cfg.Instructions = getString("AGENT_INSTRUCTIONS", "")
	cfg.TTSVoice = getString("OPENAI_TTS_VOICE", "alloy")
	cfg.Model = getString("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview")
	cfg.Greeting = getString("GREETING_MEDIA_REF", "")

	srv := ServerConfig{
		ARIBaseURL:  getString("ARI_BASE_URL", "http://127.0.0.1:8088/ari"),
		ARIUsername: getString("ARI_USERNAME", "asterisk"),
		ARIPassword: getString("ARI_PASSWORD", ""),
		ARIAppName:  getString("ARI_APP_NAME", "voicegateway"),
		ARIEventsWS: getString("ARI_EVENTS_URL", "ws://127.0.0.1:8088/ari/events"),

		InferenceEndpoint: getString("OPENAI_REALTIME_ENDPOINT", "wss://api.openai.com/v1/realtime"),
		InferenceAPIKey:   getString("OPENAI_API_KEY", ""),

		RedisAddr:     getString("REDIS_ADDR", ""),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		ConvLogTTL:    getSeconds("CONVERSATION_LOG_TTL_SECONDS", 24*time.Hour),

		FrontendAddr: getString("FRONTEND_ADDR", ":8081"),
		RTPHostIP:    getString("RTP_HOST_IP", "127.0.0.1"),
		SoundsRoot:   getString("SOUNDS_ROOT", "/var/lib/asterisk/sounds"),
	}

	return cfg, srv
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid bool for %s=%q, using default", key, v)
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default", key, v)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid float for %s=%q, using default", key, v)
		return def
	}
	return f
}

// getSeconds reads key as a floating-point seconds count and returns it as
// a time.Duration, matching spec §6's *_SECONDS environment variable
// naming convention.
func getSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid seconds value for %s=%q, using default", key, v)
		return def
	}
	return time.Duration(f * float64(time.Second))
}

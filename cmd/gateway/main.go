// Command gateway runs the voice-bot gateway: it answers Asterisk ARI
// Stasis channels, bridges their RTP audio to a realtime inference
// session, and exposes an operator WebSocket front-end. Grounded on the
// teacher's cmd/agent/main.go shape (godotenv.Load, signal.Notify
// SIGINT/SIGTERM, a top-level context cancelled on signal) generalized
// from a one-shot local voice agent to a long-lived server process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callbridge/voicegateway/internal/config"
	"github.com/callbridge/voicegateway/internal/logging"
	"github.com/callbridge/voicegateway/pkg/ari"
	"github.com/callbridge/voicegateway/pkg/frontend"
	"github.com/callbridge/voicegateway/pkg/gateway"
)

func main() {
	cfg, srv := config.Load()
	log := logging.New(os.Getenv("LOG_LEVEL"))

	if srv.InferenceAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; inference session activation will fail")
	}

	convLog := buildConversationLog(srv, log)
	artifacts, removeArtifact := buildArtifactStore(srv.SoundsRoot)

	pbx := ari.NewClient(srv.ARIBaseURL, srv.ARIUsername, srv.ARIPassword, srv.ARIAppName)

	gw := gateway.NewGateway(gateway.GatewayDeps{
		PBX:             pbx,
		Log:             log,
		ConversationLog: convLog,
		RTPHostIP:       srv.RTPHostIP,
		ArtifactWriter:  artifacts,
		ArtifactRemover: removeArtifact,
		NewSession: func() *gateway.InferenceSessionAdapter {
			return gateway.NewInferenceSessionAdapter(srv.InferenceEndpoint, srv.InferenceAPIKey)
		},
		SessionConfig: sessionConfigFor,
		DefaultConfig: cfg,
	})

	front := frontend.NewServer(srv.FrontendAddr, gw, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
	}()

	go func() {
		if err := front.ListenAndServe(ctx); err != nil {
			log.Error("front-end server exited", "err", err)
		}
	}()

	eventsURL := ari.DialURL(srv.ARIEventsWS, srv.ARIAppName, srv.ARIUsername, srv.ARIPassword)
	go runEventStream(ctx, eventsURL, gw, log)

	log.Info("voicegateway started", "frontend", srv.FrontendAddr, "ariApp", srv.ARIAppName)
	<-ctx.Done()
	log.Info("voicegateway stopped")
}

// runEventStream dials the ARI event stream and redials with a short
// backoff whenever the connection is lost, since ARI offers no resumable
// subscription across a dropped WebSocket.
func runEventStream(ctx context.Context, eventsURL string, gw *gateway.Gateway, log gateway.Logger) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		publishConnectionStatus(gw, "connected")
		stream := ari.NewEventStream(eventsURL, gw, log)
		if err := stream.Run(ctx); err != nil {
			log.Error("ari event stream disconnected, redialing", "err", err, "backoff", backoff)
			publishConnectionStatus(gw, "disconnected")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

// publishConnectionStatus reports the ARI WebSocket's connection state to
// the operator front-end, per spec.md §6's ari_connection_status event.
// It carries no callId: the connection is process-wide, not per-call.
func publishConnectionStatus(gw *gateway.Gateway, status string) {
	gw.Publish(gateway.FrontendEvent{
		Type:      "ari_connection_status",
		Timestamp: time.Now(),
		Source:    "ari",
		Payload:   map[string]string{"status": status},
	})
}

// sessionConfigFor maps a call's gateway.Config into the inference
// session.update payload, per spec §6.
func sessionConfigFor(cfg gateway.Config) gateway.SessionConfig {
	return gateway.SessionConfig{
		Modalities:            []string{"text", "audio"},
		TurnDetection:         map[string]interface{}{"type": "server_vad"},
		Voice:                 cfg.TTSVoice,
		InputAudioFormat:      "g711_ulaw",
		InputAudioSampleRate:  8000,
		OutputAudioFormat:     string(cfg.TTSCodec),
		OutputAudioSampleRate: cfg.TTSSampleRate,
		Instructions:          cfg.Instructions,
	}
}

func buildConversationLog(srv config.ServerConfig, log gateway.Logger) gateway.ConversationLog {
	if srv.RedisAddr == "" {
		return gateway.NoOpConversationLog{}
	}
	client := redis.NewClient(&redis.Options{Addr: srv.RedisAddr, Password: srv.RedisPassword, DB: srv.RedisDB})
	convLog, err := gateway.NewRedisConversationLog(gateway.RedisConversationLogConfig{Client: client, TTL: srv.ConvLogTTL})
	if err != nil {
		log.Error("failed to build redis conversation log, falling back to no-op", "err", err)
		return gateway.NoOpConversationLog{}
	}
	return convLog
}

// buildArtifactStore returns filesystem-backed ArtifactWriter/Remover
// hooks rooted at soundsRoot, laid out per spec §6: full-chunk artifacts
// under openai/, streaming per-chunk artifacts under
// openai_stream_chunks/, and per-response archives under
// openai_stream_backup/.
func buildArtifactStore(soundsRoot string) (gateway.ArtifactWriter, gateway.ArtifactRemover) {
	write := func(name string, data []byte) (string, error) {
		dir := artifactSubdir(name)
		full := filepath.Join(soundsRoot, dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", fmt.Errorf("artifact store: mkdir: %w", err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return "", fmt.Errorf("artifact store: write: %w", err)
		}
		return filepath.Join(dir, name), nil
	}
	remove := func(mediaRef string) error {
		return os.Remove(filepath.Join(soundsRoot, mediaRef))
	}
	return write, remove
}

func artifactSubdir(name string) string {
	switch {
	case strings.Contains(name, "-chunk-"):
		return "openai_stream_chunks"
	case strings.Contains(name, "-archive"):
		return "openai_stream_backup"
	default:
		return "openai"
	}
}

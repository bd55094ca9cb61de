package gateway

import "context"

// FallbackTranscriber is an optional, additive collaborator: when the
// primary inference session reports a session-error, the orchestrator calls
// a configured transcriber for best-effort text logged to the conversation
// store only. The orchestrator passes pcm as nil: it keeps no buffer of the
// turn's caller audio to hand over. It never drives a synthesized response —
// a nil FallbackTranscriber is always a valid configuration, per
// SPEC_FULL.md §5.2.
type FallbackTranscriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// NoFallbackTranscriber is returned by orchestrator wiring when no fallback
// is configured; Transcribe always reports ErrNoActiveSession to make clear
// the caller should not have invoked it.
type NoFallbackTranscriber struct{}

func (NoFallbackTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return "", ErrNoActiveSession
}

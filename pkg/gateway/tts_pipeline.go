package gateway

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/callbridge/voicegateway/pkg/audio"
)

// ArtifactWriter persists one named artifact's bytes, returning the media
// reference the PBX adapter understands (typically a filesystem path
// relative to its sounds root).
type ArtifactWriter func(name string, data []byte) (mediaRef string, err error)

// ArtifactRemover deletes a previously written artifact by media reference.
type ArtifactRemover func(mediaRef string) error

// TTSPipeline turns inference-session audio chunks into queued playbacks,
// per spec §4.7. It supports the two configured modes: accumulate-then-play
// (full-chunk) and play-as-you-go (stream), in both cases tracking every
// artifact it writes for this call so cleanup can delete them all.
type TTSPipeline struct {
	mode       TTSPlaybackMode
	codec      audio.Codec
	sampleRate int
	callID     string

	write  ArtifactWriter
	remove ArtifactRemover
	queue  *PlaybackQueue

	mu          sync.Mutex
	responseID  string
	accumulated []byte
	artifacts   []string
	chunkIndex  int
}

// NewTTSPipeline builds a pipeline for one call. write/remove are the
// filesystem (or other storage) hooks; queue is the call's PlaybackQueue.
func NewTTSPipeline(callID string, mode TTSPlaybackMode, codec audio.Codec, sampleRate int, write ArtifactWriter, remove ArtifactRemover, queue *PlaybackQueue) *TTSPipeline {
	return &TTSPipeline{
		callID:     callID,
		mode:       mode,
		codec:      codec,
		sampleRate: sampleRate,
		write:      write,
		remove:     remove,
		queue:      queue,
	}
}

// BeginResponse resets per-response state for a new response id and tells
// the playback queue which response it should currently accept chunks for.
func (p *TTSPipeline) BeginResponse(responseID string) {
	p.mu.Lock()
	p.responseID = responseID
	p.accumulated = nil
	p.chunkIndex = 0
	p.mu.Unlock()

	p.queue.BeginResponse(responseID)
}

// HandleChunk processes one audio-chunk event for responseID. Chunks for a
// stale response (not the one BeginResponse most recently declared) are
// discarded, mirroring the PlaybackQueue's own response-id filtering.
func (p *TTSPipeline) HandleChunk(responseID string, data []byte) error {
	p.mu.Lock()
	if responseID != p.responseID {
		p.mu.Unlock()
		return nil
	}
	p.accumulated = append(p.accumulated, data...)
	idx := p.chunkIndex
	p.chunkIndex++
	p.mu.Unlock()

	if p.mode != TTSPlaybackStream {
		return nil
	}

	name := p.artifactName(fmt.Sprintf("chunk-%04d", idx))
	ref, err := p.write(name, audio.WrapForArtifact(data, p.codec, p.sampleRate))
	if err != nil {
		return fmt.Errorf("tts pipeline: write stream chunk: %w", err)
	}

	p.mu.Lock()
	p.artifacts = append(p.artifacts, ref)
	p.mu.Unlock()

	p.queue.Enqueue(ref, responseID)
	return nil
}

// HandleStreamEnd finalizes the response: in full-chunk mode this writes
// and enqueues the single concatenated artifact; in stream mode it only
// archives the accumulated bytes (the per-chunk artifacts were already
// enqueued by HandleChunk).
func (p *TTSPipeline) HandleStreamEnd(responseID string) error {
	p.mu.Lock()
	if responseID != p.responseID {
		p.mu.Unlock()
		return nil
	}
	full := p.accumulated
	p.mu.Unlock()

	if len(full) == 0 {
		return nil
	}

	switch p.mode {
	case TTSPlaybackFullChunk:
		name := p.artifactName("full")
		ref, err := p.write(name, audio.WrapForArtifact(full, p.codec, p.sampleRate))
		if err != nil {
			return fmt.Errorf("tts pipeline: write full-chunk artifact: %w", err)
		}
		p.mu.Lock()
		p.artifacts = append(p.artifacts, ref)
		p.mu.Unlock()
		p.queue.Enqueue(ref, responseID)

	case TTSPlaybackStream:
		name := p.artifactName("archive")
		ref, err := p.write(name, audio.WrapForArtifact(full, p.codec, p.sampleRate))
		if err != nil {
			return fmt.Errorf("tts pipeline: write stream archive: %w", err)
		}
		p.mu.Lock()
		p.artifacts = append(p.artifacts, ref)
		p.mu.Unlock()
	}
	return nil
}

// Artifacts returns every media reference this pipeline has written so far
// for the call.
func (p *TTSPipeline) Artifacts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.artifacts))
	copy(out, p.artifacts)
	return out
}

// Cleanup deletes every artifact this pipeline has produced for the call.
// Errors from individual deletes are collected but do not stop the sweep —
// cleanup must make a best effort across all of them.
func (p *TTSPipeline) Cleanup() error {
	p.mu.Lock()
	artifacts := p.artifacts
	p.artifacts = nil
	p.mu.Unlock()

	var errs []string
	for _, ref := range artifacts {
		if err := p.remove(ref); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tts pipeline cleanup: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (p *TTSPipeline) artifactName(suffix string) string {
	ts := time.Now().UnixMilli()
	return filepath.Join(fmt.Sprintf("%s-%d-%s%s", p.callID, ts, suffix, p.codec.Extension()))
}

package gateway

import (
	"testing"

	"github.com/callbridge/voicegateway/pkg/audio"
)

func newTestPipeline(mode TTSPlaybackMode) (*TTSPipeline, *PlaybackQueue, map[string][]byte, *[]string) {
	written := make(map[string][]byte)
	var removed []string
	queue := NewPlaybackQueue(func(ref string) {})

	write := func(name string, data []byte) (string, error) {
		written[name] = data
		return name, nil
	}
	remove := func(ref string) error {
		removed = append(removed, ref)
		delete(written, ref)
		return nil
	}

	p := NewTTSPipeline("call-1", mode, audio.CodecPCM16, 8000, write, remove, queue)
	return p, queue, written, &removed
}

func TestTTSPipeline_FullChunkMode_ConcatenatesAndEnqueuesOnce(t *testing.T) {
	p, queue, written, _ := newTestPipeline(TTSPlaybackFullChunk)

	p.BeginResponse("resp-1")
	if err := p.HandleChunk("resp-1", []byte{1, 2}); err != nil {
		t.Fatalf("HandleChunk: %v", err)
	}
	if err := p.HandleChunk("resp-1", []byte{3, 4}); err != nil {
		t.Fatalf("HandleChunk: %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("full-chunk mode must not enqueue before stream end; Len() = %d", queue.Len())
	}

	if err := p.HandleStreamEnd("resp-1"); err != nil {
		t.Fatalf("HandleStreamEnd: %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after stream end", queue.Len())
	}
	if len(written) != 1 {
		t.Fatalf("written %d artifacts, want 1", len(written))
	}
	if len(p.Artifacts()) != 1 {
		t.Fatalf("Artifacts() len = %d, want 1", len(p.Artifacts()))
	}
}

func TestTTSPipeline_StreamMode_EnqueuesEachChunkAndArchivesAtEnd(t *testing.T) {
	p, queue, written, _ := newTestPipeline(TTSPlaybackStream)

	p.BeginResponse("resp-1")
	p.HandleChunk("resp-1", []byte{1, 2})
	p.HandleChunk("resp-1", []byte{3, 4})

	if queue.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (stream mode enqueues each chunk)", queue.Len())
	}

	if err := p.HandleStreamEnd("resp-1"); err != nil {
		t.Fatalf("HandleStreamEnd: %v", err)
	}
	// 2 chunk artifacts + 1 archive artifact.
	if len(written) != 3 {
		t.Fatalf("written %d artifacts, want 3", len(written))
	}
}

func TestTTSPipeline_StaleResponseChunksAreIgnored(t *testing.T) {
	p, queue, _, _ := newTestPipeline(TTSPlaybackFullChunk)

	p.BeginResponse("resp-2")
	if err := p.HandleChunk("resp-1", []byte{9, 9}); err != nil {
		t.Fatalf("HandleChunk: %v", err)
	}
	if err := p.HandleStreamEnd("resp-1"); err != nil {
		t.Fatalf("HandleStreamEnd: %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (stale response must be ignored entirely)", queue.Len())
	}
}

func TestTTSPipeline_CleanupDeletesAllArtifacts(t *testing.T) {
	p, _, written, removed := newTestPipeline(TTSPlaybackFullChunk)

	p.BeginResponse("resp-1")
	p.HandleChunk("resp-1", []byte{1})
	p.HandleStreamEnd("resp-1")

	if err := p.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(written) != 0 {
		t.Fatalf("written has %d leftover artifacts after cleanup, want 0", len(written))
	}
	if len(*removed) != 1 {
		t.Fatalf("removed %d artifacts, want 1", len(*removed))
	}
	if len(p.Artifacts()) != 0 {
		t.Fatalf("Artifacts() after Cleanup should be empty, got %v", p.Artifacts())
	}
}

package gateway

import "sync"

// Chunk is one queued media reference, tagged with the response it belongs
// to so stale chunks (arrived after an interrupt, before the orchestrator
// moves on) can be discarded per spec §4.2.
type Chunk struct {
	MediaRef   string
	ResponseID string
}

// PlaybackQueue is an ordered sequence of media references with at most one
// active playback per call. It does not dedupe, reorder, or coalesce.
//
// Player is the callback invoked to actually start playback of a head
// reference (wired to the PBX control adapter's Play). PlaybackQueue calls
// it synchronously from Enqueue/Finished while holding no lock of its own
// across the call — callers must not re-enter the queue from within Player.
type PlaybackQueue struct {
	mu      sync.Mutex
	pending []Chunk
	playing bool

	// currentResponseID is the response the queue is currently servicing.
	// Chunks enqueued for a different response are dropped.
	currentResponseID string

	// interruptedResponseID is the response the last Interrupt cut off; its
	// late chunks are dropped until BeginResponse names a response again.
	interruptedResponseID string

	Player       func(ref string)
	OnDrained    func()
	OnInterrupt  func()
}

// NewPlaybackQueue creates an empty queue. player is called to start
// playback of the new head whenever one becomes current.
func NewPlaybackQueue(player func(ref string)) *PlaybackQueue {
	return &PlaybackQueue{Player: player}
}

// BeginResponse declares which response's chunks the queue will currently
// accept; call it once per turn before enqueuing that turn's chunks.
func (q *PlaybackQueue) BeginResponse(responseID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentResponseID = responseID
	q.interruptedResponseID = ""
}

// Enqueue appends ref to the queue and starts it immediately if nothing is
// currently playing. Chunks whose responseID doesn't match the response the
// queue is currently servicing are silently discarded (response-id
// filtering, spec §4.2 tie-break rule), as are chunks for the response cut
// off by the last Interrupt until BeginResponse is called again.
func (q *PlaybackQueue) Enqueue(ref string, responseID string) {
	q.mu.Lock()

	if responseID != "" && (responseID == q.interruptedResponseID ||
		(q.currentResponseID != "" && responseID != q.currentResponseID)) {
		q.mu.Unlock()
		return
	}

	q.pending = append(q.pending, Chunk{MediaRef: ref, ResponseID: responseID})
	shouldStart := !q.playing
	if shouldStart {
		q.playing = true
	}
	head := ""
	if shouldStart && len(q.pending) > 0 {
		head = q.pending[0].MediaRef
	}
	q.mu.Unlock()

	if shouldStart && q.Player != nil {
		q.Player(head)
	}
}

// Finished pops the head (ignoring ok — both success and failure advance the
// queue the same way, per spec §7's "playback failure ... treat as
// playback-finished for scheduling purposes"). If the queue has more
// pending entries it starts the new head; otherwise it clears playing and
// calls OnDrained.
func (q *PlaybackQueue) Finished(ok bool) {
	q.mu.Lock()

	if len(q.pending) > 0 {
		q.pending = q.pending[1:]
	}

	var next string
	hasNext := len(q.pending) > 0
	if hasNext {
		next = q.pending[0].MediaRef
	} else {
		q.playing = false
	}
	onDrained := q.OnDrained
	q.mu.Unlock()

	if hasNext && q.Player != nil {
		q.Player(next)
		return
	}
	if !hasNext && onDrained != nil {
		onDrained()
	}
}

// Interrupt stops current playback (the caller is responsible for actually
// stopping PBX playback before or after calling this), empties the queue,
// and marks the overall response as no longer active; chunks that still
// arrive for that response are dropped until the next BeginResponse.
func (q *PlaybackQueue) Interrupt() {
	q.mu.Lock()
	wasActive := q.playing || len(q.pending) > 0
	q.pending = nil
	q.playing = false
	if q.currentResponseID != "" {
		q.interruptedResponseID = q.currentResponseID
	}
	q.currentResponseID = ""
	onInterrupt := q.OnInterrupt
	q.mu.Unlock()

	if wasActive && onInterrupt != nil {
		onInterrupt()
	}
}

// IsPlaying reports whether a playback is currently active.
func (q *PlaybackQueue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Len returns the number of queued (including currently-playing) entries.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

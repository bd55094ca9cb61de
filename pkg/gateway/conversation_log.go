package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConversationActor identifies who produced a logged conversation entry.
type ConversationActor string

const (
	ActorCaller       ConversationActor = "caller"
	ActorBot          ConversationActor = "bot"
	ActorSystem       ConversationActor = "system"
	ActorError        ConversationActor = "error"
	ActorDTMF         ConversationActor = "dtmf"
	ActorToolCall     ConversationActor = "tool_call"
	ActorToolResponse ConversationActor = "tool_response"
)

// ConversationEntry is one persisted conversation-log record, per spec §6.
type ConversationEntry struct {
	Timestamp          time.Time         `json:"timestamp"`
	Actor              ConversationActor `json:"actor"`
	Type               string            `json:"type"`
	Content             string            `json:"content"`
	CallID             string            `json:"callId"`
	ToolName           string            `json:"tool_name,omitempty"`
	OriginalTurnTimestamp *time.Time     `json:"originalTurnTimestamp,omitempty"`
}

// ConversationLog persists conversation entries keyed by call. Logging is
// best-effort and must never fail a call — callers should log failures, not
// propagate them into the call's error path.
type ConversationLog interface {
	Append(ctx context.Context, callID string, entry ConversationEntry) error
}

// NoOpConversationLog discards every entry. It is the default when no Redis
// client is configured.
type NoOpConversationLog struct{}

func (NoOpConversationLog) Append(ctx context.Context, callID string, entry ConversationEntry) error {
	return nil
}

// RedisConversationLog is a Redis-backed ConversationLog. Grounded on
// lookatitude-beluga-ai's memory/stores/redis (Config-with-required-Client
// constructor, JSON-marshal-per-entry, context-scoped calls) but adapted
// from that store's sorted-set-by-sequence-number shape to the literal
// RPUSH-list-plus-EXPIRE shape spec.md §6 names, since conversation entries
// here are read back as an ordered list, not searched by content.
type RedisConversationLog struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConversationLogConfig mirrors beluga-ai's Config-struct-with-
// required-client pattern.
type RedisConversationLogConfig struct {
	// Client is the Redis client to use. Required.
	Client *redis.Client
	// TTL is applied to a call's conversation key on every append. Defaults
	// to 24 hours if zero.
	TTL time.Duration
}

// NewRedisConversationLog builds a log backed by cfg.Client.
func NewRedisConversationLog(cfg RedisConversationLogConfig) (*RedisConversationLog, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("conversation log: redis client is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisConversationLog{client: cfg.Client, ttl: ttl}, nil
}

func conversationKey(callID string) string {
	return "conversation:" + callID
}

// Append RPUSHes the JSON-encoded entry onto conversation:<callID> and
// EXPIREs the key, per spec.md §6.
func (l *RedisConversationLog) Append(ctx context.Context, callID string, entry ConversationEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.CallID = callID

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation log: marshal entry: %w", err)
	}

	key := conversationKey(callID)
	if err := l.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("conversation log: rpush: %w", err)
	}
	if err := l.client.Expire(ctx, key, l.ttl).Err(); err != nil {
		return fmt.Errorf("conversation log: expire: %w", err)
	}
	return nil
}

// All returns every logged entry for callID in append order. Used by the
// front-end's get_conversation_history operator request.
func (l *RedisConversationLog) All(ctx context.Context, callID string) ([]ConversationEntry, error) {
	raw, err := l.client.LRange(ctx, conversationKey(callID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conversation log: lrange: %w", err)
	}

	entries := make([]ConversationEntry, 0, len(raw))
	for _, r := range raw {
		var e ConversationEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

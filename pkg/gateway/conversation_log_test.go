package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisLog(t *testing.T) (*RedisConversationLog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log, err := NewRedisConversationLog(RedisConversationLogConfig{Client: client, TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisConversationLog: %v", err)
	}
	return log, mr
}

func TestRedisConversationLog_AppendAndAll(t *testing.T) {
	log, _ := setupRedisLog(t)
	ctx := context.Background()

	if err := log.Append(ctx, "call-1", ConversationEntry{Actor: ActorCaller, Type: "transcript", Content: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(ctx, "call-1", ConversationEntry{Actor: ActorBot, Type: "response", Content: "hi there"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := log.All(ctx, "call-1")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Content != "hello" || entries[1].Content != "hi there" {
		t.Fatalf("entries out of order: %+v", entries)
	}
	if entries[0].CallID != "call-1" {
		t.Fatalf("CallID = %q, want call-1", entries[0].CallID)
	}
}

func TestRedisConversationLog_AppendSetsTTL(t *testing.T) {
	log, mr := setupRedisLog(t)
	ctx := context.Background()

	if err := log.Append(ctx, "call-2", ConversationEntry{Actor: ActorSystem, Type: "note", Content: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ttl := mr.TTL(conversationKey("call-2"))
	if ttl <= 0 {
		t.Fatalf("TTL = %v, want > 0 after append", ttl)
	}
}

func TestRedisConversationLog_DifferentCallsAreIsolated(t *testing.T) {
	log, _ := setupRedisLog(t)
	ctx := context.Background()

	log.Append(ctx, "call-a", ConversationEntry{Actor: ActorCaller, Content: "a"})
	log.Append(ctx, "call-b", ConversationEntry{Actor: ActorCaller, Content: "b"})

	entriesA, _ := log.All(ctx, "call-a")
	if len(entriesA) != 1 || entriesA[0].Content != "a" {
		t.Fatalf("call-a entries = %+v", entriesA)
	}
}

func TestNewRedisConversationLog_RequiresClient(t *testing.T) {
	if _, err := NewRedisConversationLog(RedisConversationLogConfig{}); err == nil {
		t.Fatal("expected error when Client is nil")
	}
}

func TestNoOpConversationLog_NeverFails(t *testing.T) {
	var log NoOpConversationLog
	if err := log.Append(context.Background(), "call-1", ConversationEntry{}); err != nil {
		t.Fatalf("NoOpConversationLog.Append returned error: %v", err)
	}
}

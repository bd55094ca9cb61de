package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func newTestGateway(t *testing.T, pbx *fakePBX) (*Gateway, func()) {
	t.Helper()
	server := mockInferenceServer(t, func(conn *websocket.Conn) {
		var frame map[string]interface{}
		wsjson.Read(context.Background(), conn, &frame)
		<-time.After(500 * time.Millisecond)
	})

	g := NewGateway(GatewayDeps{
		PBX: pbx,
		NewSession: func() *InferenceSessionAdapter {
			return NewInferenceSessionAdapter(wsURL(server), "test-key")
		},
		RTPHostIP: "127.0.0.1",
		SessionConfig: func(cfg Config) SessionConfig {
			return SessionConfig{Instructions: cfg.Instructions}
		},
		DefaultConfig: DefaultConfig(),
	})
	return g, server.Close
}

func TestGateway_StartCallRegistersAndArmsTheCall(t *testing.T) {
	pbx := &fakePBX{}
	g, closeServer := newTestGateway(t, pbx)
	defer closeServer()

	o, err := g.StartCall(context.Background(), "chan-1", g.defaultCfg)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	ids := g.ActiveCallIDs()
	if len(ids) != 1 {
		t.Fatalf("ActiveCallIDs = %v, want 1 entry", ids)
	}
	if g.PrimaryCallID() != ids[0] {
		t.Fatalf("PrimaryCallID = %q, want %q", g.PrimaryCallID(), ids[0])
	}
	if o.call.State != StateListening && o.call.State != StateGreeting {
		t.Fatalf("call State = %v, want Listening or Greeting after Arm", o.call.State)
	}

	got, ok := g.Call(ids[0])
	if !ok || got != o {
		t.Fatalf("Call(%q) = %v, %v, want the orchestrator StartCall returned", ids[0], got, ok)
	}
}

func TestGateway_RequiresPBXAdapter(t *testing.T) {
	g := NewGateway(GatewayDeps{})
	if _, err := g.StartCall(context.Background(), "chan-1", DefaultConfig()); err == nil {
		t.Fatal("expected an error when no PBX adapter is configured")
	}
}

func TestGateway_ListenersReceivePublishedEvents(t *testing.T) {
	pbx := &fakePBX{}
	g, closeServer := newTestGateway(t, pbx)
	defer closeServer()

	received := make(chan FrontendEvent, 32)
	g.RegisterListener(func(ev FrontendEvent) { received <- ev })

	if _, err := g.StartCall(context.Background(), "chan-1", g.defaultCfg); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type == "" {
			t.Fatal("expected a non-empty event type")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published frontend event")
	}
}

func TestGateway_PublishReachesListenersWithNoCallID(t *testing.T) {
	pbx := &fakePBX{}
	g, closeServer := newTestGateway(t, pbx)
	defer closeServer()

	received := make(chan FrontendEvent, 1)
	g.RegisterListener(func(ev FrontendEvent) { received <- ev })

	g.Publish(FrontendEvent{Type: "ari_connection_status", Source: "ari"})

	select {
	case ev := <-received:
		if ev.Type != "ari_connection_status" || ev.CallID != "" {
			t.Fatalf("got %+v, want type ari_connection_status with empty CallID", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}

func TestGateway_CallIsReapedAfterCleanup(t *testing.T) {
	pbx := &fakePBX{}
	g, closeServer := newTestGateway(t, pbx)
	defer closeServer()

	o, err := g.StartCall(context.Background(), "chan-1", g.defaultCfg)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	o.Cleanup(ReasonChannelEnded, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(g.ActiveCallIDs()) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the call to be reaped")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if g.PrimaryCallID() != "" {
		t.Fatalf("PrimaryCallID = %q, want empty after the only call ends", g.PrimaryCallID())
	}
}

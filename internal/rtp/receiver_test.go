package rtp

import (
	"net"
	"testing"
	"time"
)

func TestReceiver_StripsHeaderAndDropsShortPackets(t *testing.T) {
	recv, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer recv.Stop()

	go recv.Start()

	conn, err := net.DialUDP("udp", nil, recv.LocalAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Too short: dropped.
	if _, err := conn.Write(make([]byte, 11)); err != nil {
		t.Fatalf("write short: %v", err)
	}

	// 12-byte header + 4-byte payload.
	pkt := make([]byte, 16)
	for i := 12; i < 16; i++ {
		pkt[i] = byte(i)
	}
	if _, err := conn.Write(pkt); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case p := <-recv.Payloads():
		want := []byte{12, 13, 14, 15}
		if len(p.Data) != len(want) {
			t.Fatalf("payload len = %d, want %d", len(p.Data), len(want))
		}
		for i := range want {
			if p.Data[i] != want[i] {
				t.Fatalf("payload[%d] = %d, want %d", i, p.Data[i], want[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}

	select {
	case p := <-recv.Payloads():
		t.Fatalf("unexpected second payload from short packet: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReceiver_StopIsIdempotent(t *testing.T) {
	recv, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go recv.Start()
	recv.Stop()
	recv.Stop()
}

// Package rtp terminates one UDP socket per call and strips the 12-byte RTP
// header from inbound packets, handing the remaining payload to the caller.
package rtp

import (
	"fmt"
	"net"
	"sync"
)

// headerSize is the fixed RTP header length this receiver strips. Packets
// shorter than this are dropped rather than forwarded.
const headerSize = 12

// Payload is one received RTP packet with its header stripped.
type Payload struct {
	Data []byte
	From *net.UDPAddr
}

// Receiver binds a UDP socket on loopback with an ephemeral port and emits
// the audio payload of every datagram long enough to carry an RTP header.
// It is safe to Stop concurrently with Start's read loop; Stop is
// idempotent.
type Receiver struct {
	conn *net.UDPConn

	payloads chan Payload
	errs     chan error

	stopOnce sync.Once
	done     chan struct{}
}

// New binds a loopback UDP socket on an ephemeral port and returns a
// Receiver ready to Start. hostIP selects the bind address (spec's
// RTP_HOST_IP); an empty string defaults to loopback.
func New(hostIP string) (*Receiver, error) {
	if hostIP == "" {
		hostIP = "127.0.0.1"
	}
	addr := &net.UDPAddr{IP: net.ParseIP(hostIP), Port: 0}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rtp: bind: %w", err)
	}
	return &Receiver{
		conn:     conn,
		payloads: make(chan Payload, 256),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound address, including the ephemeral port, so the
// PBX control adapter can wire the media-injection channel to it.
func (r *Receiver) LocalAddr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Payloads returns the channel of stripped audio payloads.
func (r *Receiver) Payloads() <-chan Payload {
	return r.payloads
}

// Errs returns the channel on which a fatal socket error is reported
// exactly once. The receiver stops reading after reporting an error; the
// orchestrator decides whether to tear the call down.
func (r *Receiver) Errs() <-chan error {
	return r.errs
}

// Start begins the read loop in the caller's goroutine. Call it as
// `go receiver.Start()`.
func (r *Receiver) Start() {
	buf := make([]byte, 65536)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			select {
			case r.errs <- fmt.Errorf("rtp: read: %w", err):
			default:
			}
			return
		}

		if n < headerSize {
			continue
		}

		payload := make([]byte, n-headerSize)
		copy(payload, buf[headerSize:n])

		select {
		case r.payloads <- Payload{Data: payload, From: from}:
		case <-r.done:
			return
		}
	}
}

// Stop closes the socket and releases the port. Safe to call multiple
// times; only the first call has effect.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.conn.Close()
	})
}

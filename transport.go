// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// transportState is the lifecycle of one outstanding request.
type transportState int

const (
	stateIdle transportState = iota
	stateDiscovering
	stateSending
	stateWaitingReply
	stateDone
	stateRetrying
	stateFailed
)

func (s transportState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateDiscovering:
		return "Discovering"
	case stateSending:
		return "Sending"
	case stateWaitingReply:
		return "WaitingReply"
	case stateDone:
		return "Done"
	case stateRetrying:
		return "Retrying"
	case stateFailed:
		return "Failed"
	}
	return "Unknown"
}

// udpReadBufSize is sized well above any MaxMsgSize this library
// configures, so a single read always captures one full datagram.
const udpReadBufSize = 65536

// Transport owns the UDP socket for one target and serializes requests
// against it: SNMP has no multiplexing below the application layer, so
// concurrent callers take turns on a sync.Mutex rather than race on one
// connection. The mutex does not guarantee that waiting callers are
// served in the order they arrived.
type Transport struct {
	target TargetConfig
	mu     sync.Mutex
	conn   *net.UDPConn
	raddr  *net.UDPAddr

	state transportState
}

// NewTransport dials (without connecting, so the source address on
// every reply can be checked against raddr) a UDP socket for target.
func NewTransport(target TargetConfig) (*Transport, error) {
	target.normalize()
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(target.Address, itoa(target.Port)))
	if err != nil {
		return nil, newTransportError("resolve", err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, newTransportError("listen", err)
	}
	return &Transport{target: target, conn: conn, raddr: raddr, state: stateIdle}, nil
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

// RoundTrip sends encoded request and blocks for a matching reply,
// making exactly 1+RetryCount send attempts with a fixed per-attempt
// timeout before giving up. Datagrams whose source address or port
// differs from the request destination (unless source-check is
// disabled), and datagrams the match predicate rejects — a stale reply
// with the wrong request-id, typically — are dropped without consuming
// the attempt; the read keeps waiting out the remainder of the attempt's
// deadline. A nil match accepts any datagram from the right source.
func (t *Transport) RoundTrip(ctx context.Context, request []byte, match func([]byte) bool) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, udpReadBufSize)
	timeout := time.Duration(t.target.TimeoutMS) * time.Millisecond

	for attempt := 0; attempt <= t.target.RetryCount; attempt++ {
		select {
		case <-ctx.Done():
			t.state = stateFailed
			return nil, newTransportError("roundtrip", ctx.Err())
		default:
		}
		if attempt > 0 {
			t.state = stateRetrying
			t.target.Logger.Debug("snmp retry", "target", t.raddr.String(), "attempt", attempt+1)
		}

		t.state = stateSending
		if _, err := t.conn.WriteToUDP(request, t.raddr); err != nil {
			t.state = stateFailed
			return nil, newTransportError("write", err)
		}

		t.state = stateWaitingReply
		deadline := time.Now().Add(timeout)
		for {
			if err := t.conn.SetReadDeadline(deadline); err != nil {
				t.state = stateFailed
				return nil, newTransportError("set-read-deadline", err)
			}
			n, from, err := t.conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					break
				}
				t.state = stateFailed
				if errors.Is(err, net.ErrClosed) {
					return nil, newTransportError("read", errSocketTerminated)
				}
				return nil, newTransportError("read", err)
			}
			if !t.target.DisableSourceCheck && (!from.IP.Equal(t.raddr.IP) || from.Port != t.raddr.Port) {
				continue
			}
			out := make([]byte, n)
			copy(out, buf[:n])
			if match != nil && !match(out) {
				continue
			}
			t.state = stateDone
			return out, nil
		}
	}

	t.state = stateFailed
	return nil, newTransportError("roundtrip", errRequestTimedOut)
}

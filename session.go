// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TargetConfig describes one manager-side target: address, transport
// tuning, and the credentials needed to talk to it, for any of v1/v2c/v3.
type TargetConfig struct {
	Address string
	Port    int

	Version   Version
	Community string // v1/v2c

	// v3 user-based security parameters.
	UserName         string
	AuthProtocol     AuthProtocol
	AuthPassword     string
	PrivProtocol     PrivProtocol
	PrivPassword     string
	SecurityLevel    SecurityLevel
	ContextName      string
	ContextEngineID  []byte

	RetryCount       int
	TimeoutMS        int
	MaxRepetitions   int
	MaxMsgSize       uint32

	// StrictTimeWindow selects RFC 3414 §2.3's 150s engineTime window
	// instead of the library's more permissive 1500s default.
	StrictTimeWindow bool

	// DisableSourceCheck accepts replies from any source address. The
	// default rejects datagrams whose source address or port differs from
	// the request destination.
	DisableSourceCheck bool

	// Logger receives debug records for discovery, retries, and report
	// classification. Defaults to slog.Default().
	Logger *slog.Logger
}

func (t *TargetConfig) timeWindowSeconds() int32 {
	if t.StrictTimeWindow {
		return StrictTimeWindowSeconds
	}
	return DefaultTimeWindowSeconds
}

func (t *TargetConfig) normalize() {
	if t.Port == 0 {
		t.Port = DefaultAgentPort
	}
	if t.Community == "" && t.Version != Version3 {
		t.Community = DefaultCommunity
	}
	if t.RetryCount == 0 {
		t.RetryCount = DefaultRetries
	}
	if t.RetryCount < MinRetries {
		t.RetryCount = MinRetries
	}
	if t.RetryCount > MaxRetries {
		t.RetryCount = MaxRetries
	}
	if t.TimeoutMS == 0 {
		t.TimeoutMS = DefaultTimeoutMS
	}
	if t.TimeoutMS < MinTimeoutMS {
		t.TimeoutMS = MinTimeoutMS
	}
	if t.TimeoutMS > MaxTimeoutMS {
		t.TimeoutMS = MaxTimeoutMS
	}
	if t.MaxRepetitions == 0 {
		t.MaxRepetitions = DefaultMaxRepetitions
	}
	if t.MaxMsgSize == 0 {
		t.MaxMsgSize = DefaultMaxMsgSize
	}
	if t.Logger == nil {
		t.Logger = slog.Default()
	}
}

// SecureAgentParameters is the per-target USM engine cache built during
// discovery and refreshed on usmStatsNotInTimeWindows reports: the
// authoritative engineId/boots/time, the localized keys derived from
// it, and the wall-clock instant those boots/time values were observed
// (needed to extrapolate engineTime between requests).
type SecureAgentParameters struct {
	mu sync.Mutex

	EngineID    []byte
	EngineBoots int32
	EngineTime  int32
	observedAt  time.Time

	LocalizedKeyAuth []byte
	LocalizedKeyPriv []byte

	discovered atomic.Bool
}

// CurrentEngineTime extrapolates engineTime forward from the last
// discovery/resync using the wall clock, since the agent's clock isn't
// polled on every request. The extra second biases the estimate past
// the agent's own clock rather than behind it, which keeps a request
// sent right at a second boundary inside the agent's window.
func (s *SecureAgentParameters) CurrentEngineTime() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observedAt.IsZero() {
		return 0
	}
	elapsed := int32(time.Since(s.observedAt).Seconds())
	return s.EngineTime + elapsed + 1
}

// engineFresh reports whether the cached engineBoots/engineTime are
// still within windowSeconds of when they were observed. Outside the
// window the caller must re-discover before sending an authenticated
// request.
func (s *SecureAgentParameters) engineFresh(windowSeconds int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observedAt.IsZero() {
		return false
	}
	return int32(time.Since(s.observedAt).Seconds()) <= windowSeconds
}

func (s *SecureAgentParameters) setEngine(engineID []byte, boots, engTime int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EngineID = append([]byte(nil), engineID...)
	s.EngineBoots = boots
	s.EngineTime = engTime
	s.observedAt = time.Now()
	s.discovered.Store(true)
}

func (s *SecureAgentParameters) setKeys(authKey, privKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LocalizedKeyAuth = authKey
	s.LocalizedKeyPriv = privKey
}

func (s *SecureAgentParameters) isDiscovered() bool {
	return s.discovered.Load()
}

func (s *SecureAgentParameters) snapshot() (engineID []byte, boots, engTime int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.EngineID...), s.EngineBoots, s.EngineTime
}

// Session binds a TargetConfig to a live socket and (for v3) the USM
// engine state discovered for it. One Session serves one target;
// concurrent callers are serialized by the transport layer's per-target
// ordering, not by locking here.
type Session struct {
	Target TargetConfig
	USM    *SecureAgentParameters
}

// NewSession prepares a Session for Target, filling in defaults for any
// zero-valued tuning fields.
func NewSession(target TargetConfig) *Session {
	target.normalize()
	s := &Session{Target: target}
	if target.Version == Version3 {
		s.USM = &SecureAgentParameters{}
	}
	return s
}

func (s *Session) nextRequestID() int32 {
	return randomRequestID()
}

// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"context"
)

// Discover performs the SNMPv3 engine-discovery round trip: send an
// unauthenticated, unencrypted Get for sysDescr.0 with an empty
// engineId, and harvest engineId/boots/time from the usmStatsReport the
// agent sends back. Some agents answer the first exchange with
// boots=0/time=0 and only report real values once they have state for
// this manager, so a zero/zero reply triggers one repeat exchange.
func Discover(ctx context.Context, tr *Transport, sess *Session) error {
	for exchange := 0; exchange < 2; exchange++ {
		boots, engTime, err := discoverOnce(ctx, tr, sess)
		if err != nil {
			return err
		}
		if boots != 0 || engTime != 0 || exchange == 1 {
			break
		}
		sess.Target.Logger.Debug("snmp discovery returned zero boots/time, repeating",
			"target", sess.Target.Address)
	}

	if sess.Target.SecurityLevel != NoAuthNoPriv {
		engineID, _, _ := sess.USM.snapshot()
		authKey, privKey, err := DeriveKeys(sess.Target.AuthPassword, sess.Target.PrivPassword,
			engineID, sess.Target.AuthProtocol, sess.Target.PrivProtocol)
		if err != nil {
			return err
		}
		sess.USM.setKeys(authKey, privKey)
	}
	return nil
}

func discoverOnce(ctx context.Context, tr *Transport, sess *Session) (boots, engTime int32, err error) {
	msgID := randomRequestID()
	discMsg := newDiscoveryMessage(msgID, sess.Target.MaxMsgSize)
	discMsg.ScopedPduPlain = &ScopedPdu{
		ContextEngineID: nil,
		ContextName:     []byte(sess.Target.ContextName),
		PDU: &PDU{
			Kind:      KindGetRequest,
			RequestID: msgID,
			VarBinds:  VbList{{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewNull()}},
		},
	}

	raw, err := discMsg.encode()
	if err != nil {
		return 0, 0, newUSMError("discover", err)
	}

	match := func(datagram []byte) bool {
		id, perr := peekMsgID(datagram)
		return perr == nil && id == msgID
	}
	reply, err := tr.RoundTrip(ctx, raw, match)
	if err != nil {
		return 0, 0, err
	}

	respMsg, err := decodeV3Message(reply)
	if err != nil {
		return 0, 0, err
	}
	if respMsg.ScopedPduPlain == nil {
		return 0, 0, newUSMError("discover", errInvalidEngineID)
	}
	rp := respMsg.ScopedPduPlain.PDU
	if !rp.Kind.IsReport() {
		return 0, 0, newProtocolError("discover", errUnexpectedPDUType)
	}
	if len(rp.VarBinds) == 0 || !rp.VarBinds[0].OID.Equal(oidUsmStatsUnknownEngineIDs) {
		return 0, 0, newUSMError("discover", errInvalidEngineID)
	}

	engineID := respMsg.USM.AuthoritativeEngineID
	if len(engineID) == 0 {
		return 0, 0, newUSMError("discover", errInvalidEngineID)
	}
	sess.USM.setEngine(engineID, respMsg.USM.EngineBoots, respMsg.USM.EngineTime)
	sess.Target.Logger.Debug("snmp engine discovered",
		"target", sess.Target.Address,
		"engineBoots", respMsg.USM.EngineBoots,
		"engineTime", respMsg.USM.EngineTime)
	return respMsg.USM.EngineBoots, respMsg.USM.EngineTime, nil
}

// classifyReport inspects a Report-PDU's first varbind and reports
// whether it is a time-window violation (the caller should resync
// engineBoots/engineTime from the report and retry) versus some other
// usmStats condition that isn't automatically recoverable.
func classifyReport(p *PDU) (timeWindowViolation bool) {
	if len(p.VarBinds) == 0 {
		return false
	}
	return p.VarBinds[0].OID.Equal(oidUsmStatsNotInTimeWindows)
}

// checkTimeWindow validates that localTime is within windowSeconds of
// the session's last-known engineTime, per RFC 3414 §2.3's replay
// protection (the library defaults to a 1500s window rather than the
// RFC's 150s; TargetConfig.StrictTimeWindow selects the RFC value).
func checkTimeWindow(engineTime, localTime, windowSeconds int32) error {
	diff := engineTime - localTime
	if diff < 0 {
		diff = -diff
	}
	if diff > windowSeconds {
		return newUSMError("time-window", errTimeWindowExceeded)
	}
	return nil
}

// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"context"
	"fmt"
)

// maxWalkIterations bounds a Walk/BulkWalk loop so a misbehaving agent
// that keeps returning in-subtree OIDs can't hang the caller forever.
const maxWalkIterations = 20000

// Client issues Get/GetNext/GetBulk/Set/Walk requests against one
// target, handling v1/v2c framing or v3 USM framing (including
// discovery and time-window resync) transparently.
type Client struct {
	sess *Session
	tr   *Transport
}

// Dial resolves and opens the transport for target and, for v3 targets,
// performs engine discovery before returning.
func Dial(ctx context.Context, target TargetConfig) (*Client, error) {
	sess := NewSession(target)
	tr, err := NewTransport(sess.Target)
	if err != nil {
		return nil, err
	}
	c := &Client{sess: sess, tr: tr}
	if target.Version == Version3 {
		if err := Discover(ctx, tr, sess); err != nil {
			tr.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) Close() error { return c.tr.Close() }

// Discover re-runs SNMPv3 engine discovery explicitly, refreshing the
// cached engineId/boots/time and localized keys.
func (c *Client) Discover(ctx context.Context) error {
	if c.sess.Target.Version != Version3 {
		return newProtocolError("discover", errVersionMismatch)
	}
	return Discover(ctx, c.tr, c.sess)
}

func (c *Client) request(ctx context.Context, kind PDUKind, vbs VbList, nonRepeaters, maxReps int) (*PDU, error) {
	if c.sess.Target.Version == Version3 {
		if !c.sess.USM.isDiscovered() || !c.sess.USM.engineFresh(c.sess.Target.timeWindowSeconds()) {
			if err := Discover(ctx, c.tr, c.sess); err != nil {
				return nil, err
			}
		}
	}

	// Two passes at most: a usmStatsNotInTimeWindows report resyncs
	// boots/time from the agent and earns one retry with fresh values.
	var respPDU *PDU
	for pass := 0; pass < 2; pass++ {
		reqID := c.sess.nextRequestID()
		pdu := &PDU{
			Kind:           kind,
			RequestID:      reqID,
			NonRepeaters:   nonRepeaters,
			MaxRepetitions: maxReps,
			VarBinds:       vbs,
		}

		raw, err := c.encodeRequest(pdu)
		if err != nil {
			return nil, err
		}

		match := func(datagram []byte) bool {
			var id int32
			var perr error
			if c.sess.Target.Version == Version3 {
				id, perr = peekMsgID(datagram)
			} else {
				id, perr = peekV1V2cRequestID(datagram)
			}
			return perr == nil && id == reqID
		}
		reply, err := c.tr.RoundTrip(ctx, raw, match)
		if err != nil {
			return nil, err
		}

		var respMsg *V3Message
		respPDU, respMsg, err = c.decodeReply(reply)
		if err != nil {
			return nil, err
		}
		if !respPDU.Kind.IsReport() && respPDU.RequestID != reqID {
			return nil, newProtocolError("request-id", errRequestIDMismatch)
		}

		if respMsg != nil && respMsg.MsgMaxSize >= MinMsgSize && respMsg.MsgMaxSize < c.sess.Target.MaxMsgSize {
			c.sess.Target.MaxMsgSize = respMsg.MsgMaxSize
		}

		if respPDU.Kind.IsReport() && respMsg != nil && pass == 0 && classifyReport(respPDU) {
			c.sess.Target.Logger.Debug("snmp time-window report, resyncing engine clock",
				"target", c.sess.Target.Address)
			c.sess.USM.setEngine(respMsg.USM.AuthoritativeEngineID, respMsg.USM.EngineBoots, respMsg.USM.EngineTime)
			continue
		}
		break
	}
	return respPDU, nil
}

func (c *Client) encodeRequest(pdu *PDU) ([]byte, error) {
	switch c.sess.Target.Version {
	case Version1, Version2c:
		pkt := &V1V2cPacket{Version: c.sess.Target.Version, Community: []byte(c.sess.Target.Community), PDU: pdu}
		return pkt.Encode()
	case Version3:
		return c.encodeV3Request(pdu)
	}
	return nil, newProtocolError("encode", errVersionMismatch)
}

func (c *Client) encodeV3Request(pdu *PDU) ([]byte, error) {
	authOn := c.sess.Target.SecurityLevel != NoAuthNoPriv
	privOn := c.sess.Target.SecurityLevel == AuthPriv

	scoped := &ScopedPdu{
		ContextEngineID: c.sess.Target.ContextEngineID,
		ContextName:     []byte(c.sess.Target.ContextName),
		PDU:             pdu,
	}

	engineID, engineBoots, _ := c.sess.USM.snapshot()
	msg := &V3Message{
		MsgID:         pdu.RequestID,
		MsgMaxSize:    c.sess.Target.MaxMsgSize,
		Authenticated: authOn,
		Encrypted:     privOn,
		Reportable:    true,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: engineID,
			EngineBoots:           engineBoots,
			EngineTime:            c.sess.USM.CurrentEngineTime(),
			UserName:              []byte(c.sess.Target.UserName),
		},
	}

	if privOn {
		plain, err := scoped.encode()
		if err != nil {
			return nil, err
		}
		cipherText, privParams, err := encryptPayload(c.sess.Target.PrivProtocol, c.sess.USM.LocalizedKeyPriv, msg.USM.EngineBoots, msg.USM.EngineTime, plain)
		if err != nil {
			return nil, err
		}
		msg.ScopedPduCipher = cipherText
		msg.USM.PrivParams = privParams
	} else {
		msg.ScopedPduPlain = scoped
	}

	if authOn {
		msg.USM.AuthParams = make([]byte, authDigestLen)
		unsigned, err := msg.encode()
		if err != nil {
			return nil, err
		}
		if msg.AuthParamsOffset < 0 {
			return nil, newUSMError("encode", errInvalidAuthParamsLen)
		}
		digest, err := computeAuthDigest(c.sess.Target.AuthProtocol, c.sess.USM.LocalizedKeyAuth, unsigned)
		if err != nil {
			return nil, err
		}
		copy(unsigned[msg.AuthParamsOffset:msg.AuthParamsOffset+authDigestLen], digest)
		return unsigned, nil
	}

	return msg.encode()
}

// decodeReply parses a raw reply datagram into its PDU, verifying the
// HMAC for authenticated v3 replies before touching the payload. For v3
// targets it also returns the outer V3Message so the caller can resync
// engineBoots/engineTime off a usmStatsNotInTimeWindows report; it's
// nil for v1/v2c.
func (c *Client) decodeReply(reply []byte) (*PDU, *V3Message, error) {
	switch c.sess.Target.Version {
	case Version1, Version2c:
		pkt, err := DecodeV1V2cPacket(reply, c.sess.Target.Version, []byte(c.sess.Target.Community))
		if err != nil {
			return nil, nil, err
		}
		return pkt.PDU, nil, nil
	case Version3:
		msg, err := decodeV3Message(reply)
		if err != nil {
			return nil, nil, err
		}

		if msg.Authenticated {
			if len(msg.USM.AuthParams) != authDigestLen || msg.AuthParamsOffset < 0 {
				return nil, nil, newUSMError("decode", errInvalidAuthParamsLen)
			}
			zeroed := zeroAuthParams(reply, msg.AuthParamsOffset)
			ok, err := verifyAuthDigest(c.sess.Target.AuthProtocol, c.sess.USM.LocalizedKeyAuth, zeroed, msg.USM.AuthParams)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				return nil, nil, newUSMError("decode", errAuthenticationFailed)
			}
		}

		pdu, err := c.scopedReplyPDU(msg)
		if err != nil {
			return nil, nil, err
		}

		// A Report can legitimately arrive under the engine's own
		// identity before ours is established; everything else must
		// carry the securityName and engineId this request was sent
		// with.
		if !pdu.Kind.IsReport() {
			if string(msg.USM.UserName) != c.sess.Target.UserName {
				return nil, nil, newProtocolError("securityName", errSecurityNameMismatch)
			}
			engineID, _, _ := c.sess.USM.snapshot()
			if len(engineID) > 0 && string(msg.USM.AuthoritativeEngineID) != string(engineID) {
				return nil, nil, newUSMError("decode", errInvalidEngineID)
			}
		}
		return pdu, msg, nil
	}
	return nil, nil, newProtocolError("decode", errVersionMismatch)
}

// scopedReplyPDU extracts the PDU from a decoded v3 envelope, decrypting
// the scopedPduData first when the privacy flag is set. A decryption or
// post-decryption parse failure is reported as an authentication error:
// by the time privacy fails, the HMAC already passed, so the most likely
// cause is a wrong privacy key.
func (c *Client) scopedReplyPDU(msg *V3Message) (*PDU, error) {
	if !msg.Encrypted {
		if msg.ScopedPduPlain == nil {
			return nil, newDecodeError("scopedPdu", errWrongContainer)
		}
		return msg.ScopedPduPlain.PDU, nil
	}
	plain, err := decryptPayload(c.sess.Target.PrivProtocol, c.sess.USM.LocalizedKeyPriv, msg.USM.EngineBoots, msg.USM.EngineTime, msg.ScopedPduCipher, msg.USM.PrivParams)
	if err != nil {
		return nil, newUSMError("decrypt", errAuthenticationFailed)
	}
	scoped, err := decodeScopedPdu(plain)
	if err != nil {
		return nil, newUSMError("decrypt", errAuthenticationFailed)
	}
	return scoped.PDU, nil
}

// Get performs a single GetRequest for the given OIDs.
func (c *Client) Get(ctx context.Context, oids ...Oid) (VbList, error) {
	vbs := make(VbList, len(oids))
	for i, o := range oids {
		vbs[i] = Vb{OID: o, Value: NewNull()}
	}
	resp, err := c.request(ctx, KindGetRequest, vbs, 0, 0)
	if err != nil {
		return nil, err
	}
	if resp.ErrorStatus != NoError {
		return resp.VarBinds, &StatusError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	}
	return resp.VarBinds, nil
}

// GetNext performs a single GetNextRequest.
func (c *Client) GetNext(ctx context.Context, oids ...Oid) (VbList, error) {
	vbs := make(VbList, len(oids))
	for i, o := range oids {
		vbs[i] = Vb{OID: o, Value: NewNull()}
	}
	resp, err := c.request(ctx, KindGetNextRequest, vbs, 0, 0)
	if err != nil {
		return nil, err
	}
	if resp.ErrorStatus != NoError {
		return resp.VarBinds, &StatusError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	}
	return resp.VarBinds, nil
}

// GetBulk performs a single GetBulkRequest (v2c/v3 only). A
// non-positive maxRepetitions selects the default.
func (c *Client) GetBulk(ctx context.Context, nonRepeaters int, maxRepetitions int, oids ...Oid) (VbList, error) {
	if c.sess.Target.Version == Version1 {
		return nil, newProtocolError("getbulk", errUnexpectedPDUType)
	}
	if maxRepetitions <= 0 {
		maxRepetitions = DefaultMaxRepetitions
	}
	vbs := make(VbList, len(oids))
	for i, o := range oids {
		vbs[i] = Vb{OID: o, Value: NewNull()}
	}
	resp, err := c.request(ctx, KindGetBulkRequest, vbs, nonRepeaters, maxRepetitions)
	if err != nil {
		return nil, err
	}
	if resp.ErrorStatus != NoError {
		return resp.VarBinds, &StatusError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	}
	return resp.VarBinds, nil
}

// Set performs a single SetRequest.
func (c *Client) Set(ctx context.Context, vbs VbList) (VbList, error) {
	resp, err := c.request(ctx, KindSetRequest, vbs, 0, 0)
	if err != nil {
		return nil, err
	}
	if resp.ErrorStatus != NoError {
		return resp.VarBinds, &StatusError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	}
	return resp.VarBinds, nil
}

// Walk traverses the subtree rooted at base, returning a map of OID
// string to Value. v1 targets use repeated GetNext; v2c/v3 targets use
// GetBulk. Terminates on a non-descendant OID, an exception value, an
// error-status, or the agent returning a non-increasing OID (protects
// against a broken agent causing an infinite loop). An OID reappearing
// with a different value type fails the walk: the accumulated map would
// silently hold whichever value came last.
func (c *Client) Walk(ctx context.Context, base Oid) (map[string]Value, error) {
	if c.sess.Target.Version != Version1 {
		return c.BulkWalk(ctx, base)
	}
	result := make(map[string]Value)
	current := base
	for i := 0; i < maxWalkIterations; i++ {
		vbs, err := c.GetNext(ctx, current)
		if err != nil {
			if _, ok := err.(*StatusError); ok {
				return result, nil
			}
			return result, err
		}
		if len(vbs) == 0 {
			return result, nil
		}
		next := vbs[0]
		if !next.OID.Within(base) {
			return result, nil
		}
		if next.OID.Compare(current) <= 0 {
			return result, fmt.Errorf("snmpmgr: walk: agent returned non-increasing OID %s", next.OID)
		}
		if next.Value.IsException() {
			return result, nil
		}
		if err := recordWalkValue(result, next); err != nil {
			return result, err
		}
		current = next.OID
	}
	return result, nil
}

// BulkWalk performs a GetBulk-based traversal, the higher-throughput
// counterpart to the GetNext loop. v1 targets fall back to the GetNext
// loop since GetBulk doesn't exist there.
func (c *Client) BulkWalk(ctx context.Context, base Oid) (map[string]Value, error) {
	if c.sess.Target.Version == Version1 {
		return c.Walk(ctx, base)
	}
	result := make(map[string]Value)
	current := base
	maxReps := c.sess.Target.MaxRepetitions
	for i := 0; i < maxWalkIterations; i++ {
		vbs, err := c.GetBulk(ctx, 0, maxReps, current)
		if err != nil {
			if _, ok := err.(*StatusError); ok {
				return result, nil
			}
			return result, err
		}
		if len(vbs) == 0 {
			return result, nil
		}
		progressed := false
		for _, vb := range vbs {
			if !vb.OID.Within(base) {
				return result, nil
			}
			if vb.OID.Compare(current) <= 0 {
				return result, nil
			}
			if vb.Value.IsException() {
				return result, nil
			}
			if err := recordWalkValue(result, vb); err != nil {
				return result, err
			}
			current = vb.OID
			progressed = true
		}
		if !progressed {
			return result, nil
		}
	}
	return result, nil
}

func recordWalkValue(result map[string]Value, vb Vb) error {
	key := vb.OID.String()
	if prev, seen := result[key]; seen && prev.Tag != vb.Value.Tag {
		return fmt.Errorf("snmpmgr: walk: value type changed for %s: %s then %s",
			key, prev.TypeName(), vb.Value.TypeName())
	}
	result[key] = vb.Value
	return nil
}

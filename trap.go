// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TrapMessage is a decoded V2Trap or Inform notification carried in a
// v1, v2c or v3 message. A Trap-PDU (tag 0xA4) is decoded with the same
// request-id/error-status/error-index/varbinds layout as every other PDU;
// the RFC 1157 Trap-PDU fields (enterprise, agent-addr, generic and
// specific trap, time-stamp) are not parsed.
type TrapMessage struct {
	Version      Version
	SenderAddr   string
	Community    string // v1/v2c only
	SecurityName string // v3 only

	PDU *PDU
}

// TrapListener receives and parses traps/informs on a UDP socket, ACKing
// Inform-PDUs (the only notification kind that requires a reply) and
// otherwise handing decoded TrapMessage values to a caller-supplied
// handler.
type TrapListener struct {
	conn *net.UDPConn

	// V3Users maps securityName to the credentials needed to
	// authenticate/decrypt an incoming v3 trap or inform.
	V3Users map[string]TargetConfig
	// V2Communities restricts which v1/v2c communities are accepted;
	// a nil map accepts any community.
	V2Communities map[string]bool
}

// ListenTrap binds a UDP socket for receiving traps/informs, typically
// on port 162.
func ListenTrap(addr string, port int) (*TrapListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, itoa(port)))
	if err != nil {
		return nil, newTransportError("resolve", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, newTransportError("listen", err)
	}
	return &TrapListener{conn: conn, V3Users: map[string]TargetConfig{}, V2Communities: nil}, nil
}

func (l *TrapListener) Close() error { return l.conn.Close() }

// Serve reads datagrams until ctx is cancelled, invoking handler for
// every successfully decoded trap/inform. Decode failures are passed to
// handler as an error with a nil TrapMessage so the caller can log and
// continue; Serve itself never returns on a single bad datagram.
func (l *TrapListener) Serve(ctx context.Context, handler func(*TrapMessage, error)) error {
	buf := make([]byte, udpReadBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return newTransportError("read", err)
		}
		msg, err := l.decode(buf[:n], from)
		handler(msg, err)
	}
}

func (l *TrapListener) decode(raw []byte, from *net.UDPAddr) (*TrapMessage, error) {
	version, err := peekVersion(raw)
	if err != nil {
		return nil, err
	}

	switch version {
	case Version1, Version2c:
		pkt, err := DecodeV1V2cPacket(raw, version, nil)
		if err != nil {
			return nil, err
		}
		if l.V2Communities != nil && !l.V2Communities[string(pkt.Community)] {
			return nil, newProtocolError("community", errCommunityMismatch)
		}
		if pkt.PDU.Kind != KindTrap && pkt.PDU.Kind != KindV2Trap && pkt.PDU.Kind != KindInformRequest {
			return nil, newProtocolError("trap", errUnexpectedPDUType)
		}
		if pkt.PDU.Kind == KindInformRequest {
			l.ackInformV2(pkt.PDU, version, string(pkt.Community), from)
		}
		return &TrapMessage{Version: version, SenderAddr: from.String(), Community: string(pkt.Community), PDU: pkt.PDU}, nil

	case Version3:
		msg, err := decodeV3Message(raw)
		if err != nil {
			return nil, err
		}
		userName := string(msg.USM.UserName)
		target, ok := l.V3Users[userName]
		if !ok {
			return nil, newUSMError("trap", errSecurityNameMismatch)
		}
		if msg.Authenticated {
			authKey, _, kerr := DeriveKeys(target.AuthPassword, target.PrivPassword, msg.USM.AuthoritativeEngineID, target.AuthProtocol, target.PrivProtocol)
			if kerr != nil {
				return nil, kerr
			}
			if len(msg.USM.AuthParams) != authDigestLen || msg.AuthParamsOffset < 0 {
				return nil, newUSMError("trap", errInvalidAuthParamsLen)
			}
			zeroed := zeroAuthParams(raw, msg.AuthParamsOffset)
			verified, verr := verifyAuthDigest(target.AuthProtocol, authKey, zeroed, msg.USM.AuthParams)
			if verr != nil {
				return nil, verr
			}
			if !verified {
				return nil, newUSMError("trap", errAuthenticationFailed)
			}
		}
		scoped, err := decodeV3TrapScoped(msg, target)
		if err != nil {
			return nil, err
		}
		pdu := scoped.PDU
		if pdu.Kind != KindV2Trap && pdu.Kind != KindInformRequest {
			return nil, newProtocolError("trap", errUnexpectedPDUType)
		}
		if pdu.Kind == KindInformRequest {
			l.ackInformV3(msg, scoped, target, from)
		}
		return &TrapMessage{Version: version, SenderAddr: from.String(), SecurityName: userName, PDU: pdu}, nil
	}

	return nil, newProtocolError("version", errVersionMismatch)
}

func decodeV3TrapScoped(msg *V3Message, target TargetConfig) (*ScopedPdu, error) {
	if !msg.Encrypted {
		if msg.ScopedPduPlain == nil {
			return nil, newDecodeError("scopedPdu", errWrongContainer)
		}
		return msg.ScopedPduPlain, nil
	}
	_, privKey, err := DeriveKeys(target.AuthPassword, target.PrivPassword, msg.USM.AuthoritativeEngineID, target.AuthProtocol, target.PrivProtocol)
	if err != nil {
		return nil, err
	}
	plain, err := decryptPayload(target.PrivProtocol, privKey, msg.USM.EngineBoots, msg.USM.EngineTime, msg.ScopedPduCipher, msg.USM.PrivParams)
	if err != nil {
		return nil, err
	}
	return decodeScopedPdu(plain)
}

// informAckVarBinds rebuilds the sysUpTime.0 and snmpTrapOID.0 bindings
// the Inform led with; the acknowledging Response echoes them back.
func informAckVarBinds(p *PDU) VbList {
	vbs := VbList{}
	if p.TrapSysUpTime != nil {
		vbs = append(vbs, Vb{OID: oidSysUpTime.Clone(), Value: NewTimeTicks(*p.TrapSysUpTime)})
	}
	if p.TrapObjectID != nil {
		vbs = append(vbs, Vb{OID: oidSnmpTrapOID.Clone(), Value: NewObjectIdentifier(p.TrapObjectID)})
	}
	return vbs
}

func (l *TrapListener) ackInformV2(inform *PDU, version Version, community string, to *net.UDPAddr) {
	resp := &PDU{Kind: KindResponse, RequestID: inform.RequestID, VarBinds: informAckVarBinds(inform)}
	pkt := &V1V2cPacket{Version: version, Community: []byte(community), PDU: resp}
	raw, err := pkt.Encode()
	if err != nil {
		return
	}
	_, _ = l.conn.WriteToUDP(raw, to)
}

func (l *TrapListener) ackInformV3(reqMsg *V3Message, scoped *ScopedPdu, target TargetConfig, to *net.UDPAddr) {
	resp := &PDU{Kind: KindResponse, RequestID: scoped.PDU.RequestID, VarBinds: informAckVarBinds(scoped.PDU)}
	respMsg := &V3Message{
		MsgID:         reqMsg.MsgID,
		MsgMaxSize:    reqMsg.MsgMaxSize,
		Authenticated: reqMsg.Authenticated,
		Encrypted:     false,
		Reportable:    false,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: reqMsg.USM.AuthoritativeEngineID,
			EngineBoots:           reqMsg.USM.EngineBoots,
			EngineTime:            reqMsg.USM.EngineTime,
			UserName:              reqMsg.USM.UserName,
		},
		ScopedPduPlain: &ScopedPdu{
			ContextEngineID: scoped.ContextEngineID,
			ContextName:     scoped.ContextName,
			PDU:             resp,
		},
	}
	if reqMsg.Authenticated {
		respMsg.USM.AuthParams = make([]byte, authDigestLen)
	}
	raw, err := respMsg.encode()
	if err != nil {
		return
	}
	if reqMsg.Authenticated && respMsg.AuthParamsOffset >= 0 {
		authKey, _, err := DeriveKeys(target.AuthPassword, target.PrivPassword, reqMsg.USM.AuthoritativeEngineID, target.AuthProtocol, target.PrivProtocol)
		if err == nil {
			if digest, derr := computeAuthDigest(target.AuthProtocol, authKey, raw); derr == nil {
				copy(raw[respMsg.AuthParamsOffset:respMsg.AuthParamsOffset+authDigestLen], digest)
			}
		}
	}
	_, _ = l.conn.WriteToUDP(raw, to)
}

// peekVersion reads just enough of the outer Sequence to extract the
// msgVersion/version INTEGER without fully decoding the packet, so the
// v1/v2c and v3 decode paths can be chosen before committing to either.
func peekVersion(raw []byte) (Version, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return 0, err
	}
	if tag != tagSequence {
		return 0, newDecodeError("peek-version", errWrongContainer)
	}
	inner := newDecBuf(payload)
	verVal, err := decodeValue(inner)
	if err != nil {
		return 0, err
	}
	if verVal.Tag != tagInteger32 {
		return 0, newDecodeError("peek-version", errInvalidTag)
	}
	return Version(verVal.Int), nil
}

func (t *TrapMessage) String() string {
	if t.Version == Version3 {
		return fmt.Sprintf("trap v3 from %s user=%s", t.SenderAddr, t.SecurityName)
	}
	label := "v1"
	if t.Version == Version2c {
		label = "v2c"
	}
	return fmt.Sprintf("trap %s from %s community=%s", label, t.SenderAddr, t.Community)
}

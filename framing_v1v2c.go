// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

// V1V2cPacket is the v1/v2c outer envelope: Sequence { version,
// community, PDU }.
type V1V2cPacket struct {
	Version   Version
	Community []byte
	PDU       *PDU
}

func (pkt *V1V2cPacket) Encode() ([]byte, error) {
	pduEnc, err := pkt.PDU.encode()
	if err != nil {
		return nil, err
	}
	inner := newEncBuf()
	inner.Write(encodeInt32TLV(tagInteger32, int32(pkt.Version)))
	commBuf := newEncBuf()
	commBuf.writeTLV(tagOctetString, pkt.Community)
	inner.Write(commBuf.Bytes())
	inner.Write(pduEnc)

	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())
	return out.Bytes(), nil
}

// peekV1V2cRequestID extracts the PDU request-id from a v1/v2c datagram
// without decoding the varbind list, for reply matching at the transport
// layer.
func peekV1V2cRequestID(raw []byte) (int32, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return 0, err
	}
	if tag != tagSequence {
		return 0, newDecodeError("peek-request-id", errWrongContainer)
	}
	inner := newDecBuf(payload)
	if _, err := decodeValue(inner); err != nil { // version
		return 0, err
	}
	if _, err := decodeValue(inner); err != nil { // community
		return 0, err
	}
	pduTag, pduPayload, err := readHeader(inner)
	if err != nil {
		return 0, err
	}
	if _, ok := pduKindFromTag(pduTag); !ok {
		return 0, newDecodeError("peek-request-id", errUnexpectedPDUType)
	}
	pd := newDecBuf(pduPayload)
	reqIDVal, err := decodeValue(pd)
	if err != nil {
		return 0, err
	}
	if reqIDVal.Tag != tagInteger32 {
		return 0, newDecodeError("peek-request-id", errInvalidTag)
	}
	return int32(reqIDVal.Int), nil
}

// DecodeV1V2cPacket parses a v1/v2c envelope and checks the version and
// community against what's expected. A version mismatch or community
// mismatch is rejected with a ProtocolError (errVersionMismatch or
// errCommunityMismatch) — a reply with the wrong community is refused
// outright, like one that failed authentication.
func DecodeV1V2cPacket(raw []byte, expectVersion Version, expectCommunity []byte) (*V1V2cPacket, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	if tag != tagSequence {
		return nil, newDecodeError("packet", errWrongContainer)
	}
	inner := newDecBuf(payload)

	verVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if verVal.Tag != tagInteger32 {
		return nil, newDecodeError("packet", errInvalidTag)
	}
	version := Version(verVal.Int)
	if version != expectVersion {
		return nil, newProtocolError("version", errVersionMismatch)
	}

	commVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if commVal.Tag != tagOctetString {
		return nil, newDecodeError("packet", errInvalidTag)
	}
	if expectCommunity != nil && string(commVal.Bytes) != string(expectCommunity) {
		return nil, newProtocolError("community", errCommunityMismatch)
	}

	pdu, err := decodePDU(inner)
	if err != nil {
		return nil, err
	}

	return &V1V2cPacket{Version: version, Community: commVal.Bytes, PDU: pdu}, nil
}

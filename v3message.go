// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
//
package snmpmgr

// ScopedPdu is a PDU augmented with contextEngineId and contextName.
type ScopedPdu struct {
	ContextEngineID []byte
	ContextName     []byte
	PDU             *PDU
}

func (s *ScopedPdu) encode() ([]byte, error) {
	pduEnc, err := s.PDU.encode()
	if err != nil {
		return nil, err
	}
	inner := newEncBuf()
	engBuf := newEncBuf()
	engBuf.writeTLV(tagOctetString, s.ContextEngineID)
	inner.Write(engBuf.Bytes())
	nameBuf := newEncBuf()
	nameBuf.writeTLV(tagOctetString, s.ContextName)
	inner.Write(nameBuf.Bytes())
	inner.Write(pduEnc)

	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())
	return out.Bytes(), nil
}

func decodeScopedPdu(raw []byte) (*ScopedPdu, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	if tag != tagSequence {
		return nil, newDecodeError("scopedPdu", errWrongContainer)
	}
	inner := newDecBuf(payload)

	engVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	nameVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if engVal.Tag != tagOctetString || nameVal.Tag != tagOctetString {
		return nil, newDecodeError("scopedPdu", errInvalidTag)
	}
	pdu, err := decodePDU(inner)
	if err != nil {
		return nil, err
	}
	return &ScopedPdu{ContextEngineID: engVal.Bytes, ContextName: nameVal.Bytes, PDU: pdu}, nil
}

// USMParameters is the msgSecurityParameters content for USM.
// AuthParams holds 12 zero bytes during MAC computation and the
// truncated MAC thereafter; PrivParams is 8 bytes for every privacy
// protocol, including 3DES and AES-192/256 (privParamsLen in
// usm_priv.go); no protocol uses a longer field.
type USMParameters struct {
	AuthoritativeEngineID []byte
	EngineBoots           int32
	EngineTime            int32
	UserName              []byte
	AuthParams            []byte
	PrivParams            []byte
}

// encode serializes the USM parameters sequence. The returned offset is
// the position of the AuthParams content within the returned bytes (or
// -1 when AuthParams is empty), so the envelope encoder can report where
// the MAC placeholder sits in the final datagram — every preceding field
// is variable-length BER, so the offset has to be tracked while
// building, not derived afterwards.
func (u *USMParameters) encode() ([]byte, int) {
	inner := newEncBuf()
	eidBuf := newEncBuf()
	eidBuf.writeTLV(tagOctetString, u.AuthoritativeEngineID)
	inner.Write(eidBuf.Bytes())
	inner.Write(encodeInt32TLV(tagInteger32, u.EngineBoots))
	inner.Write(encodeInt32TLV(tagInteger32, u.EngineTime))
	userBuf := newEncBuf()
	userBuf.writeTLV(tagOctetString, u.UserName)
	inner.Write(userBuf.Bytes())

	authRel := -1
	if len(u.AuthParams) > 0 {
		authRel = inner.Len() + 1 + len(encodeLength(len(u.AuthParams)))
	}
	authBuf := newEncBuf()
	authBuf.writeTLV(tagOctetString, u.AuthParams)
	inner.Write(authBuf.Bytes())
	privBuf := newEncBuf()
	privBuf.writeTLV(tagOctetString, u.PrivParams)
	inner.Write(privBuf.Bytes())

	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())
	if authRel >= 0 {
		authRel += 1 + len(encodeLength(inner.Len()))
	}
	return out.Bytes(), authRel
}

// decodeUSMParameters parses the OctetString-wrapped USM sequence. The
// returned offset is the position of the AuthParams content within raw,
// or -1 when the field is empty, mirroring encode.
func decodeUSMParameters(raw []byte) (*USMParameters, int, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, -1, err
	}
	if tag != tagSequence {
		return nil, -1, newDecodeError("usm-parameters", errWrongContainer)
	}
	seqPayloadBase := d.pos - len(payload)
	inner := newDecBuf(payload)

	eid, err := decodeValue(inner)
	if err != nil {
		return nil, -1, err
	}
	boots, err := decodeValue(inner)
	if err != nil {
		return nil, -1, err
	}
	etime, err := decodeValue(inner)
	if err != nil {
		return nil, -1, err
	}
	user, err := decodeValue(inner)
	if err != nil {
		return nil, -1, err
	}
	authTag, authPayload, err := readHeader(inner)
	if err != nil {
		return nil, -1, err
	}
	if authTag != tagOctetString {
		return nil, -1, newDecodeError("usm-parameters", errInvalidTag)
	}
	authRel := -1
	if len(authPayload) > 0 {
		authRel = seqPayloadBase + inner.pos - len(authPayload)
	}
	privp, err := decodeValue(inner)
	if err != nil {
		return nil, -1, err
	}
	return &USMParameters{
		AuthoritativeEngineID: eid.Bytes,
		EngineBoots:           int32(boots.Int),
		EngineTime:            int32(etime.Int),
		UserName:              user.Bytes,
		AuthParams:            append([]byte(nil), authPayload...),
		PrivParams:            privp.Bytes,
	}, authRel, nil
}

// V3Message is the full v3 outer envelope: Sequence { msgVersion=3,
// msgGlobalData, msgSecurityParameters, scopedPduData }.
type V3Message struct {
	MsgID           int32
	MsgMaxSize      uint32
	Authenticated   bool
	Encrypted       bool
	Reportable      bool
	SecurityModel   int32
	USM             USMParameters
	ScopedPduPlain  *ScopedPdu // set when Encrypted == false
	ScopedPduCipher []byte     // set when Encrypted == true

	// AuthParamsOffset is the byte position of the
	// msgAuthenticationParameters content within the serialized
	// datagram, -1 when the field is empty. Filled by both encode and
	// decodeV3Message; the MAC is computed over the datagram with those
	// bytes zeroed.
	AuthParamsOffset int
}

func (m *V3Message) msgFlags() byte {
	var f byte
	if m.Authenticated {
		f |= msgFlagAuth
	}
	if m.Encrypted {
		f |= msgFlagPriv
	}
	if m.Reportable {
		f |= msgFlagReportable
	}
	return f
}

// encode serializes the v3 envelope, filling m.AuthParamsOffset. Returns
// an error for the forbidden auth=false/priv=true combination.
func (m *V3Message) encode() ([]byte, error) {
	if m.Encrypted && !m.Authenticated {
		return nil, newUSMError("encode", errNoAuthPrivForbidden)
	}

	globalInner := newEncBuf()
	globalInner.Write(encodeInt32TLV(tagInteger32, m.MsgID))
	globalInner.Write(encodeInt32TLV(tagInteger32, int32(m.MsgMaxSize)))
	flagBuf := newEncBuf()
	flagBuf.writeTLV(tagOctetString, []byte{m.msgFlags()})
	globalInner.Write(flagBuf.Bytes())
	globalInner.Write(encodeInt32TLV(tagInteger32, m.SecurityModel))
	globalBuf := newEncBuf()
	globalBuf.writeTLV(tagSequence, globalInner.Bytes())

	usmEnc, authRel := m.USM.encode()
	usmOuter := newEncBuf()
	usmOuter.writeTLV(tagOctetString, usmEnc)

	var scopedEnc []byte
	var err error
	if m.Encrypted {
		scopedBuf := newEncBuf()
		scopedBuf.writeTLV(tagOctetString, m.ScopedPduCipher)
		scopedEnc = scopedBuf.Bytes()
	} else {
		scopedEnc, err = m.ScopedPduPlain.encode()
		if err != nil {
			return nil, err
		}
	}

	inner := newEncBuf()
	inner.Write(encodeInt32TLV(tagInteger32, 3))
	inner.Write(globalBuf.Bytes())
	usmPayloadOff := inner.Len() + 1 + len(encodeLength(len(usmEnc)))
	inner.Write(usmOuter.Bytes())
	inner.Write(scopedEnc)

	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())

	m.AuthParamsOffset = -1
	if authRel >= 0 {
		m.AuthParamsOffset = 1 + len(encodeLength(inner.Len())) + usmPayloadOff + authRel
	}
	return out.Bytes(), nil
}

// decodeV3Message parses the v3 envelope but does not decrypt the
// scopedPduData if the privacy flag is set — that's done by the caller
// once the privacy key is known (usm_priv.go); ScopedPduCipher holds the
// raw ciphertext in that case.
func decodeV3Message(raw []byte) (*V3Message, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	if tag != tagSequence {
		return nil, newDecodeError("v3message", errWrongContainer)
	}
	payloadBase := d.pos - len(payload)
	inner := newDecBuf(payload)

	verVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if verVal.Tag != tagInteger32 || verVal.Int != 3 {
		return nil, newProtocolError("version", errVersionMismatch)
	}

	globTag, globPayload, err := readHeader(inner)
	if err != nil {
		return nil, err
	}
	if globTag != tagSequence {
		return nil, newDecodeError("v3message", errWrongContainer)
	}
	gd := newDecBuf(globPayload)
	msgIDVal, err := decodeValue(gd)
	if err != nil {
		return nil, err
	}
	maxSizeVal, err := decodeValue(gd)
	if err != nil {
		return nil, err
	}
	flagsVal, err := decodeValue(gd)
	if err != nil {
		return nil, err
	}
	secModelVal, err := decodeValue(gd)
	if err != nil {
		return nil, err
	}
	if len(flagsVal.Bytes) != 1 {
		return nil, newDecodeError("msgFlags", errLengthMismatch)
	}
	flags := flagsVal.Bytes[0]
	authFlag := flags&msgFlagAuth != 0
	privFlag := flags&msgFlagPriv != 0
	if privFlag && !authFlag {
		return nil, newUSMError("decode", errNoAuthPrivForbidden)
	}

	usmTag, usmPayload, err := readHeader(inner)
	if err != nil {
		return nil, err
	}
	if usmTag != tagOctetString {
		return nil, newDecodeError("v3message", errInvalidTag)
	}
	usmPayloadOff := payloadBase + inner.pos - len(usmPayload)
	usm, authRel, err := decodeUSMParameters(usmPayload)
	if err != nil {
		return nil, err
	}

	msg := &V3Message{
		MsgID:            int32(msgIDVal.Int),
		MsgMaxSize:       uint32(maxSizeVal.Int),
		Authenticated:    authFlag,
		Encrypted:        privFlag,
		Reportable:       flags&msgFlagReportable != 0,
		SecurityModel:    int32(secModelVal.Int),
		USM:              *usm,
		AuthParamsOffset: -1,
	}
	if authRel >= 0 {
		msg.AuthParamsOffset = usmPayloadOff + authRel
	}
	if int32(secModelVal.Int) != msgSecurityModelUSM {
		return nil, newUSMError("decode", errUnsupportedSecModel)
	}

	if privFlag {
		cipherVal, err := decodeValue(inner)
		if err != nil {
			return nil, err
		}
		if cipherVal.Tag != tagOctetString {
			return nil, newDecodeError("scopedPduData", errInvalidTag)
		}
		msg.ScopedPduCipher = cipherVal.Bytes
	} else {
		scoped, err := decodeScopedPdu(inner.buf[inner.pos:])
		if err != nil {
			return nil, err
		}
		msg.ScopedPduPlain = scoped
	}

	return msg, nil
}

// peekMsgID extracts msgID from a v3 datagram's msgGlobalData without
// decoding the rest, so the transport layer can match replies to the
// outstanding request before committing to a full (and possibly
// authenticated) decode.
func peekMsgID(raw []byte) (int32, error) {
	d := newDecBuf(raw)
	tag, payload, err := readHeader(d)
	if err != nil {
		return 0, err
	}
	if tag != tagSequence {
		return 0, newDecodeError("peek-msgid", errWrongContainer)
	}
	inner := newDecBuf(payload)
	verVal, err := decodeValue(inner)
	if err != nil {
		return 0, err
	}
	if verVal.Tag != tagInteger32 || verVal.Int != 3 {
		return 0, newProtocolError("peek-msgid", errVersionMismatch)
	}
	globTag, globPayload, err := readHeader(inner)
	if err != nil {
		return 0, err
	}
	if globTag != tagSequence {
		return 0, newDecodeError("peek-msgid", errWrongContainer)
	}
	gd := newDecBuf(globPayload)
	msgIDVal, err := decodeValue(gd)
	if err != nil {
		return 0, err
	}
	if msgIDVal.Tag != tagInteger32 {
		return 0, newDecodeError("peek-msgid", errInvalidTag)
	}
	return int32(msgIDVal.Int), nil
}

// newDiscoveryMessage builds the v3 discovery packet form: empty
// engineId, engineBoots=0, engineTime=0, empty securityName, auth=false,
// priv=false, reportable=true.
func newDiscoveryMessage(msgID int32, maxSize uint32) *V3Message {
	return &V3Message{
		MsgID:         msgID,
		MsgMaxSize:    maxSize,
		Authenticated: false,
		Encrypted:     false,
		Reportable:    true,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: nil,
			EngineBoots:           0,
			EngineTime:            0,
			UserName:              nil,
			AuthParams:            nil,
			PrivParams:            nil,
		},
	}
}

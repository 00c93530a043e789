package snmpmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedPduEncodeDecodeRoundTrip(t *testing.T) {
	s := &ScopedPdu{
		ContextEngineID: []byte{0x01, 0x02, 0x03},
		ContextName:     []byte("ctx"),
		PDU: &PDU{
			Kind:      KindGetRequest,
			RequestID: 7,
			VarBinds: VbList{
				{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewNull()},
			},
		},
	}
	enc, err := s.encode()
	require.NoError(t, err)

	dec, err := decodeScopedPdu(enc)
	require.NoError(t, err)
	assert.Equal(t, s.ContextEngineID, dec.ContextEngineID)
	assert.Equal(t, s.ContextName, dec.ContextName)
	assert.True(t, s.PDU.Equal(dec.PDU))
}

func TestUSMParametersEncodeDecodeRoundTrip(t *testing.T) {
	u := &USMParameters{
		AuthoritativeEngineID: []byte{0x80, 0x00, 0x00, 0x01},
		EngineBoots:           3,
		EngineTime:            12345,
		UserName:              []byte("admin"),
		AuthParams:            make([]byte, 12),
		PrivParams:            make([]byte, 8),
	}
	enc, encOff := u.encode()
	dec, decOff, err := decodeUSMParameters(enc)
	require.NoError(t, err)
	assert.Equal(t, u.AuthoritativeEngineID, dec.AuthoritativeEngineID)
	assert.Equal(t, u.EngineBoots, dec.EngineBoots)
	assert.Equal(t, u.EngineTime, dec.EngineTime)
	assert.Equal(t, u.UserName, dec.UserName)
	assert.Equal(t, u.AuthParams, dec.AuthParams)
	assert.Equal(t, u.PrivParams, dec.PrivParams)

	// Both sides must agree on where the MAC placeholder sits.
	assert.Equal(t, encOff, decOff)
	require.True(t, encOff >= 0)
	assert.Equal(t, u.AuthParams, enc[encOff:encOff+authDigestLen])
}

func TestV3MessageEncodeDecodeRoundTripNoAuthNoPriv(t *testing.T) {
	msg := &V3Message{
		MsgID:         55,
		MsgMaxSize:    65507,
		Authenticated: false,
		Encrypted:     false,
		Reportable:    true,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: []byte{0x80, 0x00, 0x00, 0x01},
			EngineBoots:           1,
			EngineTime:            2,
			UserName:              []byte("user1"),
			AuthParams:            nil,
			PrivParams:            nil,
		},
		ScopedPduPlain: &ScopedPdu{
			ContextEngineID: []byte{0x80, 0x00, 0x00, 0x01},
			ContextName:     nil,
			PDU: &PDU{
				Kind:      KindGetRequest,
				RequestID: 1,
				VarBinds: VbList{
					{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewNull()},
				},
			},
		},
	}
	enc, err := msg.encode()
	require.NoError(t, err)

	dec, err := decodeV3Message(enc)
	require.NoError(t, err)
	assert.Equal(t, msg.MsgID, dec.MsgID)
	assert.Equal(t, msg.MsgMaxSize, dec.MsgMaxSize)
	assert.False(t, dec.Authenticated)
	assert.False(t, dec.Encrypted)
	assert.True(t, dec.Reportable)
	assert.Equal(t, "user1", string(dec.USM.UserName))
	require.NotNil(t, dec.ScopedPduPlain)
	assert.True(t, msg.ScopedPduPlain.PDU.Equal(dec.ScopedPduPlain.PDU))
}

func TestV3MessageEncryptedCarriesCipherOpaquely(t *testing.T) {
	msg := &V3Message{
		MsgID:         1,
		MsgMaxSize:    65507,
		Authenticated: true,
		Encrypted:     true,
		Reportable:    true,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: []byte{0x80, 0x00, 0x00, 0x01},
			EngineBoots:           1,
			EngineTime:            2,
			UserName:              []byte("user1"),
			AuthParams:            make([]byte, 12),
			PrivParams:            make([]byte, 8),
		},
		ScopedPduCipher: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	enc, err := msg.encode()
	require.NoError(t, err)

	dec, err := decodeV3Message(enc)
	require.NoError(t, err)
	assert.True(t, dec.Encrypted)
	assert.Equal(t, msg.ScopedPduCipher, dec.ScopedPduCipher)
	assert.Nil(t, dec.ScopedPduPlain)
}

func TestV3MessageRejectsPrivWithoutAuth(t *testing.T) {
	msg := &V3Message{
		MsgID:         1,
		MsgMaxSize:    65507,
		Authenticated: false,
		Encrypted:     true,
		Reportable:    true,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			UserName: []byte("user1"),
		},
		ScopedPduCipher: []byte{0x01},
	}
	_, err := msg.encode()
	assert.Error(t, err)
}

func TestNewDiscoveryMessageShape(t *testing.T) {
	msg := newDiscoveryMessage(100, 65507)
	assert.False(t, msg.Authenticated)
	assert.False(t, msg.Encrypted)
	assert.True(t, msg.Reportable)
	assert.Nil(t, msg.USM.AuthoritativeEngineID)
	assert.Equal(t, int32(0), msg.USM.EngineBoots)

	msg.ScopedPduPlain = &ScopedPdu{
		PDU: &PDU{Kind: KindGetRequest, RequestID: 100, VarBinds: VbList{}},
	}
	enc, err := msg.encode()
	require.NoError(t, err)
	dec, err := decodeV3Message(enc)
	require.NoError(t, err)
	assert.Equal(t, int32(100), dec.MsgID)
}

package snmpmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDUEncodeDecodeRoundTripGetRequest(t *testing.T) {
	p := &PDU{
		Kind:      KindGetRequest,
		RequestID: 12345,
		VarBinds: VbList{
			{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewNull()},
		},
	}
	enc, err := p.encode()
	require.NoError(t, err)

	d := newDecBuf(enc)
	dec, err := decodePDU(d)
	require.NoError(t, err)
	assert.True(t, p.Equal(dec))
}

func TestPDUEncodeDecodeRoundTripGetBulk(t *testing.T) {
	p := &PDU{
		Kind:           KindGetBulkRequest,
		RequestID:      999,
		NonRepeaters:   1,
		MaxRepetitions: 10,
		VarBinds: VbList{
			{OID: MustParseOid("1.3.6.1.2.1.2.2.1.1"), Value: NewNull()},
		},
	}
	enc, err := p.encode()
	require.NoError(t, err)

	d := newDecBuf(enc)
	dec, err := decodePDU(d)
	require.NoError(t, err)
	assert.True(t, p.Equal(dec))
	assert.Equal(t, 1, dec.NonRepeaters)
	assert.Equal(t, 10, dec.MaxRepetitions)
}

func TestPDUEncodeAssignsRequestIDWhenZero(t *testing.T) {
	p := &PDU{Kind: KindGetRequest, VarBinds: VbList{}}
	_, err := p.encode()
	require.NoError(t, err)
	assert.NotEqual(t, int32(0), p.RequestID)
	assert.True(t, p.RequestID > 0)
}

func TestRandomRequestIDInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := randomRequestID()
		assert.True(t, id >= 1 && int64(id) < (int64(1)<<31))
	}
}

func TestPDUTrapInjectionAndExtraction(t *testing.T) {
	uptime := uint32(4242)
	p := &PDU{
		Kind:          KindV2Trap,
		RequestID:     1,
		TrapSysUpTime: &uptime,
		TrapObjectID:  MustParseOid("1.3.6.1.6.3.1.1.5.3"),
		VarBinds: VbList{
			{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewString("extra")},
		},
	}
	enc, err := p.encode()
	require.NoError(t, err)

	d := newDecBuf(enc)
	dec, err := decodePDU(d)
	require.NoError(t, err)
	require.NotNil(t, dec.TrapSysUpTime)
	assert.Equal(t, uptime, *dec.TrapSysUpTime)
	assert.True(t, dec.TrapObjectID.Equal(p.TrapObjectID))
	require.Len(t, dec.VarBinds, 1)
	assert.Equal(t, "extra", dec.VarBinds[0].Value.String())
}

func TestPDUTrapMissingBindingsRejected(t *testing.T) {
	buf := newEncBuf()
	inner := newEncBuf()
	inner.Write(encodeInt32TLV(tagInteger32, 1))
	inner.Write(encodeInt32TLV(tagInteger32, 0))
	inner.Write(encodeInt32TLV(tagInteger32, 0))
	vbEnc, err := encodeVbList(VbList{})
	require.NoError(t, err)
	inner.Write(vbEnc)
	buf.writeTLV(KindV2Trap.tag(), inner.Bytes())

	d := newDecBuf(buf.Bytes())
	_, err = decodePDU(d)
	assert.Error(t, err)
}

func TestPDUCloneIsIndependent(t *testing.T) {
	p := &PDU{
		Kind:      KindResponse,
		RequestID: 1,
		VarBinds: VbList{
			{OID: MustParseOid("1.1"), Value: NewInteger32(1)},
		},
	}
	cp := p.Clone()
	cp.VarBinds[0].Value = NewInteger32(2)
	assert.NotEqual(t, p.VarBinds[0].Value.Int, cp.VarBinds[0].Value.Int)
}

package snmpmgr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	ip, err := NewIPAddress(net.ParseIP("192.168.1.1"))
	require.NoError(t, err)

	values := []Value{
		NewInteger32(-42),
		NewCounter32(0xFFFFFFFF),
		NewGauge32(100),
		NewTimeTicks(12345),
		NewCounter64(0xFFFFFFFFFFFFFFFF),
		NewString("hello world"),
		NewOpaque([]byte{0x01, 0x02, 0x03}),
		NewNull(),
		NewObjectIdentifier(MustParseOid("1.3.6.1.2.1.1.1.0")),
		NewNoSuchObject(),
		NewNoSuchInstance(),
		NewEndOfMibView(),
		ip,
	}
	for _, v := range values {
		enc, err := v.encode()
		require.NoError(t, err)

		d := newDecBuf(enc)
		dec, err := decodeValue(d)
		require.NoError(t, err)
		assert.True(t, v.Equal(dec), "round trip mismatch for tag %d", v.Tag)
	}
}

func TestCounter32HighBitRoundTrip(t *testing.T) {
	// 0xFFFFFFFF needs a leading zero byte so the BER integer doesn't
	// decode as negative.
	v := NewCounter32(0xFFFFFFFF)
	enc, err := v.encode()
	require.NoError(t, err)
	d := newDecBuf(enc)
	tag, payload, err := readHeader(d)
	require.NoError(t, err)
	assert.Equal(t, byte(tagCounter32), tag)
	assert.Equal(t, byte(0x00), payload[0])

	dec, err := decodeValueFromPayload(tag, payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFF), dec.Uint)
}

func TestValueIsException(t *testing.T) {
	assert.True(t, NewNoSuchObject().IsException())
	assert.True(t, NewNoSuchInstance().IsException())
	assert.True(t, NewEndOfMibView().IsException())
	assert.False(t, NewNull().IsException())
	assert.False(t, NewInteger32(1).IsException())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", NewInteger32(42).String())
	assert.Equal(t, "hello", NewString("hello").String())
	assert.Equal(t, "1.3.6.1.2.1.1.1.0", NewObjectIdentifier(MustParseOid("1.3.6.1.2.1.1.1.0")).String())

	tt := NewTimeTicks(12345)
	assert.Equal(t, "123.45s", tt.String())
}

func TestValueIPHelpers(t *testing.T) {
	ip, err := NewIPAddress(net.ParseIP("10.20.30.40"))
	require.NoError(t, err)
	class, err := ip.IPClass()
	require.NoError(t, err)
	assert.Equal(t, byte('A'), class)

	mask, err := MaskFromBits(24)
	require.NoError(t, err)
	subnet, err := ip.Subnet(mask)
	require.NoError(t, err)
	assert.Equal(t, "10.20.30.0", subnet.String())

	bcast, err := ip.Broadcast(mask)
	require.NoError(t, err)
	assert.Equal(t, "10.20.30.255", bcast.String())
}

func TestDiffCounter32Wraparound(t *testing.T) {
	assert.Equal(t, uint32(10), DiffCounter32(0xFFFFFFFA, 4))
	assert.Equal(t, uint32(5), DiffCounter32(100, 105))
}

func TestValueCloneIsIndependent(t *testing.T) {
	v := NewString("abc")
	cp := v.Clone()
	cp.Bytes[0] = 'z'
	assert.NotEqual(t, v.Bytes[0], cp.Bytes[0])
}

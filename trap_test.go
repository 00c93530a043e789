package snmpmgr

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSenderAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 49152}
}

func encodeV2Trap(t *testing.T, community string) []byte {
	t.Helper()
	uptime := uint32(360000)
	pdu := &PDU{
		Kind:          KindV2Trap,
		RequestID:     88,
		TrapSysUpTime: &uptime,
		TrapObjectID:  MustParseOid("1.3.6.1.6.3.1.1.5.4"),
		VarBinds: VbList{
			{OID: MustParseOid("1.3.6.1.2.1.2.2.1.1.3"), Value: NewInteger32(3)},
		},
	}
	pkt := &V1V2cPacket{Version: Version2c, Community: []byte(community), PDU: pdu}
	raw, err := pkt.Encode()
	require.NoError(t, err)
	return raw
}

func TestPeekVersion(t *testing.T) {
	raw := encodeV2Trap(t, "public")
	v, err := peekVersion(raw)
	require.NoError(t, err)
	assert.Equal(t, Version2c, v)

	_, err = peekVersion([]byte{0x02, 0x01, 0x00})
	assert.Error(t, err)
}

func TestTrapListenerDecodeV2Trap(t *testing.T) {
	l := &TrapListener{}
	raw := encodeV2Trap(t, "public")

	msg, err := l.decode(raw, testSenderAddr())
	require.NoError(t, err)
	assert.Equal(t, Version2c, msg.Version)
	assert.Equal(t, "public", msg.Community)
	assert.Equal(t, KindV2Trap, msg.PDU.Kind)
	require.NotNil(t, msg.PDU.TrapSysUpTime)
	assert.Equal(t, uint32(360000), *msg.PDU.TrapSysUpTime)
	assert.Equal(t, "1.3.6.1.6.3.1.1.5.4", msg.PDU.TrapObjectID.String())
	require.Len(t, msg.PDU.VarBinds, 1)
}

func TestTrapListenerRejectsUnknownCommunity(t *testing.T) {
	l := &TrapListener{V2Communities: map[string]bool{"netops": true}}
	raw := encodeV2Trap(t, "public")

	_, err := l.decode(raw, testSenderAddr())
	assert.Error(t, err)
}

func TestTrapListenerRejectsNonNotificationPDU(t *testing.T) {
	l := &TrapListener{}
	pkt := &V1V2cPacket{
		Version:   Version2c,
		Community: []byte("public"),
		PDU:       &PDU{Kind: KindGetRequest, RequestID: 5, VarBinds: VbList{}},
	}
	raw, err := pkt.Encode()
	require.NoError(t, err)

	_, err = l.decode(raw, testSenderAddr())
	assert.Error(t, err)
}

func TestTrapListenerRejectsUnknownV3User(t *testing.T) {
	l := &TrapListener{V3Users: map[string]TargetConfig{}}
	msg := &V3Message{
		MsgID:         12,
		MsgMaxSize:    65507,
		SecurityModel: msgSecurityModelUSM,
		USM: USMParameters{
			AuthoritativeEngineID: testEngineID,
			UserName:              []byte("stranger"),
		},
		ScopedPduPlain: &ScopedPdu{
			ContextEngineID: testEngineID,
			PDU: &PDU{
				Kind:      KindV2Trap,
				RequestID: 12,
				VarBinds: VbList{
					{OID: oidSysUpTime.Clone(), Value: NewTimeTicks(1)},
					{OID: oidSnmpTrapOID.Clone(), Value: NewObjectIdentifier(MustParseOid("1.3.6.1.6.3.1.1.5.1"))},
				},
			},
		},
	}
	raw, err := msg.encode()
	require.NoError(t, err)

	_, err = l.decode(raw, testSenderAddr())
	require.Error(t, err)
	var usmErr *USMError
	assert.ErrorAs(t, err, &usmErr)
}

// End-to-end over loopback: a v2c inform is decoded, handed to the
// handler, and acknowledged with a Response reusing the request-id.
func TestTrapListenerServeAcksInform(t *testing.T) {
	l, err := ListenTrap("127.0.0.1", 0)
	require.NoError(t, err)
	defer l.Close()
	port := l.conn.LocalAddr().(*net.UDPAddr).Port

	got := make(chan *TrapMessage, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = l.Serve(ctx, func(msg *TrapMessage, err error) {
			if err == nil {
				select {
				case got <- msg:
				default:
				}
			}
		})
	}()

	sender, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer sender.Close()

	uptime := uint32(100)
	inform := &PDU{
		Kind:          KindInformRequest,
		RequestID:     4242,
		TrapSysUpTime: &uptime,
		TrapObjectID:  MustParseOid("1.3.6.1.6.3.1.1.5.1"),
	}
	pkt := &V1V2cPacket{Version: Version2c, Community: []byte("public"), PDU: inform}
	raw, err := pkt.Encode()
	require.NoError(t, err)
	_, err = sender.Write(raw)
	require.NoError(t, err)

	var msg *TrapMessage
	select {
	case msg = <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("inform was not delivered to the handler")
	}
	assert.Equal(t, KindInformRequest, msg.PDU.Kind)
	assert.Equal(t, int32(4242), msg.PDU.RequestID)

	// The ack comes back to the sender with the same request-id.
	ackBuf := make([]byte, udpReadBufSize)
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, err := sender.Read(ackBuf)
	require.NoError(t, err)
	ackPkt, err := DecodeV1V2cPacket(ackBuf[:n], Version2c, []byte("public"))
	require.NoError(t, err)
	assert.Equal(t, KindResponse, ackPkt.PDU.Kind)
	assert.Equal(t, int32(4242), ackPkt.PDU.RequestID)
	// The ack echoes the inform's sysUpTime.0 and snmpTrapOID.0.
	require.Len(t, ackPkt.PDU.VarBinds, 2)
	assert.True(t, ackPkt.PDU.VarBinds[0].OID.Equal(oidSysUpTime))
	assert.Equal(t, uint64(100), ackPkt.PDU.VarBinds[0].Value.Uint)
	assert.True(t, ackPkt.PDU.VarBinds[1].OID.Equal(oidSnmpTrapOID))
}

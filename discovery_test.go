package snmpmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// v3DiscoveryAgent answers every datagram with a
// usmStatsUnknownEngineIDs Report carrying the given engine identity.
func v3DiscoveryAgent(t *testing.T, engineID []byte, boots, engTime int32) int {
	t.Helper()
	_, port := fakeAgent(t, func(req []byte) []byte {
		reqMsg, err := decodeV3Message(req)
		if err != nil {
			return nil
		}
		report := &V3Message{
			MsgID:         reqMsg.MsgID,
			MsgMaxSize:    65507,
			Authenticated: false,
			Encrypted:     false,
			Reportable:    false,
			SecurityModel: msgSecurityModelUSM,
			USM: USMParameters{
				AuthoritativeEngineID: engineID,
				EngineBoots:           boots,
				EngineTime:            engTime,
			},
			ScopedPduPlain: &ScopedPdu{
				ContextEngineID: engineID,
				PDU: &PDU{
					Kind:      KindReport,
					RequestID: reqMsg.MsgID,
					VarBinds: VbList{
						{OID: oidUsmStatsUnknownEngineIDs.Clone(), Value: NewCounter32(1)},
					},
				},
			},
		}
		raw, err := report.encode()
		if err != nil {
			return nil
		}
		return raw
	})
	return port
}

func TestDiscoverLearnsEngineIdentity(t *testing.T) {
	engineID := []byte{0x80, 0x00, 0x1f, 0x88, 0x80, 0x01, 0x02, 0x03}
	port := v3DiscoveryAgent(t, engineID, 7, 5000)

	sess := NewSession(TargetConfig{
		Address:   "127.0.0.1",
		Port:      port,
		Version:   Version3,
		TimeoutMS: 500,
	})
	tr, err := NewTransport(sess.Target)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, Discover(context.Background(), tr, sess))
	assert.True(t, sess.USM.isDiscovered())
	gotEngineID, gotBoots, gotTime := sess.USM.snapshot()
	assert.Equal(t, engineID, gotEngineID)
	assert.Equal(t, int32(7), gotBoots)
	assert.Equal(t, int32(5000), gotTime)
}

func TestDiscoverDerivesKeysForAuthTargets(t *testing.T) {
	port := v3DiscoveryAgent(t, testEngineID, 1, 100)

	sess := NewSession(TargetConfig{
		Address:       "127.0.0.1",
		Port:          port,
		Version:       Version3,
		UserName:      "monitor",
		SecurityLevel: AuthNoPriv,
		AuthProtocol:  AuthMD5,
		AuthPassword:  "maplesyrup",
		TimeoutMS:     500,
	})
	tr, err := NewTransport(sess.Target)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, Discover(context.Background(), tr, sess))
	// The RFC 3414 test vector engineId yields the known localized key.
	assert.Len(t, sess.USM.LocalizedKeyAuth, 16)
	wantKey, err := localizeKey("maplesyrup", testEngineID, AuthMD5)
	require.NoError(t, err)
	assert.Equal(t, wantKey, sess.USM.LocalizedKeyAuth)
}

func TestClassifyReport(t *testing.T) {
	timeWindow := &PDU{
		Kind:     KindReport,
		VarBinds: VbList{{OID: oidUsmStatsNotInTimeWindows.Clone(), Value: NewCounter32(3)}},
	}
	assert.True(t, classifyReport(timeWindow))

	unknownEngine := &PDU{
		Kind:     KindReport,
		VarBinds: VbList{{OID: oidUsmStatsUnknownEngineIDs.Clone(), Value: NewCounter32(1)}},
	}
	assert.False(t, classifyReport(unknownEngine))

	empty := &PDU{Kind: KindReport}
	assert.False(t, classifyReport(empty))
}

func TestCheckTimeWindow(t *testing.T) {
	assert.NoError(t, checkTimeWindow(1000, 1000, StrictTimeWindowSeconds))
	assert.NoError(t, checkTimeWindow(1000, 1149, StrictTimeWindowSeconds))
	assert.Error(t, checkTimeWindow(1000, 1151, StrictTimeWindowSeconds))
	assert.NoError(t, checkTimeWindow(1000, 2400, DefaultTimeWindowSeconds))
	assert.Error(t, checkTimeWindow(1000, 2600, DefaultTimeWindowSeconds))
}

func TestEngineFreshness(t *testing.T) {
	p := &SecureAgentParameters{}
	assert.False(t, p.engineFresh(DefaultTimeWindowSeconds))
	assert.Equal(t, int32(0), p.CurrentEngineTime())

	p.setEngine([]byte{0x01}, 2, 600)
	assert.True(t, p.engineFresh(DefaultTimeWindowSeconds))
	// Just observed: extrapolation adds the one-second bias only.
	assert.Equal(t, int32(601), p.CurrentEngineTime())
}

package snmpmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// v3AuthAgent emulates an agent for the full authNoPriv round trip:
// discovery first, then HMAC-verified Gets answered with signed
// Responses.
func v3AuthAgent(t *testing.T, engineID []byte, authProto AuthProtocol, password string) int {
	t.Helper()
	authKey, err := localizeKey(password, engineID, authProto)
	require.NoError(t, err)

	_, port := fakeAgent(t, func(req []byte) []byte {
		msg, err := decodeV3Message(req)
		if err != nil {
			return nil
		}

		if len(msg.USM.AuthoritativeEngineID) == 0 {
			report := &V3Message{
				MsgID:         msg.MsgID,
				MsgMaxSize:    65507,
				SecurityModel: msgSecurityModelUSM,
				USM: USMParameters{
					AuthoritativeEngineID: engineID,
					EngineBoots:           1,
					EngineTime:            100,
				},
				ScopedPduPlain: &ScopedPdu{
					ContextEngineID: engineID,
					PDU: &PDU{
						Kind:      KindReport,
						RequestID: msg.MsgID,
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
		}

		if !msg.Authenticated || msg.AuthParamsOffset < 0 {
			return nil
		}
		ok, err := verifyAuthDigest(authProto, authKey, zeroAuthParams(req, msg.AuthParamsOffset), msg.USM.AuthParams)
		if err != nil || !ok {
			return nil
		}
		reqPDU := msg.ScopedPduPlain.PDU

		resp := &V3Message{
			MsgID:         msg.MsgID,
			MsgMaxSize:    65507,
			Authenticated: true,
			SecurityModel: msgSecurityModelUSM,
			USM: USMParameters{
				AuthoritativeEngineID: engineID,
				EngineBoots:           1,
				EngineTime:            101,
				UserName:              msg.USM.UserName,
				AuthParams:            make([]byte, authDigestLen),
			},
			ScopedPduPlain: &ScopedPdu{
				ContextEngineID: engineID,
				PDU: &PDU{
					Kind:      KindResponse,
					RequestID: reqPDU.RequestID,
					VarBinds: VbList{
						{OID: MustParseOid("1.3.6.1.2.1.1.1.0"), Value: NewString("v3 agent")},
					},
				},
			},
		}
		raw, err := resp.encode()
		if err != nil {
			return nil
		}
		digest, err := computeAuthDigest(authProto, authKey, raw)
		if err != nil {
			return nil
		}
		copy(raw[resp.AuthParamsOffset:resp.AuthParamsOffset+authDigestLen], digest)
		return raw
	})
	return port
}

func TestV3AuthNoPrivGetEndToEnd(t *testing.T) {
	port := v3AuthAgent(t, testEngineID, AuthMD5, "maplesyrup")

	client, err := Dial(context.Background(), TargetConfig{
		Address:       "127.0.0.1",
		Port:          port,
		Version:       Version3,
		UserName:      "monitor",
		SecurityLevel: AuthNoPriv,
		AuthProtocol:  AuthMD5,
		AuthPassword:  "maplesyrup",
		TimeoutMS:     500,
	})
	require.NoError(t, err)
	defer client.Close()

	vbs, err := client.Get(context.Background(), MustParseOid("1.3.6.1.2.1.1.1.0"))
	require.NoError(t, err)
	require.Len(t, vbs, 1)
	assert.Equal(t, "v3 agent", vbs[0].Value.String())
}

func TestV3AuthRejectsWrongPassword(t *testing.T) {
	port := v3AuthAgent(t, testEngineID, AuthSHA1, "rightpassword")

	// The agent silently drops the badly signed Get, so the request
	// times out after its retries.
	client, err := Dial(context.Background(), TargetConfig{
		Address:       "127.0.0.1",
		Port:          port,
		Version:       Version3,
		UserName:      "monitor",
		SecurityLevel: AuthNoPriv,
		AuthProtocol:  AuthSHA1,
		AuthPassword:  "wrongpassword",
		TimeoutMS:     100,
		RetryCount:    -1,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(context.Background(), MustParseOid("1.3.6.1.2.1.1.1.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errRequestTimedOut)
}

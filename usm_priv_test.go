package snmpmgr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivKey(t *testing.T, proto PrivProtocol) []byte {
	t.Helper()
	ku, err := localizeKey("maplesyrup", testEngineID, AuthSHA1)
	require.NoError(t, err)
	key, err := expandPrivKey(ku, "maplesyrup", testEngineID, AuthSHA1, proto)
	require.NoError(t, err)
	return key
}

func testScopedPduBytes(t *testing.T) []byte {
	t.Helper()
	scoped := &ScopedPdu{
		ContextEngineID: testEngineID,
		ContextName:     []byte("ctx"),
		PDU: &PDU{
			Kind:      KindGetRequest,
			RequestID: 9,
			VarBinds:  VbList{{OID: MustParseOid("1.3.6.1.2.1.1.5.0"), Value: NewNull()}},
		},
	}
	raw, err := scoped.encode()
	require.NoError(t, err)
	return raw
}

func TestEncryptDecryptRoundTripAllProtocols(t *testing.T) {
	plaintext := testScopedPduBytes(t)
	protocols := []PrivProtocol{PrivDES, Priv3DES, PrivAES128, PrivAES192, PrivAES256, PrivAES192Huawei, PrivAES256Huawei}

	for _, proto := range protocols {
		key := testPrivKey(t, proto)
		cipherText, privParams, err := encryptPayload(proto, key, 3, 1000, plaintext)
		require.NoError(t, err, "encrypt proto %d", proto)
		require.Len(t, privParams, privParamsLen)
		assert.NotEqual(t, plaintext, cipherText)

		decrypted, err := decryptPayload(proto, key, 3, 1000, cipherText, privParams)
		require.NoError(t, err, "decrypt proto %d", proto)

		// CBC modes may leave the plaintext padded; the ScopedPdu must
		// still parse and match.
		scoped, err := decodeScopedPdu(decrypted)
		require.NoError(t, err)
		assert.Equal(t, int32(9), scoped.PDU.RequestID)
		assert.Equal(t, []byte("ctx"), scoped.ContextName)
	}
}

func TestDecryptRejectsBadPrivParamsLength(t *testing.T) {
	key := testPrivKey(t, PrivAES128)
	_, err := decryptPayload(PrivAES128, key, 0, 0, []byte{0x01, 0x02}, []byte{0x01})
	assert.Error(t, err)
}

func TestDecryptDESRejectsPartialBlock(t *testing.T) {
	key := testPrivKey(t, PrivDES)
	_, err := decryptDES(key, make([]byte, 8), []byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, _, err := encryptDES(make([]byte, 8), 0, []byte("data"))
	assert.Error(t, err)
	_, _, err = encrypt3DES(make([]byte, 16), 0, []byte("data"))
	assert.Error(t, err)
}

func TestDESSaltCarriesEngineBoots(t *testing.T) {
	key := testPrivKey(t, PrivDES)
	_, privParams, err := encryptDES(key, 0x01020304, []byte("eight by "))
	require.NoError(t, err)
	require.Len(t, privParams, 8)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, privParams[:4])
}

func TestNextSaltMonotonic(t *testing.T) {
	a := nextSalt()
	b := nextSalt()
	assert.NotEqual(t, a, b)
	assert.True(t, bytes.Compare(a, b) < 0, "salt counter must increase")
}

func TestAESDecryptWithWrongKeyYieldsGarbage(t *testing.T) {
	key := testPrivKey(t, PrivAES128)
	plaintext := testScopedPduBytes(t)
	cipherText, privParams, err := encryptAESCFB(key, 1, 2, plaintext)
	require.NoError(t, err)

	wrongKey := append([]byte(nil), key...)
	wrongKey[0] ^= 0xff
	decrypted, err := decryptAESCFB(wrongKey, 1, 2, privParams, cipherText)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, decrypted)
}

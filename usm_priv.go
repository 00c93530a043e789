// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"sync/atomic"
)

// privParamsLen is the on-wire length of msgPrivacyParameters for every
// protocol this library supports: 8 bytes, whether it carries a DES/
// 3DES salt or an AES salt.
const privParamsLen = 8

var localSaltCounter uint64

// nextSalt returns an 8-byte value built from a process-local counter,
// used as the low bytes of the per-message salt. It only needs to be
// unique per (engineBoots, engineTime) pair, not unpredictable.
func nextSalt() []byte {
	v := atomic.AddUint64(&localSaltCounter, 1)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func fPKCS5Padding(data []byte, blockSize int) []byte {
	if len(data)%blockSize == 0 {
		return data
	}
	padLen := blockSize - len(data)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(data, pad...)
}

// fPKCS5UnPadding trims PKCS5 padding if the trailing byte plausibly
// describes one; SNMP implementations vary in how strictly they pad
// plaintext that's already block-aligned, so this tolerates data that
// isn't padded at all rather than erroring.
func fPKCS5UnPadding(data []byte, blockSize int) []byte {
	if len(data) == 0 {
		return data
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > blockSize || padLen > len(data) {
		return data
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return data
		}
	}
	return data[:len(data)-padLen]
}

// encryptPayload encrypts plaintext scopedPduData under the given
// privacy protocol and key, returning the ciphertext and the
// msgPrivacyParameters to place on the wire.
func encryptPayload(proto PrivProtocol, key []byte, engineBoots, engineTime int32, plaintext []byte) (cipherText, privParams []byte, err error) {
	switch proto {
	case PrivDES:
		return encryptDES(key, engineBoots, plaintext)
	case Priv3DES:
		return encrypt3DES(key, engineBoots, plaintext)
	case PrivAES128, PrivAES192, PrivAES256, PrivAES192Huawei, PrivAES256Huawei:
		return encryptAESCFB(key, engineBoots, engineTime, plaintext)
	}
	return nil, nil, newUSMError("encrypt", errUnsupportedPrivProto)
}

func decryptPayload(proto PrivProtocol, key []byte, engineBoots, engineTime int32, cipherText, privParams []byte) ([]byte, error) {
	if len(privParams) != privParamsLen {
		return nil, newUSMError("decrypt", errInvalidPrivParamsLen)
	}
	switch proto {
	case PrivDES:
		return decryptDES(key, privParams, cipherText)
	case Priv3DES:
		return decrypt3DES(key, privParams, cipherText)
	case PrivAES128, PrivAES192, PrivAES256, PrivAES192Huawei, PrivAES256Huawei:
		return decryptAESCFB(key, engineBoots, engineTime, privParams, cipherText)
	}
	return nil, newUSMError("decrypt", errUnsupportedPrivProto)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func encryptDES(key []byte, engineBoots int32, plaintext []byte) (cipherText, privParams []byte, err error) {
	if len(key) < 16 {
		return nil, nil, newUSMError("encryptDES", errPrivKeyTooShort)
	}
	desKey := key[:8]
	preIV := key[8:16]

	var bootsBuf [4]byte
	binary.BigEndian.PutUint32(bootsBuf[:], uint32(engineBoots))
	salt := append(append([]byte(nil), bootsBuf[:]...), nextSalt()[4:]...)

	iv := xorBytes(preIV, salt)
	block, err := des.NewCipher(desKey)
	if err != nil {
		return nil, nil, newUSMError("encryptDES", err)
	}
	padded := fPKCS5Padding(plaintext, des.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, salt, nil
}

func decryptDES(key, privParams, cipherText []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, newUSMError("decryptDES", errPrivKeyTooShort)
	}
	desKey := key[:8]
	preIV := key[8:16]
	iv := xorBytes(preIV, privParams)

	block, err := des.NewCipher(desKey)
	if err != nil {
		return nil, newUSMError("decryptDES", err)
	}
	if len(cipherText)%des.BlockSize != 0 {
		return nil, newUSMError("decryptDES", errLengthMismatch)
	}
	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, cipherText)
	return fPKCS5UnPadding(out, des.BlockSize), nil
}

func encrypt3DES(key []byte, engineBoots int32, plaintext []byte) (cipherText, privParams []byte, err error) {
	if len(key) < 32 {
		return nil, nil, newUSMError("encrypt3DES", errPrivKeyTooShort)
	}
	tripleKey := key[:24]
	preIV := key[24:32]

	var bootsBuf [4]byte
	binary.BigEndian.PutUint32(bootsBuf[:], uint32(engineBoots))
	salt := append(append([]byte(nil), bootsBuf[:]...), nextSalt()[4:]...)

	iv := xorBytes(preIV, salt)
	block, err := des.NewTripleDESCipher(tripleKey)
	if err != nil {
		return nil, nil, newUSMError("encrypt3DES", err)
	}
	padded := fPKCS5Padding(plaintext, des.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, salt, nil
}

func decrypt3DES(key, privParams, cipherText []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, newUSMError("decrypt3DES", errPrivKeyTooShort)
	}
	tripleKey := key[:24]
	preIV := key[24:32]
	iv := xorBytes(preIV, privParams)

	block, err := des.NewTripleDESCipher(tripleKey)
	if err != nil {
		return nil, newUSMError("decrypt3DES", err)
	}
	if len(cipherText)%des.BlockSize != 0 {
		return nil, newUSMError("decrypt3DES", errLengthMismatch)
	}
	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, cipherText)
	return fPKCS5UnPadding(out, des.BlockSize), nil
}

// encryptAESCFB implements RFC 3826: the 16-byte IV is
// engineBoots(4B BE) || engineTime(4B BE) || salt(8B), and
// msgPrivacyParameters carries only the salt.
func encryptAESCFB(key []byte, engineBoots, engineTime int32, plaintext []byte) (cipherText, privParams []byte, err error) {
	salt := nextSalt()
	iv := make([]byte, 16)
	binary.BigEndian.PutUint32(iv[0:4], uint32(engineBoots))
	binary.BigEndian.PutUint32(iv[4:8], uint32(engineTime))
	copy(iv[8:16], salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, newUSMError("encryptAESCFB", err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, salt, nil
}

func decryptAESCFB(key []byte, engineBoots, engineTime int32, privParams, cipherText []byte) ([]byte, error) {
	iv := make([]byte, 16)
	binary.BigEndian.PutUint32(iv[0:4], uint32(engineBoots))
	binary.BigEndian.PutUint32(iv[4:8], uint32(engineTime))
	copy(iv[8:16], privParams)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newUSMError("decryptAESCFB", err)
	}
	out := make([]byte, len(cipherText))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, cipherText)
	return out, nil
}

// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"crypto/md5"
	"crypto/sha1"
	"hash"
)

// minKeyLength is the shortest accepted secret; RFC 3414 §11.2 requires
// at least 8 octets for any authentication or privacy passphrase.
const minKeyLength = 8

func newHasherFor(proto AuthProtocol) (func() hash.Hash, int, error) {
	switch proto {
	case AuthMD5:
		return md5.New, md5.Size, nil
	case AuthSHA1:
		return sha1.New, sha1.Size, nil
	}
	return nil, 0, newUSMError("hash", errUnsupportedSecModel)
}

// localizeKey implements the password-to-key algorithm of RFC 3414
// §2.6: expand the password to 1,048,576 bytes by cyclic repetition,
// hash it, then fold in the authoritative engineId and hash again.
func localizeKey(password string, engineID []byte, proto AuthProtocol) ([]byte, error) {
	if len(password) < minKeyLength {
		return nil, newUSMError("localizeKey", errSecretTooShort)
	}
	newHash, _, err := newHasherFor(proto)
	if err != nil {
		return nil, err
	}

	h := newHash()
	pwBytes := []byte(password)
	const expandedLen = 1048576
	buf := make([]byte, 64)
	written := 0
	pos := 0
	for written < expandedLen {
		for i := 0; i < 64; i++ {
			buf[i] = pwBytes[pos%len(pwBytes)]
			pos++
		}
		h.Write(buf)
		written += 64
	}
	ku := h.Sum(nil)

	h2 := newHash()
	h2.Write(ku)
	h2.Write(engineID)
	h2.Write(ku)
	return h2.Sum(nil), nil
}

// expandPrivKey derives a privacy key of the length needed by proto from
// the localized authentication key ku. DES/AES-128 need 16 bytes, which
// RFC 3414's own KDF already yields for MD5; longer keys (AES-192/256)
// are produced either by the vendor-neutral recursive extension (apply
// the localization hash repeatedly, RFC 3414bis draft) or — for the
// PrivAES192Huawei/PrivAES256Huawei protocols — a simpler K1 || hash(K1)
// concatenation some vendor agents use instead.
func expandPrivKey(ku []byte, password string, engineID []byte, authProto AuthProtocol, privProto PrivProtocol) ([]byte, error) {
	needed := privKeyLength(privProto)
	if needed == 0 {
		return nil, newUSMError("expandPrivKey", errUnsupportedPrivProto)
	}
	if len(ku) >= needed {
		return ku[:needed], nil
	}

	switch privProto {
	case PrivAES192Huawei, PrivAES256Huawei:
		newHash, _, err := newHasherFor(authProto)
		if err != nil {
			return nil, err
		}
		out := append([]byte(nil), ku...)
		for len(out) < needed {
			h := newHash()
			h.Write(out)
			out = append(out, h.Sum(nil)...)
		}
		return out[:needed], nil
	default:
		// Recursive extension (draft-reeder-snmpv3-usm-3desede / common
		// AES-192/256 practice): repeatedly localize using the growing
		// key material as the "password" input, appending each round's
		// digest until there's enough key material.
		out := append([]byte(nil), ku...)
		for len(out) < needed {
			more, err := localizeKey(string(out), engineID, authProto)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
		return out[:needed], nil
	}
}

// privKeyLength returns the number of key-material bytes expandPrivKey
// must produce for proto. DES and 3DES need extra bytes beyond the raw
// cipher key: the trailing 8 bytes become the pre-IV that's XORed with
// the per-message salt (RFC 3414 §8.1.1.1 for DES; the 3DES convention
// mirrors it with a 24-byte cipher key).
func privKeyLength(proto PrivProtocol) int {
	switch proto {
	case PrivDES:
		return 16 // 8 cipher + 8 pre-IV
	case Priv3DES:
		return 32 // 24 cipher + 8 pre-IV
	case PrivAES128:
		return 16
	case PrivAES192, PrivAES192Huawei:
		return 24
	case PrivAES256, PrivAES256Huawei:
		return 32
	}
	return 0
}

// DeriveKeys computes the localized authentication key and (if priv is
// requested) the derived privacy key for a USM user, given the
// authoritative engine's engineId. Call once per (user, engine) pair and
// cache the result; re-deriving on every request is wasteful and this
// library's session layer caches it in SecureAgentParameters.
func DeriveKeys(authPassword string, privPassword string, engineID []byte, authProto AuthProtocol, privProto PrivProtocol) (authKey, privKey []byte, err error) {
	if authProto == AuthNone {
		return nil, nil, nil
	}
	authKey, err = localizeKey(authPassword, engineID, authProto)
	if err != nil {
		return nil, nil, err
	}
	if privProto == PrivNone {
		return authKey, nil, nil
	}
	pwForPriv := privPassword
	if pwForPriv == "" {
		pwForPriv = authPassword
	}
	privKu, err := localizeKey(pwForPriv, engineID, authProto)
	if err != nil {
		return nil, nil, err
	}
	privKey, err = expandPrivKey(privKu, pwForPriv, engineID, authProto, privProto)
	if err != nil {
		return nil, nil, err
	}
	return authKey, privKey, nil
}

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptyKey is returned when an HMAC key is missing. It signals a
// configuration problem, not a bad request.
var ErrEmptyKey = errors.New("hmac key must not be empty")

// SignHex returns the lowercase hex HMAC-SHA256 of payload.
func SignHex(key []byte, payload []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHex reports whether sigHex is the HMAC-SHA256 of payload. A
// signature that is not exactly 64 lowercase hex digits verifies as false.
func VerifyHex(key []byte, sigHex string, payload []byte) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	if !isLowerHex(sigHex, 2*sha256.Size) {
		return false, nil
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, nil
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil)), nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

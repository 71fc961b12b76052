package misc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashHeader carries the hex HMAC-SHA256 of the uncompressed request body.
const HashHeader = "HashSHA256"

// SignSHA256 returns the hex HMAC-SHA256 of body under key.
func SignSHA256(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySHA256 compares sig against the signature of body in constant time.
func VerifySHA256(body []byte, key, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

package promo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeviceKey derives the stable, non-reversible key for a device identifier
// using HMAC-SHA256 with the given pepper as the key. The identifier is
// trimmed first; a blank identifier yields an empty key, meaning the request
// carries no device identity and device-scoped promos are unavailable.
//
// Same identifier and pepper always produce the same key, and the raw
// identifier cannot be recovered from it.
func DeviceKey(deviceID string, pepper []byte) string {
	id := strings.TrimSpace(deviceID)
	if id == "" {
		return ""
	}
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix is the constant prefix of every Velvet license key.
const KeyPrefix = "VEL"

// GenerateKey produces a license key of the form VEL-XXXX-XXXX-XXXX-XXXX,
// where each group is 4 uppercase hex characters drawn independently from
// crypto/rand. Generation is pure; uniqueness is enforced by the store.
func GenerateKey() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", KeyPrefix, keyGroup(), keyGroup(), keyGroup(), keyGroup())
}

func keyGroup() string {
	b := make([]byte, 2)
	// rand.Read never fails on supported platforms; a broken entropy source
	// panics rather than handing out predictable keys.
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("license: crypto/rand unavailable: %v", err))
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// IsValidKeyFormat reports whether key matches VEL-XXXX-XXXX-XXXX-XXXX.
// Transport handlers use this to reject malformed keys before touching the
// store.
func IsValidKeyFormat(key string) bool {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 5 || parts[0] != KeyPrefix {
		return false
	}
	for _, group := range parts[1:] {
		if len(group) != 4 {
			return false
		}
		for _, ch := range group {
			if !((ch >= 'A' && ch <= 'F') || (ch >= '0' && ch <= '9')) {
				return false
			}
		}
	}
	return true
}

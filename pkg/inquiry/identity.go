package inquiry

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIdentity derives the rate limit identity from a client address. The raw
// address is never stored.
func HashIdentity(salt, clientIP string) string {
	sum := sha256.Sum256([]byte(salt + strings.TrimSpace(clientIP)))
	return hex.EncodeToString(sum[:])
}

package gravatar

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const base = "https://www.gravatar.com/avatar/"

// URL returns the 200px, pg-rated avatar for email, falling back to the
// "mystery person" silhouette when the address has no gravatar.
func URL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return base + hex.EncodeToString(sum[:]) + "?s=200&r=pg&d=mm"
}

package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gosimple/slug"
)

// NewShareableLink builds a unique URL-safe token from a human hint plus a
// random suffix, e.g. "cto-at-acme-3f9a1b2c4d5e". Uniqueness is enforced by
// the DB index; the 48-bit suffix makes collisions a non-issue in practice.
func NewShareableLink(hint string) string {
	base := slug.Make(hint)
	if len(base) > 24 {
		base = base[:24]
	}
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	suffix := hex.EncodeToString(buf)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

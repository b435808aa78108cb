// Package xid generates prefixed identifiers for domain records.
package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns an identifier of the form "<prefix>-<uuid>". The prefix
// carries the record kind so identifiers stay greppable in logs.
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// HasPrefix reports whether id was minted with the given prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}

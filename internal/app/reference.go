package app

import (
	"strings"

	"github.com/google/uuid"
)

// Reference id prefixes. Internal transfers carry TXN-, external transfers EXT-.
const (
	ReferencePrefixInternal = "TXN-"
	ReferencePrefixExternal = "EXT-"
)

// NewReference generates a transfer reference id: the given prefix followed
// by 12 uppercase hex characters.
func NewReference(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + strings.ToUpper(hex[:12])
}

// Package session names materialization sessions and keeps per-session
// bookkeeping files.
package session

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix starts every generated session id.
const DefaultPrefix = "sess_"

const idSuffixLen = 9

// NewID returns prefix followed by 9 random lowercase base-36 characters.
func NewID(prefix string) string {
	u := uuid.New()
	s := strconv.FormatUint(binary.BigEndian.Uint64(u[8:]), 36)
	if len(s) < idSuffixLen {
		s = strings.Repeat("0", idSuffixLen-len(s)) + s
	}
	return prefix + s[len(s)-idSuffixLen:]
}

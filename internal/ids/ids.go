// Package ids generates lexicographically sortable identifiers for accounts
// and audit entries.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID string for the current instant.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID string whose timestamp component is t. IDs generated
// within the same millisecond stay monotonic.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

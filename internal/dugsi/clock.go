package dugsi

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so lastUpdated stamping is deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
// Record ids are prefixed by collection (STU-, FEE-, LOG-, ...) and ids are
// never reused after deletion.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

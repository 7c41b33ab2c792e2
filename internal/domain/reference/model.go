package reference

import (
	"strings"
	"time"

	"github.com/sevacare/refdata/internal/platform/upload"
)

// Timestamps are stored as civil time in the platform's operating zone.
var platformTZ = mustLoadTZ()

func mustLoadTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic("load platform time zone: " + err.Error())
	}
	return loc
}

// Now returns the current time in the platform time zone.
func Now() time.Time {
	return time.Now().In(platformTZ)
}

// Key is a natural-key tuple, aligned with Entity.KeyColumns.
type Key []string

// hash yields a collision-safe map key for set membership checks. 0x1f never
// appears in trimmed CSV cell values.
func (k Key) hash() string {
	return strings.Join(k, "\x1f")
}

// Display renders the key for response bodies: the bare value for
// single-column keys, the tuple joined with " / " otherwise.
func (k Key) Display() string {
	if len(k) == 1 {
		return k[0]
	}
	return strings.Join(k, " / ")
}

// Equal reports whether two keys hold the same tuple.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Record is one reference row. The identifier comes from the per-entity
// counter and is never supplied by callers; the key tuple is the only field
// used to match uploads against storage.
type Record struct {
	ID        int64
	Key       Key
	Remarks   *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rename is one validated rename-update to apply.
type Rename struct {
	From Key
	To   Key
}

// StatusChange is one validated suspend/activate update to apply.
type StatusChange struct {
	Key     Key
	Active  bool
	Remarks *string
}

// CreateResult reports a bulk create. AlreadyPresent stays nil when every
// uploaded name was new, so it serializes as null.
type CreateResult struct {
	Inserted       int
	AlreadyPresent []string
}

// RenameResult reports a bulk rename-update. Skipped holds the original row
// payloads that failed validation and were not applied.
type RenameResult struct {
	Updated int
	Skipped []upload.Row
}

// SuspendResult reports a bulk suspend/activate.
type SuspendResult struct {
	Updated  []string
	NotFound []string
}

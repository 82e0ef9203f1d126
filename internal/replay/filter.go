package replay

import (
	"slices"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
)

// Filter defines criteria for selecting event records during replay.
type Filter struct {
	Sessions []string        // Only include these sessions (empty = all)
	Kinds    []recorder.Kind // Only include these kinds (empty = all)
	After    time.Time       // Only include records after this time (zero = no limit)
	Before   time.Time       // Only include records before this time (zero = no limit)
}

// Match returns true if the record passes the filter.
func (f *Filter) Match(r recorder.EventRecord) bool {
	if len(f.Sessions) > 0 && !slices.Contains(f.Sessions, r.Session) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
		return false
	}
	if !f.After.IsZero() && !r.Timestamp.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !r.Timestamp.Before(f.Before) {
		return false
	}
	return true
}

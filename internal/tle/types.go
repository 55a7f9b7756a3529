package tle

import "time"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// ElementSet is the element set currently used for prediction, plus where
// it came from and when it was retrieved.
type ElementSet struct {
	Entry     TLEEntry
	FetchedAt time.Time
	Source    string // "network" or "cache"
}

// Age returns how old the element set is relative to now.
func (e ElementSet) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

const (
	SourceNetwork = "network"
	SourceCache   = "cache"
)

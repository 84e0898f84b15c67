package inference

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// HistoryEntry is the kinematic state of a callsign at its last confirmed match.
type HistoryEntry struct {
	GroundSpeedKmh  float64
	AltitudeFt      float64
	Target          string
	DistanceKm      float64
	VerticalRateFpm float64
	UpdatedAt       time.Time
}

// HistoryConfig bounds the history store. Zero values keep every entry forever,
// so a callsign that disappears keeps its last state until it is matched again.
type HistoryConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// History remembers the previous confirmed state per callsign.
type History struct {
	entries *expirable.LRU[string, HistoryEntry]
}

// NewHistory creates a history store.
func NewHistory(cfg HistoryConfig) *History {
	// expirable treats size <= 0 as unbounded and ttl <= 0 as no expiry
	return &History{
		entries: expirable.NewLRU[string, HistoryEntry](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// Get returns the previous entry for a callsign, if any.
func (h *History) Get(callsign string) (HistoryEntry, bool) {
	return h.entries.Get(callsign)
}

// Put overwrites the entry for a callsign.
func (h *History) Put(callsign string, entry HistoryEntry) {
	h.entries.Add(callsign, entry)
}

// Len returns the number of tracked callsigns.
func (h *History) Len() int {
	return h.entries.Len()
}

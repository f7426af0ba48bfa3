package crossing

import "sync"

// DefaultMaxETA is the ETA, in seconds, that maps to an empty progress bar.
const DefaultMaxETA = 30.0

// Proximity bands of a train to the gate.
const (
	ProximityCritical    = "critical"
	ProximityNear        = "near"
	ProximityApproaching = "approaching"
	ProximityFar         = "far"
)

// Progress is the ETA rendered as a fill percentage plus a proximity band.
type Progress struct {
	Percent   int    `json:"percent"`
	Proximity string `json:"proximity"`
}

// ProximityOf buckets an ETA in seconds.
func ProximityOf(eta float64) string {
	switch {
	case eta <= 5:
		return ProximityCritical
	case eta <= 10:
		return ProximityNear
	case eta <= 20:
		return ProximityApproaching
	default:
		return ProximityFar
	}
}

// PercentOf maps eta to 0..100 where maxETA is 0% and zero is 100%.
func PercentOf(eta, maxETA float64) int {
	if maxETA <= 0 {
		return 0
	}
	p := int((maxETA - eta) / maxETA * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ProgressTracker widens its scale when a larger ETA shows up and falls back to
// DefaultMaxETA once the ETA reaches zero.
type ProgressTracker struct {
	mu     sync.Mutex
	maxETA float64
}

// NewProgressTracker starts at DefaultMaxETA.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{maxETA: DefaultMaxETA}
}

// Update folds eta into the scale and returns its progress.
func (t *ProgressTracker) Update(eta float64) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if eta > t.maxETA {
		t.maxETA = eta
	}
	p := Progress{Percent: PercentOf(eta, t.maxETA), Proximity: ProximityOf(eta)}
	if eta == 0 {
		t.maxETA = DefaultMaxETA
	}
	return p
}

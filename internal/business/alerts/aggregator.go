// Package alerts merges the independent alert sources into one ordered feed.
package alerts

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// Listener receives the combined list after every change.
type Listener func(combined []model.Alert)

// Aggregator keeps one alert slice per source and the combined list built from them.
// Updates to different sources may arrive concurrently.
type Aggregator struct {
	loc *time.Location

	mu       sync.Mutex
	order    []string
	slices   map[string][]model.Alert
	combined []model.Alert
	version  uint64

	notifyMu  sync.Mutex
	delivered uint64
	listeners []Listener
}

// NewAggregator creates an Aggregator. sources fixes the tie-break order of sources;
// unknown sources are appended on first update.
func NewAggregator(loc *time.Location, sources ...string) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	a := &Aggregator{loc: loc, slices: make(map[string][]model.Alert)}
	for _, s := range sources {
		a.register(s)
	}
	return a
}

// OnChange registers a listener. Listeners run on the updating goroutine and
// never see an older list after a newer one.
func (a *Aggregator) OnChange(l Listener) {
	if l == nil {
		return
	}
	a.notifyMu.Lock()
	a.listeners = append(a.listeners, l)
	a.notifyMu.Unlock()
}

// Update replaces the slice of one source and returns the recomputed combined list.
func (a *Aggregator) Update(source string, in []model.Alert) []model.Alert {
	slice := a.prepare(source, in)

	a.mu.Lock()
	a.register(source)
	a.slices[source] = slice
	a.combined = a.combineLocked()
	a.version++
	version := a.version
	combined := clone(a.combined)
	a.mu.Unlock()

	a.notify(version, combined)
	return combined
}

// Clear empties one source, e.g. after its subscription failed.
func (a *Aggregator) Clear(source string) []model.Alert {
	return a.Update(source, nil)
}

// Combined returns a copy of the current combined list.
func (a *Aggregator) Combined() []model.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.combined)
}

// Source returns a copy of one source's slice.
func (a *Aggregator) Source(source string) []model.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.slices[source])
}

func (a *Aggregator) register(source string) {
	if _, ok := a.slices[source]; ok {
		return
	}
	a.order = append(a.order, source)
	a.slices[source] = nil
}

// prepare stamps source and parsed instant on each alert and drops duplicates.
// Alerts without an id are keyed by a hash of their content.
func (a *Aggregator) prepare(source string, in []model.Alert) []model.Alert {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Alert, 0, len(in))
	for _, al := range in {
		al.Source = source
		key := strings.TrimSpace(al.ID)
		if key == "" {
			key = util.HashAlertKey(source, al.Title, al.Timestamp, al.Message)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if t, ok := ParseTimestamp(al.Timestamp, a.loc); ok {
			al.At = t
		} else {
			al.At = time.Time{}
		}
		out = append(out, al)
	}
	return out
}

func (a *Aggregator) combineLocked() []model.Alert {
	var all []model.Alert
	for _, s := range a.order {
		all = append(all, a.slices[s]...)
	}
	SortNewestFirst(all)
	return all
}

func (a *Aggregator) notify(version uint64, combined []model.Alert) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if version <= a.delivered {
		return
	}
	a.delivered = version
	for _, l := range a.listeners {
		l(combined)
	}
}

// SortNewestFirst orders alerts by parsed instant, newest first. Alerts whose
// timestamp could not be parsed follow, ordered by raw text descending. Ties keep
// their input order.
func SortNewestFirst(in []model.Alert) {
	sort.SliceStable(in, func(i, j int) bool {
		ai, aj := in[i].At, in[j].At
		switch {
		case !ai.IsZero() && !aj.IsZero():
			return ai.After(aj)
		case !ai.IsZero():
			return true
		case !aj.IsZero():
			return false
		default:
			return in[i].Timestamp > in[j].Timestamp
		}
	})
}

func clone(in []model.Alert) []model.Alert {
	if in == nil {
		return nil
	}
	return append([]model.Alert(nil), in...)
}

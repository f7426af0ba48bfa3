// Package crossing turns raw crossing-controller records into the dashboard view:
// status reconciliation, the local ETA countdown, the event history and the
// approach notification trigger.
package crossing

import (
	"strings"
	"sync"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// LastUpdateLayout renders the wall-clock freshness stamp, e.g. "03:04:05 PM".
const LastUpdateLayout = "03:04:05 PM"

// Reconciler maps RawStatusRecord values to DisplayStatus. Its only state is the
// last ETA it reported, used to decide when the local countdown must restart.
type Reconciler struct {
	labels Labels
	now    func() time.Time
	loc    *time.Location

	mu      sync.Mutex
	lastETA string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the wall clock used for LastUpdate.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the zone LastUpdate is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewReconciler builds a Reconciler over the given label tables.
func NewReconciler(labels Labels, opts ...Option) *Reconciler {
	r := &Reconciler{labels: labels, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile derives the display status of raw. It never fails: a bad field falls
// back to its default without affecting the others.
func (r *Reconciler) Reconcile(raw model.RawStatusRecord) model.DisplayStatus {
	event := strings.TrimSpace(raw.Event)

	train, ok := r.labels.Event(event)
	if !ok {
		train = UnknownEventText
	}

	gate := r.labels.Gate(strings.TrimSpace(raw.GateStatus))
	if event == EventSystemReset {
		gate = ResetGateText
	}

	speed, eta := util.FormatFixed2(raw.SpeedKmh), util.FormatFixed2(raw.EtaSec)
	if forcesZero(event) {
		speed, eta = util.ZeroFixed, util.ZeroFixed
	}

	return model.DisplayStatus{
		TrainStatus: train,
		GateStatus:  gate,
		Speed:       speed,
		ETA:         eta,
		LastUpdate:  r.now().In(r.loc).Format(LastUpdateLayout),
	}
}

// Apply reconciles raw and reports whether the countdown should restart: the train
// is approaching, the ETA is positive and it differs from the last one reported.
// Once the status is no longer approaching the remembered ETA is cleared.
func (r *Reconciler) Apply(raw model.RawStatusRecord) (model.DisplayStatus, bool) {
	status := r.Reconcile(raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !IsApproaching(status.TrainStatus) {
		r.lastETA = ""
		return status, false
	}
	restart := status.ETA != r.lastETA && util.ParseFixed(status.ETA) > 0
	r.lastETA = status.ETA
	return status, restart
}

// ResetETA forgets the last reported ETA so the next positive one restarts the countdown.
func (r *Reconciler) ResetETA() {
	r.mu.Lock()
	r.lastETA = ""
	r.mu.Unlock()
}

// LoadingStatus is shown before the first record arrives and after a feed error.
func LoadingStatus() model.DisplayStatus {
	return model.DisplayStatus{
		TrainStatus: LoadingText,
		GateStatus:  LoadingText,
		Speed:       util.ZeroFixed,
		ETA:         util.ZeroFixed,
		LastUpdate:  NoUpdateText,
	}
}

// ParseRawStatus reads a current-status field map. A missing event reads as
// system_reset and a missing gate as opening.
func ParseRawStatus(fields map[string]any) model.RawStatusRecord {
	raw := model.RawStatusRecord{
		Event:      textField(fields, "event"),
		GateStatus: textField(fields, "gate_status"),
		Direction:  textField(fields, "direction"),
		Sensor:     textField(fields, "sensor"),
		SpeedKmh:   fields["speed_kmh"],
		EtaSec:     fields["eta_sec"],
	}
	if raw.Event == "" {
		raw.Event = EventSystemReset
	}
	if raw.GateStatus == "" {
		raw.GateStatus = GateOpening
	}
	if ts, ok := util.ToDecimal(fields["timestamp"]); ok {
		raw.Timestamp = ts.IntPart()
	}
	return raw
}

func forcesZero(event string) bool {
	return event == EventTrainCrossed || event == EventSystemReset
}

func textField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		if d, ok := util.ToDecimal(v); ok {
			return d.String()
		}
		return ""
	}
}

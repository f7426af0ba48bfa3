package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/proto"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/alerts"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/complaint"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/crossing"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/monitor"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/metrics"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/ws"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeDashboard struct {
	snap   monitor.Snapshot
	alerts []model.Alert
}

func (f *fakeDashboard) Snapshot() monitor.Snapshot { return f.snap }

func (f *fakeDashboard) Alerts(filter alerts.Filter) []model.Alert { return filter.Apply(f.alerts) }

func (f *fakeDashboard) AlertViews(filter alerts.Filter) []alerts.View {
	return alerts.Views(f.Alerts(filter), testNow, time.UTC)
}

func (f *fakeDashboard) InitialMessages() []monitor.Message {
	return []monitor.Message{{Kind: "status", Payload: f.snap.Status}}
}

type fakeSubmitter struct {
	err     error
	reports []complaint.Report
}

func (f *fakeSubmitter) Submit(_ context.Context, req complaint.Request) (complaint.Result, error) {
	if strings.TrimSpace(req.Details) == "" {
		return complaint.Result{}, complaint.ErrValidation
	}
	if f.err != nil {
		return complaint.Result{}, f.err
	}
	ch := make(chan complaint.Report, len(f.reports))
	for _, r := range f.reports {
		ch <- r
	}
	close(ch)
	return complaint.Result{ComplaintID: "c-1", Complaint: model.Complaint{ID: "c-1", Type: req.Type}, Reports: ch}, nil
}

type fakeHub struct {
	mu        sync.Mutex
	published []string
	initial   func() []ws.Message
}

func (h *fakeHub) ServeWS(w http.ResponseWriter, _ *http.Request, initial func() []ws.Message) {
	h.mu.Lock()
	h.initial = initial
	h.mu.Unlock()
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (h *fakeHub) Publish(kind string, _ any) {
	h.mu.Lock()
	h.published = append(h.published, kind)
	h.mu.Unlock()
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.published)
}

func newTestRouter(sub *fakeSubmitter, hub *fakeHub) *gin.Engine {
	return newTestRouterWithOrigins(sub, hub, "")
}

func newTestRouterWithOrigins(sub *fakeSubmitter, hub *fakeHub, origins string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Reconciled()
	dash := &fakeDashboard{
		snap: monitor.Snapshot{
			Status: crossing.LoadingStatus(),
			History: []model.EventEntry{
				{Timestamp: "2024-03-01 11:59:00", Description: "Train Crossed"},
				{Timestamp: "2024-03-01 11:58:00", Description: "Train Approaching - Gate: Closing"},
			},
			SafetyMetrics: model.SafetyMetrics{SafetyScore: "95"},
		},
		alerts: []model.Alert{
			{ID: "a", Source: "alerts", Title: "Sensor", Timestamp: "2024-03-01 11:58:00", At: testNow.Add(-2 * time.Minute), Priority: model.PriorityHigh},
			{ID: "b", Source: "complaints", Title: "Done", IsRead: true},
		},
	}
	return NewRouter(Deps{
		Dashboard:      dash,
		Complaints:     sub,
		Hub:            hub,
		Gatherer:       reg,
		StopID:         "crossing-1",
		AllowedOrigins: origins,
		Now:            func() time.Time { return testNow },
	})
}

func do(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatusAndHistory(t *testing.T) {
	router := newTestRouter(&fakeSubmitter{}, &fakeHub{})

	w := do(router, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"trainStatus":"Loading Update..."`) {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/history/export", "")
	want := "timestamp,description\n2024-03-01 11:59:00,Train Crossed\n2024-03-01 11:58:00,Train Approaching - Gate: Closing\n"
	if w.Body.String() != want {
		t.Fatalf("csv = %q", w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/safety-metrics", "")
	if !strings.Contains(w.Body.String(), `"safetyScore":"95"`) {
		t.Fatalf("metrics body = %s", w.Body.String())
	}
}

func TestListAlertsFilter(t *testing.T) {
	router := newTestRouter(&fakeSubmitter{}, &fakeHub{})
	w := do(router, http.MethodGet, "/api/alerts?filter=active", "")
	var body struct {
		Filter string        `json:"filter"`
		Items  []alerts.View `json:"items"`
		Total  int           `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Filter != "Active" || body.Total != 1 || body.Items[0].Relative != "2 mins ago" || body.Items[0].Color != "#FF6F00" {
		t.Fatalf("body = %+v", body)
	}

	w = do(router, http.MethodGet, "/api/alerts?filter=bogus", "")
	if !strings.Contains(w.Body.String(), `"total":2`) {
		t.Fatalf("unknown filter should list all: %s", w.Body.String())
	}
}

func TestAlertsGTFS(t *testing.T) {
	router := newTestRouter(&fakeSubmitter{}, &fakeHub{})
	w := do(router, http.MethodGet, "/api/alerts.pb", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/x-protobuf" {
		t.Fatalf("response: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msg.GetEntity()) != 1 || msg.GetEntity()[0].GetId() != "alerts:a" {
		t.Fatalf("entities = %v", msg.GetEntity())
	}
}

func TestSubmitComplaint(t *testing.T) {
	cases := []struct {
		name     string
		sub      *fakeSubmitter
		body     string
		wantCode int
	}{
		{"created", &fakeSubmitter{}, `{"type":"Sensor Issue","details":"lights blinking"}`, http.StatusCreated},
		{"blank details", &fakeSubmitter{}, `{"type":"Sensor Issue","details":"  "}`, http.StatusBadRequest},
		{"bad json", &fakeSubmitter{}, `{`, http.StatusBadRequest},
		{"write failure", &fakeSubmitter{err: errors.New("unavailable")}, `{"details":"x"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(tc.sub, &fakeHub{})
			w := do(router, http.MethodPost, "/api/complaints", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tc.wantCode, w.Body.String())
			}
		})
	}
}

func TestSubmitComplaintReports(t *testing.T) {
	sub := &fakeSubmitter{reports: []complaint.Report{
		{Step: complaint.StepNotification},
		{Step: complaint.StepDispatch, Err: errors.New("relay down")},
	}}

	hub := &fakeHub{}
	router := newTestRouter(sub, hub)
	w := do(router, http.MethodPost, "/api/complaints?wait=true", `{"details":"gate stuck"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d", w.Code)
	}
	var body struct {
		ID      string       `json:"id"`
		Reports []ReportView `json:"reports"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "c-1" || len(body.Reports) != 2 || !body.Reports[0].OK || body.Reports[1].OK {
		t.Fatalf("body = %+v", body)
	}
	if !strings.Contains(body.Reports[1].Warning, "relay down") {
		t.Fatalf("warning = %q", body.Reports[1].Warning)
	}

	do(router, http.MethodPost, "/api/complaints", `{"details":"gate stuck"}`)
	deadline := time.Now().Add(2 * time.Second)
	for hub.count() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d reports, want 2", hub.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthzMetricsAndCORS(t *testing.T) {
	router := newTestRouter(&fakeSubmitter{}, &fakeHub{})
	if w := do(router, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w := do(router, http.MethodGet, "/metrics", "")
	if !strings.Contains(w.Body.String(), "crossing_reconciliations_total 1") {
		t.Fatalf("metrics body missing counter: %s", w.Body.String())
	}
	if w := do(router, http.MethodOptions, "/api/complaints", ""); w.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", w.Code)
	}
	w = do(router, http.MethodGet, "/api/complaints/types", "")
	if !strings.Contains(w.Body.String(), `"default":"Gate Malfunction"`) {
		t.Fatalf("types = %s", w.Body.String())
	}
}

func TestCORSAllowList(t *testing.T) {
	cases := []struct {
		name    string
		origins string
		origin  string
		want    string
		vary    bool
	}{
		{name: "no list", origins: "", origin: "https://any.example", want: "*"},
		{name: "wildcard", origins: "https://a.example, *", origin: "https://any.example", want: "*"},
		{name: "listed", origins: "https://a.example, https://b.example", origin: "https://b.example", want: "https://b.example", vary: true},
		{name: "unlisted", origins: "https://a.example", origin: "https://evil.example", want: ""},
		{name: "missing origin", origins: "https://a.example", origin: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouterWithOrigins(&fakeSubmitter{}, &fakeHub{}, tc.origins)
			req := httptest.NewRequest(http.MethodOptions, "/api/complaints", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got, present := w.Header()["Access-Control-Allow-Origin"]
			if tc.want == "" {
				if present {
					t.Fatalf("allow-origin = %v, want none", got)
				}
				return
			}
			if w.Header().Get("Access-Control-Allow-Origin") != tc.want {
				t.Fatalf("allow-origin = %q, want %q", w.Header().Get("Access-Control-Allow-Origin"), tc.want)
			}
			if vary := w.Header().Get("Vary") == "Origin"; vary != tc.vary {
				t.Fatalf("vary = %q", w.Header().Get("Vary"))
			}
		})
	}
}

func TestServeWSDefersInitialState(t *testing.T) {
	hub := &fakeHub{}
	router := newTestRouter(&fakeSubmitter{}, hub)
	do(router, http.MethodGet, "/ws", "")

	hub.mu.Lock()
	initial := hub.initial
	hub.mu.Unlock()
	if initial == nil {
		t.Fatal("hub got no initial state builder")
	}
	msgs := initial()
	if len(msgs) != 1 || msgs[0].Type != "status" || !msgs[0].At.Equal(testNow) {
		t.Fatalf("initial = %+v", msgs)
	}
}

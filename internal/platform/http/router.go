package http

import (
	"context"
	"encoding/csv"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/alerts"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/complaint"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/business/monitor"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/gtfsrt"
	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/ws"
	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// KindComplaintReport is pushed to websocket clients for each complaint follow-up step.
const KindComplaintReport = "complaint_report"

// Dashboard is the read side served by the API. *monitor.Monitor satisfies it.
type Dashboard interface {
	Snapshot() monitor.Snapshot
	Alerts(f alerts.Filter) []model.Alert
	AlertViews(f alerts.Filter) []alerts.View
	InitialMessages() []monitor.Message
}

// Submitter records complaints. *complaint.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req complaint.Request) (complaint.Result, error)
}

// Hub pushes messages to websocket clients. *ws.Hub satisfies it.
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, initial func() []ws.Message)
	Publish(kind string, payload any)
}

// Deps wires the router.
type Deps struct {
	Dashboard      Dashboard
	Complaints     Submitter
	Hub            Hub
	Gatherer       prometheus.Gatherer
	StopID         string
	AllowedOrigins string
	Now            func() time.Time
}

// Router wires HTTP handlers.
type Router struct {
	deps Deps
}

// ReportView is a follow-up outcome as clients see it.
type ReportView struct {
	ComplaintID string `json:"complaintId"`
	Step        string `json:"step"`
	OK          bool   `json:"ok"`
	Warning     string `json:"warning,omitempty"`
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	r := &Router{deps: deps}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), r.corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	router.GET("/ws", r.serveWS)

	api := router.Group("/api")
	{
		api.GET("/status", r.getStatus)
		api.GET("/history", r.getHistory)
		api.GET("/history/export", r.exportHistory)
		api.GET("/alerts", r.listAlerts)
		api.GET("/alerts.pb", r.exportAlertsGTFS)
		api.GET("/incidents", r.listIncidents)
		api.GET("/safety-metrics", r.getSafetyMetrics)
		api.GET("/complaints/types", r.listComplaintTypes)
		api.POST("/complaints", r.submitComplaint)
	}

	return router
}

// corsMiddleware allows any origin when no list is configured or the list holds "*".
// Otherwise only listed origins are echoed back; others get no allow-origin header.
func (r *Router) corsMiddleware() gin.HandlerFunc {
	listed := make(map[string]bool)
	for _, o := range strings.Split(r.deps.AllowedOrigins, ",") {
		if t := strings.TrimSpace(o); t != "" {
			listed[t] = true
		}
	}
	anyOrigin := len(listed) == 0 || listed["*"]
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && listed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *Router) serveWS(c *gin.Context) {
	r.deps.Hub.ServeWS(c.Writer, c.Request, r.initialMessages)
}

func (r *Router) initialMessages() []ws.Message {
	var initial []ws.Message
	now := r.deps.Now()
	for _, m := range r.deps.Dashboard.InitialMessages() {
		initial = append(initial, ws.Message{Type: m.Kind, Payload: m.Payload, At: now})
	}
	return initial
}

func (r *Router) getStatus(c *gin.Context) {
	s := r.deps.Dashboard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":           s.Status,
		"countdown":        s.Countdown,
		"approaching":      s.Approaching,
		"lastNotification": s.LastNotification,
	})
}

func (r *Router) getHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": r.deps.Dashboard.Snapshot().History})
}

func (r *Router) exportHistory(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=history.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "description"}); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	for _, e := range r.deps.Dashboard.Snapshot().History {
		if err := writer.Write([]string{e.Timestamp, e.Description}); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
	}
}

func (r *Router) listAlerts(c *gin.Context) {
	filter := alerts.ParseFilter(c.DefaultQuery("filter", string(alerts.FilterAll)))
	items := r.deps.Dashboard.AlertViews(filter)
	c.JSON(http.StatusOK, gin.H{
		"filter": filter,
		"items":  items,
		"total":  len(items),
	})
}

func (r *Router) exportAlertsGTFS(c *gin.Context) {
	in := r.deps.Dashboard.Alerts(alerts.FilterActive)
	now := r.deps.Now()
	if c.Query("format") == "text" {
		data, err := gtfsrt.MarshalText(in, now, r.deps.StopID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
		return
	}
	data, err := gtfsrt.Marshal(in, now, r.deps.StopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/x-protobuf", data)
}

func (r *Router) listIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": r.deps.Dashboard.Snapshot().Incidents})
}

func (r *Router) getSafetyMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, r.deps.Dashboard.Snapshot().SafetyMetrics)
}

func (r *Router) listComplaintTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": complaint.Types, "default": complaint.Types[0]})
}

// submitComplaint answers once the complaint is written. Follow-up outcomes are
// pushed over the websocket, or returned inline when ?wait=true.
func (r *Router) submitComplaint(c *gin.Context) {
	var req complaint.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := r.deps.Complaints.Submit(c.Request.Context(), req)
	if errors.Is(err, complaint.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("submit complaint: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to submit complaint, please try again"})
		return
	}

	if c.Query("wait") == "true" {
		reports := collectReports(c.Request.Context(), res)
		c.JSON(http.StatusCreated, gin.H{"id": res.ComplaintID, "complaint": res.Complaint, "reports": reports})
		return
	}

	go r.forwardReports(res)
	c.JSON(http.StatusCreated, gin.H{"id": res.ComplaintID, "complaint": res.Complaint})
}

func collectReports(ctx context.Context, res complaint.Result) []ReportView {
	out := []ReportView{}
	for {
		select {
		case rep, ok := <-res.Reports:
			if !ok {
				return out
			}
			out = append(out, reportView(res.ComplaintID, rep))
		case <-ctx.Done():
			return out
		}
	}
}

func (r *Router) forwardReports(res complaint.Result) {
	for rep := range res.Reports {
		r.deps.Hub.Publish(KindComplaintReport, reportView(res.ComplaintID, rep))
	}
}

func reportView(id string, rep complaint.Report) ReportView {
	return ReportView{ComplaintID: id, Step: string(rep.Step), OK: rep.Err == nil, Warning: rep.Warning()}
}

// Package complaint validates and records user complaints and forwards them to
// the maintainer without letting delivery problems undo the recorded complaint.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// ErrValidation marks a submission rejected before anything was written.
var ErrValidation = errors.New("complaint: invalid submission")

// NotProvided replaces blank contact fields.
const NotProvided = "Not provided"

// Types lists the complaint categories users can pick from. The first is the default.
var Types = []string{
	"Gate Malfunction",
	"Sensor Issue",
	"Delayed Response",
	"Safety Concern",
	"Other Issue",
}

// Store appends complaints; the store assigns the id.
type Store interface {
	Create(ctx context.Context, c model.Complaint) (string, error)
}

// NotificationStore appends maintainer notifications.
type NotificationStore interface {
	Create(ctx context.Context, n model.MaintainerNotification) (string, error)
}

// Dispatcher sends a complaint summary to the maintainer.
type Dispatcher interface {
	Dispatch(ctx context.Context, c model.Complaint) error
}

// Observer records submission outcomes. metrics.Metrics satisfies it.
type Observer interface {
	ComplaintSubmitted(result string)
	SideEffect(step, result string)
}

// Request is a user submission.
type Request struct {
	Type      string `json:"type"`
	Details   string `json:"details"`
	UserEmail string `json:"userEmail"`
	UserPhone string `json:"userPhone"`
}

// Step names a best-effort follow-up of a recorded complaint.
type Step string

const (
	StepNotification Step = "notification"
	StepDispatch     Step = "dispatch"
)

// Report is the outcome of one follow-up step.
type Report struct {
	Step Step
	Err  error
}

// Warning is the soft warning shown to the user, empty on success.
func (r Report) Warning() string {
	if r.Err == nil {
		return ""
	}
	switch r.Step {
	case StepNotification:
		return "Complaint saved, but the maintainer notification could not be recorded: " + r.Err.Error()
	default:
		return "Complaint saved, but the email to the maintainer failed: " + r.Err.Error()
	}
}

// Result describes an accepted complaint. Reports receives one entry per follow-up
// step and is closed when they are all done.
type Result struct {
	ComplaintID string
	Complaint   model.Complaint
	Reports     <-chan Report
}

// Service runs the submission flow.
type Service struct {
	store         Store
	notifications NotificationStore
	dispatcher    Dispatcher
	observer      Observer

	maintainer string
	now        func() time.Time
	loc        *time.Location
	timeout    time.Duration

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithNotifications records a maintainer notification per complaint.
func WithNotifications(n NotificationStore) Option {
	return func(s *Service) { s.notifications = n }
}

// WithDispatcher forwards each complaint to the maintainer.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithMaintainer sets the notification recipient.
func WithMaintainer(email string) Option {
	return func(s *Service) { s.maintainer = strings.TrimSpace(email) }
}

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone complaint timestamps are written in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSideEffectTimeout bounds the follow-up steps.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service writing to store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		now:     time.Now,
		loc:     time.Local,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeType maps a type name to its canonical spelling. Blank picks the default.
func NormalizeType(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Types[0], true
	}
	for _, t := range Types {
		if strings.EqualFold(t, name) {
			return t, true
		}
	}
	return "", false
}

// Submit validates req, writes the complaint once and starts the follow-up steps in
// the background. A non-nil error means nothing was recorded.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	details := strings.TrimSpace(req.Details)
	if details == "" {
		s.observe("invalid")
		return Result{}, fmt.Errorf("%w: details are required", ErrValidation)
	}
	typ, ok := NormalizeType(req.Type)
	if !ok {
		s.observe("invalid")
		return Result{}, fmt.Errorf("%w: unknown complaint type %q", ErrValidation, req.Type)
	}

	c := model.Complaint{
		Type:      typ,
		Details:   details,
		Timestamp: s.now().In(s.loc).Format(model.TimestampLayout),
		Status:    model.ComplaintPending,
		UserEmail: orNotProvided(req.UserEmail),
		UserPhone: orNotProvided(req.UserPhone),
	}

	id, err := s.store.Create(ctx, c)
	if err == nil && id == "" {
		err = errors.New("store returned an empty id")
	}
	if err != nil {
		s.observe("failed")
		return Result{}, fmt.Errorf("write complaint: %w", err)
	}
	c.ID = id
	s.observe("created")

	reports := make(chan Report, 2)
	s.wg.Add(1)
	go s.followUp(context.WithoutCancel(ctx), c, reports)

	return Result{ComplaintID: id, Complaint: c, Reports: reports}, nil
}

// Wait blocks until every running follow-up has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) followUp(parent context.Context, c model.Complaint, reports chan<- Report) {
	defer s.wg.Done()
	defer close(reports)

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if s.notifications != nil {
		_, err := s.notifications.Create(ctx, model.MaintainerNotification{
			ComplaintID: c.ID,
			Recipient:   s.maintainer,
			Title:       "New Complaint: " + c.Type,
			Message:     c.Details,
			Timestamp:   c.Timestamp,
		})
		s.report(reports, Report{Step: StepNotification, Err: err}, c.ID)
	}

	if s.dispatcher != nil {
		err := s.dispatcher.Dispatch(ctx, c)
		s.report(reports, Report{Step: StepDispatch, Err: err}, c.ID)
	}
}

func (s *Service) report(reports chan<- Report, r Report, id string) {
	result := "ok"
	if r.Err != nil {
		result = "failed"
		log.Printf("complaint %s %s: %v", id, r.Step, r.Err)
	}
	if s.observer != nil {
		s.observer.SideEffect(string(r.Step), result)
	}
	reports <- r
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.ComplaintSubmitted(result)
	}
}

func orNotProvided(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return NotProvided
	}
	return v
}

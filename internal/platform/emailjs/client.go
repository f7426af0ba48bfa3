package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// DefaultEndpoint is the EmailJS REST send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

const anonymousUser = "Anonymous"

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("emailjs status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client relays complaint summaries to the maintainer through EmailJS.
type Client struct {
	serviceID   string
	templateID  string
	userID      string
	accessToken string
	endpoint    string
	httpClient  HTTPClient
	mock        bool

	maxRetries int
}

// Config defines settings for the EmailJS client.
type Config struct {
	ServiceID   string
	TemplateID  string
	UserID      string
	AccessToken string
	Endpoint    string
	Mock        bool
	MaxRetries  int
}

// New creates an EmailJS client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Client{
		serviceID:   cfg.ServiceID,
		templateID:  cfg.TemplateID,
		userID:      cfg.UserID,
		accessToken: cfg.AccessToken,
		endpoint:    endpoint,
		httpClient:  httpClient,
		mock:        cfg.Mock,
		maxRetries:  maxRetries,
	}
}

// TemplateParams are the variables the maintainer email template expects.
type TemplateParams struct {
	ComplaintType    string `json:"complaint_type"`
	ComplaintDetails string `json:"complaint_details"`
	UserEmail        string `json:"user_email"`
	ComplaintID      string `json:"complaint_id"`
	Timestamp        string `json:"timestamp"`
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams TemplateParams `json:"template_params"`
}

// ParamsFor builds template params for a stored complaint. A blank or placeholder
// email is reported as Anonymous.
func ParamsFor(c model.Complaint) TemplateParams {
	email := strings.TrimSpace(c.UserEmail)
	if email == "" || strings.EqualFold(email, "Not provided") {
		email = anonymousUser
	}
	return TemplateParams{
		ComplaintType:    c.Type,
		ComplaintDetails: c.Details,
		UserEmail:        email,
		ComplaintID:      c.ID,
		Timestamp:        c.Timestamp,
	}
}

// Dispatch sends the complaint summary to the maintainer.
func (c *Client) Dispatch(ctx context.Context, complaint model.Complaint) error {
	return c.Send(ctx, ParamsFor(complaint))
}

// Send posts one email. Any 2xx answer is success.
func (c *Client) Send(ctx context.Context, params TemplateParams) error {
	if c.mock {
		log.Printf("emailjs mock: complaint %s (%s) not sent", params.ComplaintID, params.ComplaintType)
		return nil
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     c.templateID,
		UserID:         c.userID,
		AccessToken:    c.accessToken,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

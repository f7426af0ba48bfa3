package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EventComplaintCreated tags notices about newly recorded complaints.
const EventComplaintCreated = "complaint.created"

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Crossing-Signature"

// Notice is what a Channel delivers to the maintainer.
type Notice struct {
	Event         string `json:"event"`
	ComplaintID   string `json:"complaintId"`
	ComplaintType string `json:"complaintType"`
	Timestamp     string `json:"timestamp"`
	Recipient     string `json:"recipient,omitempty"`
	// Text is the rendered summary; chat webhooks display this field as the message.
	Text string `json:"text"`
}

// Channel delivers a notice.
type Channel interface {
	Send(ctx context.Context, n Notice) error
}

// WebhookChannel posts notices as JSON to a maintainer endpoint.
type WebhookChannel struct {
	url    string
	secret []byte
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithSigningSecret signs every body so the receiver can reject forged notices.
func WithSigningSecret(secret string) WebhookOption {
	return func(ch *WebhookChannel) {
		if secret = strings.TrimSpace(secret); secret != "" {
			ch.secret = []byte(secret)
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Send posts n. Any non-2xx answer is an error quoting the start of the response body.
func (w *WebhookChannel) Send(ctx context.Context, n Notice) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook channel: encode notice: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook channel: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook channel: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook channel: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Package notify fans complaint summaries out to maintainer channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

const notProvided = "Not provided"

// Dispatcher delivers one complaint summary.
type Dispatcher interface {
	Dispatch(ctx context.Context, c model.Complaint) error
}

// ChannelDispatcher turns a complaint into a Notice and sends it through a Channel.
type ChannelDispatcher struct {
	channel    Channel
	maintainer string
}

// NewChannelDispatcher wraps ch. maintainer is quoted in the message footer.
func NewChannelDispatcher(ch Channel, maintainer string) *ChannelDispatcher {
	return &ChannelDispatcher{channel: ch, maintainer: maintainer}
}

// Dispatch implements Dispatcher.
func (d *ChannelDispatcher) Dispatch(ctx context.Context, c model.Complaint) error {
	if d == nil || d.channel == nil {
		return errors.New("notify: nil channel")
	}
	return d.channel.Send(ctx, Notice{
		Event:         EventComplaintCreated,
		ComplaintID:   c.ID,
		ComplaintType: c.Type,
		Timestamp:     c.Timestamp,
		Recipient:     d.maintainer,
		Text:          ComplaintText(c, d.maintainer),
	})
}

// ComplaintText renders the maintainer message for a complaint.
func ComplaintText(c model.Complaint, maintainer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Railway Crossing Complaint - %s\n\n", c.Type)
	fmt.Fprintf(&b, "ID: %s\nType: %s\nTime: %s\n\n", c.ID, c.Type, c.Timestamp)

	b.WriteString("User Contact:")
	email, phone := provided(c.UserEmail), provided(c.UserPhone)
	if email != "" {
		fmt.Fprintf(&b, "\nEmail: %s", email)
	}
	if phone != "" {
		fmt.Fprintf(&b, "\nPhone: %s", phone)
	}
	if email == "" && phone == "" {
		b.WriteString("\nAnonymous User")
	}

	fmt.Fprintf(&b, "\n\nDescription:\n%s\n", c.Details)
	if maintainer != "" {
		fmt.Fprintf(&b, "\nMaintainer: %s\n", maintainer)
	}
	return b.String()
}

func provided(v string) string {
	v = strings.TrimSpace(v)
	if v == notProvided {
		return ""
	}
	return v
}

// Multi dispatches a complaint to several dispatchers and joins their errors.
type Multi struct {
	dispatchers []Dispatcher
}

// NewMulti constructs a Multi, skipping nil dispatchers.
func NewMulti(dispatchers ...Dispatcher) *Multi {
	m := &Multi{}
	for _, d := range dispatchers {
		if d != nil {
			m.dispatchers = append(m.dispatchers, d)
		}
	}
	return m
}

// Len reports how many dispatchers are configured.
func (m *Multi) Len() int {
	if m == nil {
		return 0
	}
	return len(m.dispatchers)
}

// Dispatch forwards c to every dispatcher, even after a failure.
func (m *Multi) Dispatch(ctx context.Context, c model.Complaint) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, d := range m.dispatchers {
		if err := d.Dispatch(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

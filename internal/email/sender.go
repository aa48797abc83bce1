// Package email renders and delivers transactional emails.
package email

import (
	"context"
)

// Sender delivers notification emails.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail string, n Notification) error
}

// Notification is the content of a notification email.
type Notification struct {
	Subject  string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

// NoopSender drops every email. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(context.Context, string, Notification) error { return nil }

var _ Sender = NoopSender{}

package dispatch

import (
	"context"

	"archi_crm_backend/internal/email"
)

// WhatsAppSender is satisfied by whatsapp.Client.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// SMSSender is satisfied by sms.Sender.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

type whatsAppChannel struct{ sender WhatsAppSender }

// WhatsApp wraps a WhatsApp sender as a channel.
func WhatsApp(sender WhatsAppSender) Channel { return whatsAppChannel{sender: sender} }

func (whatsAppChannel) Name() string { return "whatsapp" }

func (whatsAppChannel) Accepts(r Recipient) bool { return r.NotifyWhatsApp && r.Phone != "" }

func (c whatsAppChannel) Deliver(ctx context.Context, r Recipient, m Message) error {
	return c.sender.SendMessage(ctx, r.Phone, m.Text())
}

type smsChannel struct{ sender SMSSender }

// SMS wraps an SMS sender as a channel.
func SMS(sender SMSSender) Channel { return smsChannel{sender: sender} }

func (smsChannel) Name() string { return "sms" }

func (smsChannel) Accepts(r Recipient) bool { return r.NotifySMS && r.Phone != "" }

func (c smsChannel) Deliver(ctx context.Context, r Recipient, m Message) error {
	return c.sender.Send(ctx, r.Phone, m.Text())
}

type emailChannel struct{ sender email.Sender }

// Email wraps an email sender as a channel.
func Email(sender email.Sender) Channel { return emailChannel{sender: sender} }

func (emailChannel) Name() string { return "email" }

func (emailChannel) Accepts(r Recipient) bool { return r.NotifyEmail && r.Email != "" }

func (c emailChannel) Deliver(ctx context.Context, r Recipient, m Message) error {
	return c.sender.SendNotificationEmail(ctx, r.Email, email.Notification{
		Subject:  m.Title,
		Heading:  m.Title,
		Body:     m.Body,
		CTALabel: "Ouvrir dans le CRM",
		CTAURL:   m.Link,
	})
}

// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"fmt"

	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/phone"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender delivers SMS from a single Twilio number.
type Sender struct {
	api  messageCreator
	from string
}

// NewSender returns nil when Twilio is not configured; a nil sender drops messages.
func NewSender(cfg config.SMSConfig) *Sender {
	if !cfg.IsSMSEnabled() {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.GetTwilioAccountSID(),
		Password: cfg.GetTwilioAuthToken(),
	})
	return &Sender{api: client.Api, from: cfg.GetTwilioFromNumber()}
}

// Send delivers body to phoneNumber. The Twilio SDK does not take a context,
// so ctx is only checked before the call.
func (s *Sender) Send(ctx context.Context, phoneNumber, body string) error {
	if s == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	to := phone.NormalizeE164(phoneNumber)
	if !phone.IsValid(to) {
		return fmt.Errorf("sms: invalid phone number %q", phoneNumber)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}

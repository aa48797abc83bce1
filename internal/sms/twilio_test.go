package sms

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestSendNormalizesRecipient(t *testing.T) {
	api := &fakeAPI{}
	s := &Sender{api: api, from: "+15005550006"}

	if err := s.Send(context.Background(), "06 12 34 56 78", "Acompte reçu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected one message, got %d", len(api.params))
	}
	p := api.params[0]
	if p.To == nil || *p.To != "+212612345678" {
		t.Fatalf("unexpected recipient %v", p.To)
	}
	if p.From == nil || *p.From != "+15005550006" {
		t.Fatalf("unexpected sender %v", p.From)
	}
}

func TestSendRejectsInvalidNumbers(t *testing.T) {
	api := &fakeAPI{}
	s := &Sender{api: api, from: "+15005550006"}
	if err := s.Send(context.Background(), "abc", "x"); err == nil {
		t.Fatal("expected error for invalid number")
	}
	if len(api.params) != 0 {
		t.Fatal("expected no api call")
	}
}

func TestSendWrapsAPIErrors(t *testing.T) {
	s := &Sender{api: &fakeAPI{err: errors.New("21608")}, from: "+15005550006"}
	if err := s.Send(context.Background(), "+212612345678", "x"); err == nil {
		t.Fatal("expected api error")
	}
}

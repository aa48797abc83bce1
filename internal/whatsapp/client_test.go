package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testConfig struct {
	url string
}

func (c testConfig) GetWhatsAppURL() string      { return c.url }
func (c testConfig) GetWhatsAppInstance() string { return "cabinet" }
func (c testConfig) GetWhatsAppToken() string    { return "secret" }
func (c testConfig) IsWhatsAppEnabled() bool     { return c.url != "" }

func TestSendMessagePostsNormalizedNumber(t *testing.T) {
	var got sendTextRequest
	var path, apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(testConfig{url: srv.URL + "/"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.SendMessage(ctx, "0612345678", "Bonjour"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/message/sendText/cabinet" {
		t.Fatalf("unexpected path %q", path)
	}
	if apiKey != "secret" {
		t.Fatalf("expected api key header, got %q", apiKey)
	}
	if got.Number != "212612345678" || got.Text != "Bonjour" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendMessageReportsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "instance offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig{url: srv.URL}, nil)
	if err := c.SendMessage(context.Background(), "+212612345678", "x"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	c := NewClient(testConfig{}, nil)
	if c != nil {
		t.Fatal("expected nil client when unconfigured")
	}
	if err := c.SendMessage(context.Background(), "+212612345678", "x"); err != nil {
		t.Fatalf("expected nil client to drop message, got %v", err)
	}
}

// Package whatsapp sends text messages through an HTTP WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"
)

type Client struct {
	baseURL  string
	token    string
	instance string
	http     *http.Client
	log      *logger.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// NewClient returns nil when the gateway is not configured; a nil client drops messages.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if !cfg.IsWhatsAppEnabled() {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		token:    cfg.GetWhatsAppToken(),
		instance: cfg.GetWhatsAppInstance(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return nil
	}

	normalized := phone.Digits(phone.NormalizeE164(phoneNumber))
	if normalized == "" {
		return fmt.Errorf("whatsapp: invalid phone number %q", phoneNumber)
	}

	body, err := json.Marshal(sendTextRequest{Number: normalized, Text: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, url.PathEscape(c.instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("apikey", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if c.log != nil {
		c.log.Info("whatsapp sent", "phone", normalized)
	}
	return nil
}

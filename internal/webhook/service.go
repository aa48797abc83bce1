package webhook

import (
	"context"
	"strings"

	leadstransport "archi_crm_backend/internal/leads/transport"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const maxNoteLength = 2000

// LeadCapturer creates a lead without an authenticated author.
type LeadCapturer interface {
	Capture(ctx context.Context, req leadstransport.CreateLeadRequest) (leadstransport.LeadResponse, error)
}

// KeyStore is the key storage the service needs.
type KeyStore interface {
	KeyLookup
	Create(ctx context.Context, name, hash, prefix string, allowedDomains []string, createdBy *uuid.UUID) (APIKey, error)
	List(ctx context.Context) ([]APIKey, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// Submission is a parsed inbound form.
type Submission struct {
	Fields       map[string]string
	SourceDomain string
	APIKeyID     uuid.UUID
}

type SubmissionResponse struct {
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	IsDuplicate bool       `json:"isDuplicate"`
	Message     string     `json:"message"`
}

type Service struct {
	keys  KeyStore
	leads LeadCapturer
	log   *logger.Logger
}

func NewService(keys KeyStore, leads LeadCapturer, log *logger.Logger) *Service {
	return &Service{keys: keys, leads: leads, log: log}
}

// ProcessSubmission turns a form into a lead. A phone already known as a lead
// or contact is acknowledged as a duplicate rather than rejected, so website
// forms do not surface an error to visitors.
func (s *Service) ProcessSubmission(ctx context.Context, sub Submission) (SubmissionResponse, error) {
	extracted := ExtractFields(sub.Fields)
	if extracted.IsIncomplete() {
		return SubmissionResponse{}, apperr.Validation("name and phone are required")
	}

	req := leadstransport.CreateLeadRequest{
		Name:         extracted.Name(),
		Phone:        extracted.Phone,
		Email:        extracted.Email,
		City:         extracted.City,
		PropertyType: extracted.PropertyType,
		Source:       sourceOf(sub.SourceDomain),
		Note:         truncate(extracted.Message, maxNoteLength),
	}

	lead, err := s.leads.Capture(ctx, req)
	if apperr.Is(err, apperr.KindConflict) {
		s.log.Info("webhook: duplicate lead ignored", "domain", sub.SourceDomain)
		return SubmissionResponse{IsDuplicate: true, Message: "Duplicate lead ignored"}, nil
	}
	if err != nil {
		return SubmissionResponse{}, err
	}

	if sub.APIKeyID != uuid.Nil {
		if err := s.keys.TouchLastUsed(ctx, sub.APIKeyID); err != nil {
			s.log.SideEffectFailed("touch_webhook_key", sub.APIKeyID.String(), err)
		}
	}
	return SubmissionResponse{LeadID: &lead.ID, Message: "Lead created"}, nil
}

type CreateAPIKeyRequest struct {
	Name           string   `json:"name" validate:"required,notblank,max=100"`
	AllowedDomains []string `json:"allowedDomains" validate:"max=20,dive,max=200"`
}

type APIKeyResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	KeyPrefix      string    `json:"keyPrefix"`
	AllowedDomains []string  `json:"allowedDomains"`
	IsActive       bool      `json:"isActive"`
	LastUsedAt     *string   `json:"lastUsedAt,omitempty"`
	CreatedAt      string    `json:"createdAt"`
}

// CreateAPIKeyResponse carries the plaintext key, returned only once.
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

func (s *Service) CreateKey(ctx context.Context, id httpkit.Identity, req CreateAPIKeyRequest) (CreateAPIKeyResponse, error) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		return CreateAPIKeyResponse{}, err
	}

	domains := make([]string, 0, len(req.AllowedDomains))
	for _, d := range req.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}

	uid := id.UserID()
	key, err := s.keys.Create(ctx, strings.TrimSpace(req.Name), hash, prefix, domains, &uid)
	if err != nil {
		return CreateAPIKeyResponse{}, err
	}
	return CreateAPIKeyResponse{APIKeyResponse: toAPIKeyResponse(key), Key: plaintext}, nil
}

func (s *Service) ListKeys(ctx context.Context) ([]APIKeyResponse, error) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		out[i] = toAPIKeyResponse(k)
	}
	return out, nil
}

func (s *Service) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	return s.keys.Revoke(ctx, keyID)
}

func toAPIKeyResponse(k APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		ID:             k.ID,
		Name:           k.Name,
		KeyPrefix:      k.KeyPrefix,
		AllowedDomains: k.AllowedDomains,
		IsActive:       k.IsActive,
		CreatedAt:      k.CreatedAt.UTC().Format(timeFormat),
	}
	if resp.AllowedDomains == nil {
		resp.AllowedDomains = []string{}
	}
	if k.LastUsedAt != nil {
		used := k.LastUsedAt.UTC().Format(timeFormat)
		resp.LastUsedAt = &used
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z"

func sourceOf(domain string) string {
	if domain == "" {
		return "site_web"
	}
	return "site_web:" + domain
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

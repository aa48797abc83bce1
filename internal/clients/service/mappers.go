package service

import (
	"time"

	"archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/clients/transport"
	"archi_crm_backend/internal/pipeline/domain"
)

func toClientResponse(c repository.Client) transport.ClientResponse {
	resp := transport.ClientResponse{
		Key:           c.Key,
		Kind:          string(c.Kind),
		ContactID:     c.ContactID,
		OpportunityID: c.OpportunityID,
		Name:          c.ContactName,
		Phone:         c.Phone,
		Email:         c.Email,
		City:          c.City,
		Title:         c.Title,
		Type:          c.Type,
		Architect:     c.Architect,
		Stage:         string(c.Stage),
		Category:      string(domain.Classify(string(c.Stage))),
		CreatedAt:     c.CreatedAt,
	}
	if c.Budget.Valid {
		b := c.Budget.Decimal
		resp.Budget = &b
	}
	return resp
}

func toDevisResponse(d repository.Devis) transport.DevisResponse {
	return transport.DevisResponse{
		ID:            d.ID,
		ClientKey:     d.ClientKey,
		Title:         d.Title,
		Amount:        d.Amount,
		Status:        string(d.Status),
		FactureReglee: d.FactureReglee,
		HasDocument:   d.DocumentKey != nil,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toPaymentResponse(p repository.Payment) transport.PaymentResponse {
	return transport.PaymentResponse{
		ID:        p.ID,
		ClientKey: p.ClientKey,
		Amount:    p.Amount,
		PaidAt:    p.PaidAt,
		Method:    string(p.Method),
		Reference: p.Reference,
		Type:      string(p.Type),
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
	}
}

func toHistoriqueResponse(h repository.HistoriqueEntry) transport.HistoriqueResponse {
	return transport.HistoriqueResponse{
		ID:          h.ID,
		Type:        h.Type,
		Description: h.Description,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		Author:      h.Author,
		CreatedAt:   h.CreatedAt,
	}
}

func toStageIntervalResponse(i repository.StageInterval) transport.StageIntervalResponse {
	return transport.StageIntervalResponse{
		Stage:           i.Stage,
		StartedAt:       i.StartedAt,
		EndedAt:         i.EndedAt,
		DurationSeconds: i.DurationSeconds,
	}
}

func toPresignedResponse(url, fileKey string, expiresAt time.Time) transport.PresignedURLResponse {
	return transport.PresignedURLResponse{URL: url, FileKey: fileKey, ExpiresAt: expiresAt}
}

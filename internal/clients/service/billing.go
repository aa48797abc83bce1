package service

import (
	"context"
	"fmt"
	"strings"

	"archi_crm_backend/internal/clients/repository"
	"archi_crm_backend/internal/clients/transport"
	"archi_crm_backend/internal/pdf"
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const devisFolder = "devis/"

func (s *Service) CreateDevis(ctx context.Context, id httpkit.Identity, key string, req transport.CreateDevisRequest) (transport.DevisResponse, error) {
	if !req.Amount.IsPositive() {
		return transport.DevisResponse{}, apperr.Validation("amount must be positive")
	}
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return transport.DevisResponse{}, err
	}

	uid := id.UserID()
	var created repository.Devis
	err = s.write(ctx, "create_devis", func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateDevis(ctx, repository.CreateDevisParams{
			ClientKey: client.Key,
			Title:     req.Title,
			Amount:    req.Amount,
			Notes:     req.Notes,
			CreatedBy: &uid,
		})
		return err
	})
	if err != nil {
		return transport.DevisResponse{}, err
	}

	actor := actorOf(id)
	_ = s.exec.Apply(ctx, []domain.Effect{domain.AppendHistorique{Entry: domain.HistoriqueEntry{
		ClientKey:   client.Key,
		Type:        domain.HistoriqueDevis,
		Description: "Devis « " + created.Title + " » créé",
		NewValue:    created.Amount.StringFixed(2),
		Author:      actor.Name,
		At:          s.now(),
	}}})
	return toDevisResponse(created), nil
}

func (s *Service) ListDevis(ctx context.Context, id httpkit.Identity, key string) ([]transport.DevisResponse, error) {
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return nil, err
	}
	devis, err := s.repo.ListDevis(ctx, client.Key)
	if err != nil {
		return nil, err
	}
	return mapSlice(devis, toDevisResponse), nil
}

// loadDevis fetches a devis that belongs to the client behind key.
func (s *Service) loadDevis(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID) (repository.Devis, repository.Client, error) {
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return repository.Devis{}, repository.Client{}, err
	}
	devis, err := s.repo.GetDevis(ctx, devisID)
	if err != nil {
		return repository.Devis{}, repository.Client{}, err
	}
	if devis.ClientKey != client.Key {
		return repository.Devis{}, repository.Client{}, repository.ErrDevisNotFound
	}
	return devis, client, nil
}

// UpdateDevisStatus changes a devis status. Leaving accepte clears the
// facture_reglee flag; accepting may complete the move out of qualifie.
func (s *Service) UpdateDevisStatus(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID, req transport.UpdateDevisStatusRequest) (transport.DevisResponse, error) {
	devis, client, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return transport.DevisResponse{}, err
	}

	next := domain.ApplyDevisStatus(domain.DevisState{Status: devis.Status, FactureReglee: devis.FactureReglee}, domain.DevisStatus(req.Status))
	var saved repository.Devis
	err = s.write(ctx, "save_devis_state", func(ctx context.Context) error {
		var err error
		saved, err = s.repo.SaveDevisState(ctx, devis.ID, next)
		return err
	})
	if err != nil {
		return transport.DevisResponse{}, err
	}

	in, err := s.billingContext(ctx, id, client)
	if err != nil {
		return transport.DevisResponse{}, err
	}
	effects := domain.PlanDevisStatusChange(in, devis.Title, devis.Status, next.Status)
	if err := s.exec.Apply(ctx, effects); err != nil {
		return transport.DevisResponse{}, err
	}
	return toDevisResponse(saved), nil
}

// SetFactureReglee flags an accepted devis as invoiced and paid.
func (s *Service) SetFactureReglee(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID, req transport.SetFactureRegleeRequest) (transport.DevisResponse, error) {
	devis, _, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return transport.DevisResponse{}, err
	}
	if req.FactureReglee && !domain.CanMarkFactureReglee(devis.Status) {
		return transport.DevisResponse{}, apperr.Validation("only an accepted devis can be marked as paid")
	}

	var saved repository.Devis
	err = s.write(ctx, "save_devis_state", func(ctx context.Context) error {
		var err error
		saved, err = s.repo.SaveDevisState(ctx, devis.ID, domain.DevisState{Status: devis.Status, FactureReglee: req.FactureReglee})
		return err
	})
	if err != nil {
		return transport.DevisResponse{}, err
	}
	return toDevisResponse(saved), nil
}

func (s *Service) DeleteDevis(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID) error {
	devis, _, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return err
	}
	if err := s.write(ctx, "delete_devis", func(ctx context.Context) error {
		return s.repo.DeleteDevis(ctx, devis.ID)
	}); err != nil {
		return err
	}

	if devis.DocumentKey != nil && s.docs != nil {
		if err := s.docs.DeleteObject(ctx, *devis.DocumentKey); err != nil {
			s.log.SideEffectFailed("delete_devis_document", devis.ID.String(), err)
		}
	}
	return nil
}

// DevisUploadURL presigns an upload for the devis document and records its
// object key. A previous document is replaced.
func (s *Service) DevisUploadURL(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID, req transport.DevisUploadRequest) (transport.PresignedURLResponse, error) {
	if s.docs == nil {
		return transport.PresignedURLResponse{}, apperr.Unavailable("document storage is not configured", nil)
	}
	devis, client, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return transport.PresignedURLResponse{}, err
	}

	presigned, err := s.docs.GenerateUploadURL(ctx, devisFolder+client.Key, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		return transport.PresignedURLResponse{}, err
	}

	if _, err := s.repo.SetDevisDocument(ctx, devis.ID, &presigned.FileKey); err != nil {
		return transport.PresignedURLResponse{}, err
	}
	if devis.DocumentKey != nil && *devis.DocumentKey != presigned.FileKey {
		if err := s.docs.DeleteObject(ctx, *devis.DocumentKey); err != nil {
			s.log.SideEffectFailed("delete_devis_document", devis.ID.String(), err)
		}
	}
	return toPresignedResponse(presigned.URL, presigned.FileKey, presigned.ExpiresAt), nil
}

func (s *Service) DevisDownloadURL(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID) (transport.PresignedURLResponse, error) {
	if s.docs == nil {
		return transport.PresignedURLResponse{}, apperr.Unavailable("document storage is not configured", nil)
	}
	devis, _, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return transport.PresignedURLResponse{}, err
	}
	if devis.DocumentKey == nil {
		return transport.PresignedURLResponse{}, apperr.NotFound("devis has no document")
	}

	presigned, err := s.docs.GenerateDownloadURL(ctx, *devis.DocumentKey)
	if err != nil {
		return transport.PresignedURLResponse{}, err
	}
	return toPresignedResponse(presigned.URL, presigned.FileKey, presigned.ExpiresAt), nil
}

// DevisDocument is a rendered devis ready to be served.
type DevisDocument struct {
	FileName string
	Content  []byte
}

// RenderDevis prints a devis with the client's payments.
func (s *Service) RenderDevis(ctx context.Context, id httpkit.Identity, key string, devisID uuid.UUID) (DevisDocument, error) {
	devis, client, err := s.loadDevis(ctx, id, key, devisID)
	if err != nil {
		return DevisDocument{}, err
	}
	payments, err := s.repo.ListPayments(ctx, client.Key)
	if err != nil {
		return DevisDocument{}, err
	}

	ref := devisReference(devis.ID)
	data := pdf.DevisData{
		Reference:     ref,
		Title:         devis.Title,
		Status:        string(devis.Status),
		Amount:        devis.Amount,
		FactureReglee: devis.FactureReglee,
		Notes:         devis.Notes,
		CreatedAt:     devis.CreatedAt,
		ClientName:    client.ContactName,
		ClientPhone:   client.Phone,
		ClientEmail:   client.Email,
		ClientCity:    client.City,
		ProjectTitle:  client.Title,
		ProjectType:   client.Type,
		Architect:     client.Architect,
	}
	for _, p := range payments {
		data.Payments = append(data.Payments, pdf.PaymentLine{
			PaidAt:    p.PaidAt,
			Method:    string(p.Method),
			Type:      string(p.Type),
			Reference: p.Reference,
			Amount:    p.Amount,
		})
	}

	content, err := pdf.GenerateDevisPDF(data)
	if err != nil {
		return DevisDocument{}, fmt.Errorf("render devis %s: %w", devis.ID, err)
	}
	return DevisDocument{FileName: "Devis-" + ref + ".pdf", Content: content}, nil
}

func devisReference(id uuid.UUID) string {
	return "D-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// CreatePayment records a payment. Its type is decided from the client's stage
// and payment count; the first deposit of a qualifie client moves it forward.
func (s *Service) CreatePayment(ctx context.Context, id httpkit.Identity, key string, req transport.CreatePaymentRequest) (transport.PaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return transport.PaymentResponse{}, apperr.Validation("amount must be positive")
	}
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	in, err := s.billingContext(ctx, id, client)
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	method := domain.PaymentMethod(req.Method)
	plan := domain.PlanPayment(in, req.Amount, method)

	paidAt := in.Now
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	uid := id.UserID()

	var created repository.Payment
	err = s.write(ctx, "create_payment", func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreatePayment(ctx, repository.CreatePaymentParams{
			ClientKey: client.Key,
			Amount:    req.Amount,
			PaidAt:    paidAt,
			Method:    method,
			Reference: req.Reference,
			Type:      plan.Type,
			Notes:     req.Notes,
			CreatedBy: &uid,
		})
		return err
	})
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	if err := s.exec.Apply(ctx, plan.Effects); err != nil {
		return transport.PaymentResponse{}, err
	}
	return toPaymentResponse(created), nil
}

func (s *Service) ListPayments(ctx context.Context, id httpkit.Identity, key string) ([]transport.PaymentResponse, error) {
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, client.Key)
	if err != nil {
		return nil, err
	}
	return mapSlice(payments, toPaymentResponse), nil
}

// DeletePayment removes a payment. The stage is left where it is.
func (s *Service) DeletePayment(ctx context.Context, id httpkit.Identity, key string, paymentID uuid.UUID) error {
	client, err := s.loadClient(ctx, id, key)
	if err != nil {
		return err
	}
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.ClientKey != client.Key {
		return repository.ErrPaymentNotFound
	}
	if err := s.write(ctx, "delete_payment", func(ctx context.Context) error {
		return s.repo.DeletePayment(ctx, payment.ID)
	}); err != nil {
		return err
	}

	actor := actorOf(id)
	_ = s.exec.Apply(ctx, []domain.Effect{domain.AppendHistorique{Entry: domain.HistoriqueEntry{
		ClientKey:   client.Key,
		Type:        domain.HistoriquePayment,
		Description: "Paiement supprimé (" + string(payment.Type) + ")",
		OldValue:    payment.Amount.StringFixed(2),
		Author:      actor.Name,
		At:          s.now(),
	}}})
	return nil
}

func totalOf(payments []repository.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

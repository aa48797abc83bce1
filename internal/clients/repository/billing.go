package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrDevisNotFound   = apperr.NotFound("devis not found")
	ErrPaymentNotFound = apperr.NotFound("payment not found")
)

type Devis struct {
	ID            uuid.UUID
	ClientKey     string
	Title         string
	Amount        decimal.Decimal
	Status        domain.DevisStatus
	FactureReglee bool
	DocumentKey   *string
	Notes         string
	CreatedBy     *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateDevisParams struct {
	ClientKey   string
	Title       string
	Amount      decimal.Decimal
	DocumentKey *string
	Notes       string
	CreatedBy   *uuid.UUID
}

type Payment struct {
	ID        uuid.UUID
	ClientKey string
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    domain.PaymentMethod
	Reference string
	Type      domain.PaymentType
	Notes     string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
}

type CreatePaymentParams struct {
	ClientKey string
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    domain.PaymentMethod
	Reference string
	Type      domain.PaymentType
	Notes     string
	CreatedBy *uuid.UUID
}

const devisColumns = `id, client_key, title, amount, statut, facture_reglee, document_key, notes, created_by, created_at, updated_at`

func scanDevis(row pgx.Row) (Devis, error) {
	var d Devis
	err := row.Scan(&d.ID, &d.ClientKey, &d.Title, &d.Amount, &d.Status, &d.FactureReglee, &d.DocumentKey, &d.Notes,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Devis{}, ErrDevisNotFound
	}
	return d, err
}

func (r *Repository) CreateDevis(ctx context.Context, p CreateDevisParams) (Devis, error) {
	d, err := scanDevis(r.pool.QueryRow(ctx, `
		INSERT INTO devis (client_key, title, amount, statut, document_key, notes, created_by)
		VALUES ($1, $2, $3, 'en_attente', $4, $5, $6)
		RETURNING `+devisColumns,
		p.ClientKey, p.Title, p.Amount, p.DocumentKey, p.Notes, p.CreatedBy))
	if err != nil {
		return Devis{}, fmt.Errorf("failed to create devis: %w", err)
	}
	return d, nil
}

func (r *Repository) GetDevis(ctx context.Context, id uuid.UUID) (Devis, error) {
	return scanDevis(r.pool.QueryRow(ctx, `SELECT `+devisColumns+` FROM devis WHERE id = $1`, id))
}

func (r *Repository) ListDevis(ctx context.Context, clientKey string) ([]Devis, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+devisColumns+` FROM devis WHERE client_key = $1 ORDER BY created_at DESC`, clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list devis: %w", err)
	}
	defer rows.Close()

	out := make([]Devis, 0)
	for rows.Next() {
		d, err := scanDevis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveDevisState stores status and facture_reglee together.
func (r *Repository) SaveDevisState(ctx context.Context, id uuid.UUID, s domain.DevisState) (Devis, error) {
	return scanDevis(r.pool.QueryRow(ctx, `
		UPDATE devis SET statut = $2, facture_reglee = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+devisColumns, id, s.Status, s.FactureReglee))
}

func (r *Repository) SetDevisDocument(ctx context.Context, id uuid.UUID, documentKey *string) (Devis, error) {
	return scanDevis(r.pool.QueryRow(ctx, `
		UPDATE devis SET document_key = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+devisColumns, id, documentKey))
}

func (r *Repository) DeleteDevis(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM devis WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete devis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDevisNotFound
	}
	return nil
}

const paymentColumns = `id, client_key, amount, paid_at, method, reference, type, notes, created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ClientKey, &p.Amount, &p.PaidAt, &p.Method, &p.Reference, &p.Type, &p.Notes, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func (r *Repository) CreatePayment(ctx context.Context, p CreatePaymentParams) (Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx, `
		INSERT INTO payments (client_key, amount, paid_at, method, reference, type, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		p.ClientKey, p.Amount, p.PaidAt, p.Method, p.Reference, p.Type, p.Notes, p.CreatedBy))
	if err != nil {
		return Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *Repository) ListPayments(ctx context.Context, clientKey string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE client_key = $1 ORDER BY paid_at DESC`, clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	out := make([]Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CountPayments(ctx context.Context, clientKey string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE client_key = $1`, clientKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}

func (r *Repository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

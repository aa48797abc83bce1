package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = apperr.NotFound("lead not found")

// ErrNotesPending is returned by DeleteConverted while a lead note has no
// copy on the contact.
var ErrNotesPending = apperr.Conflict("lead notes are not copied to the contact yet")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	Email        string
	City         string
	PropertyType string
	Source       string
	Status       string
	AssignedTo   string
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (l Lead) Owned() access.Owned {
	return access.Owned{CreatedBy: l.CreatedBy, AssignedTo: l.AssignedTo}
}

var scopeColumns = access.Columns{CreatedBy: "l.created_by", AssignedTo: "l.assigned_to"}

type CreateParams struct {
	Name         string
	Phone        string
	Email        string
	City         string
	PropertyType string
	Source       string
	Status       string
	AssignedTo   string
	CreatedBy    *uuid.UUID
}

type UpdateParams struct {
	Name         *string
	Phone        *string
	Email        *string
	City         *string
	PropertyType *string
	Source       *string
	Status       *string
	AssignedTo   *string
}

type ListParams struct {
	Scope      access.Scope
	Search     string
	Status     string
	Source     string
	AssignedTo string
	Limit      int
	Offset     int
}

const leadColumns = `l.id, l.name, l.phone, l.email, l.city, l.property_type, l.source, l.status, l.assigned_to, l.created_by, l.created_at, l.updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.City, &l.PropertyType, &l.Source, &l.Status,
		&l.AssignedTo, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads AS l (name, phone, email, city, property_type, source, status, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns,
		p.Name, p.Phone, p.Email, p.City, p.PropertyType, p.Source, p.Status, p.AssignedTo, p.CreatedBy))
	if err != nil {
		return Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.id = $1`, id))
}

// ExistsByPhone reports whether a lead or a contact already uses the phone.
func (r *Repository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM leads WHERE phone = $1)
			OR EXISTS (SELECT 1 FROM contacts WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}
	return exists, nil
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Lead, int, error) {
	scopeClause, args := p.Scope.Where(scopeColumns, 1)
	clauses := []string{scopeClause}
	argIdx := len(args) + 1

	if search := strings.TrimSpace(p.Search); search != "" {
		clauses = append(clauses, fmt.Sprintf("(l.name ILIKE $%d OR l.phone ILIKE $%d OR l.city ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}
	if p.Status != "" {
		clauses = append(clauses, fmt.Sprintf("l.status = $%d", argIdx))
		args = append(args, p.Status)
		argIdx++
	}
	if p.Source != "" {
		clauses = append(clauses, fmt.Sprintf("l.source = $%d", argIdx))
		args = append(args, p.Source)
		argIdx++
	}
	if p.AssignedTo != "" {
		clauses = append(clauses, fmt.Sprintf("lower(l.assigned_to) = lower($%d)", argIdx))
		args = append(args, p.AssignedTo)
		argIdx++
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads l WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM leads l
		WHERE %s
		ORDER BY l.created_at DESC
		LIMIT $%d OFFSET $%d`, leadColumns, where, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads l SET
			name = COALESCE($2, l.name),
			phone = COALESCE($3, l.phone),
			email = COALESCE($4, l.email),
			city = COALESCE($5, l.city),
			property_type = COALESCE($6, l.property_type),
			source = COALESCE($7, l.source),
			status = COALESCE($8, l.status),
			assigned_to = COALESCE($9, l.assigned_to),
			updated_at = now()
		WHERE l.id = $1
		RETURNING `+leadColumns,
		id, p.Name, p.Phone, p.Email, p.City, p.PropertyType, p.Source, p.Status, p.AssignedTo))
}

// Delete removes a lead together with its notes.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE entity_type = $1 AND entity_id = $2`, entityLead, id); err != nil {
		return fmt.Errorf("failed to delete lead notes: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeleteConverted removes a converted lead and its notes, but only once every
// note has a copy on the contact. Otherwise nothing is deleted and
// ErrNotesPending is returned.
func (r *Repository) DeleteConverted(ctx context.Context, leadID, contactID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock lead: %w", err)
	}

	var pending int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM notes n
		WHERE n.entity_type = $1 AND n.entity_id = $2
			AND NOT EXISTS (
				SELECT 1 FROM notes c
				WHERE c.entity_type = 'contact' AND c.entity_id = $3 AND c.copied_from = n.id
			)`, entityLead, leadID, contactID).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to check copied notes: %w", err)
	}
	if pending > 0 {
		return ErrNotesPending
	}

	if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE entity_type = $1 AND entity_id = $2`, entityLead, leadID); err != nil {
		return fmt.Errorf("failed to delete lead notes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM leads WHERE id = $1`, leadID); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return tx.Commit(ctx)
}

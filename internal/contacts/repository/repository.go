package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = apperr.NotFound("contact not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Contact struct {
	ID             uuid.UUID
	LeadID         *uuid.UUID
	Name           string
	Phone          string
	Email          string
	City           string
	Source         string
	Tag            domain.ContactTag
	Status         domain.Stage
	LeadStatus     domain.Stage
	Architect      string
	ClientSince    *time.Time
	CreatedBy      *uuid.UUID
	InvitedUserIDs []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// State is the engine view of the contact.
func (c Contact) State() domain.Contact {
	return domain.Contact{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		City:        c.City,
		Tag:         c.Tag,
		Status:      c.Status,
		LeadStatus:  c.LeadStatus,
		Architect:   c.Architect,
		ClientSince: c.ClientSince,
	}
}

func (c Contact) Owned() access.Owned {
	return access.Owned{CreatedBy: c.CreatedBy, AssignedTo: c.Architect, Invited: c.InvitedUserIDs}
}

// ScopeColumns are the ownership columns of the contacts table aliased as c.
var ScopeColumns = access.Columns{CreatedBy: "c.created_by", AssignedTo: "c.architect", Invited: "c.invited_user_ids"}

type CreateContactParams struct {
	Contact   domain.Contact
	LeadID    *uuid.UUID
	Source    string
	CreatedBy *uuid.UUID
	Invited   []uuid.UUID
}

type UpdateContactParams struct {
	Name           *string
	Phone          *string
	Email          *string
	City           *string
	Architect      *string
	InvitedUserIDs []uuid.UUID
}

type ListParams struct {
	Scope  access.Scope
	Search string
	Tag    string
	Status string
	Limit  int
	Offset int
}

const contactColumns = `c.id, c.lead_id, c.name, c.phone, c.email, c.city, c.source, c.tag, c.status, c.lead_status,
	c.architect, c.client_since, c.created_by, c.invited_user_ids, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.LeadID, &c.Name, &c.Phone, &c.Email, &c.City, &c.Source, &c.Tag, &c.Status, &c.LeadStatus,
		&c.Architect, &c.ClientSince, &c.CreatedBy, &c.InvitedUserIDs, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

// CreateContact inserts a contact. A second contact for the same lead is a conflict.
func (r *Repository) CreateContact(ctx context.Context, p CreateContactParams) (Contact, error) {
	invited := p.Invited
	if invited == nil {
		invited = []uuid.UUID{}
	}
	c := p.Contact
	contact, err := scanContact(r.pool.QueryRow(ctx, `
		INSERT INTO contacts AS c (id, lead_id, name, phone, email, city, source, tag, status, lead_status, architect, client_since, created_by, invited_user_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+contactColumns,
		c.ID, p.LeadID, c.Name, c.Phone, c.Email, c.City, p.Source, c.Tag, c.Status, c.LeadStatus, c.Architect, c.ClientSince, p.CreatedBy, invited))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Contact{}, apperr.Conflict("contact already exists for this lead")
		}
		return Contact{}, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts c WHERE c.id = $1`, id))
}

func (r *Repository) FindByLeadID(ctx context.Context, leadID uuid.UUID) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts c WHERE c.lead_id = $1`, leadID))
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Contact, int, error) {
	where, args := buildContactListWhere(p)
	argIdx := len(args) + 1

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM contacts c
		WHERE %s
		ORDER BY c.created_at DESC
		LIMIT $%d OFFSET $%d`, contactColumns, where, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

func buildContactListWhere(p ListParams) (string, []any) {
	scopeClause, args := p.Scope.Where(ScopeColumns, 1)
	clauses := []string{scopeClause}
	argIdx := len(args) + 1

	if search := strings.TrimSpace(p.Search); search != "" {
		clauses = append(clauses, fmt.Sprintf("(c.name ILIKE $%d OR c.phone ILIKE $%d OR c.city ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}
	if p.Tag != "" {
		clauses = append(clauses, fmt.Sprintf("c.tag = $%d", argIdx))
		args = append(args, p.Tag)
		argIdx++
	}
	if p.Status != "" {
		clauses = append(clauses, fmt.Sprintf("c.status = $%d", argIdx))
		args = append(args, p.Status)
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateContactParams) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		UPDATE contacts c SET
			name = COALESCE($2, c.name),
			phone = COALESCE($3, c.phone),
			email = COALESCE($4, c.email),
			city = COALESCE($5, c.city),
			architect = COALESCE($6, c.architect),
			invited_user_ids = COALESCE($7, c.invited_user_ids),
			updated_at = now()
		WHERE c.id = $1
		RETURNING `+contactColumns,
		id, p.Name, p.Phone, p.Email, p.City, p.Architect, p.InvitedUserIDs))
}

// Delete removes a contact; its opportunities, notes and timeline cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListContactIDsWithOpportunities(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT contact_id FROM opportunities`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

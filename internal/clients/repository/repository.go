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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = apperr.NotFound("client not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Client is one row of the merged client listing, whatever its origin.
type Client struct {
	Key           string
	Kind          domain.ClientKind
	ContactID     *uuid.UUID
	OpportunityID *uuid.UUID
	ContactName   string
	Phone         string
	Email         string
	City          string
	Title         string
	Type          string
	Budget        decimal.NullDecimal
	Architect     string
	Stage         domain.Stage
	CreatedBy     *uuid.UUID
	Invited       []uuid.UUID
	CreatedAt     time.Time
}

func (c Client) Record() domain.ClientRecord {
	return domain.ClientRecord{
		Key:           c.Key,
		Kind:          c.Kind,
		ContactID:     c.ContactID,
		OpportunityID: c.OpportunityID,
		Stage:         c.Stage,
	}
}

func (c Client) Owned() access.Owned {
	return access.Owned{CreatedBy: c.CreatedBy, AssignedTo: c.Architect, Invited: c.Invited}
}

func (c Client) DedupeKey() domain.DedupeKey {
	return domain.DedupeKey{
		OpportunityID: c.OpportunityID,
		ContactID:     c.ContactID,
		ContactName:   c.ContactName,
		Title:         c.Title,
		Budget:        c.Budget,
	}
}

type CreateLegacyParams struct {
	Key         string
	ContactName string
	Phone       string
	Email       string
	City        string
	Title       string
	Type        string
	Budget      decimal.NullDecimal
	Architect   string
	Stage       domain.Stage
	CreatedBy   *uuid.UUID
}

const projectColumns = `cp.key, cp.origin, cp.contact_id, cp.opportunity_id, cp.contact_name, cp.phone, cp.email, cp.city,
	cp.title, cp.type, cp.budget, cp.architect, cp.statut_projet, COALESCE(cp.created_by, c.created_by),
	COALESCE(c.invited_user_ids, '{}'), cp.created_at`

var projectScope = access.Columns{
	CreatedBy:  "COALESCE(cp.created_by, c.created_by)",
	AssignedTo: "cp.architect",
	Invited:    "COALESCE(c.invited_user_ids, '{}')",
}

func scanProject(row pgx.Row) (Client, error) {
	var c Client
	var origin string
	err := row.Scan(&c.Key, &origin, &c.ContactID, &c.OpportunityID, &c.ContactName, &c.Phone, &c.Email, &c.City,
		&c.Title, &c.Type, &c.Budget, &c.Architect, &c.Stage, &c.CreatedBy, &c.Invited, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	c.Kind = domain.ClientKind(origin)
	return c, err
}

// Resolve finds the client record behind a key: a client_projects row (legacy
// or opportunity mirror) or, for a bare contact id, the contact pseudo-client.
func (r *Repository) Resolve(ctx context.Context, key string) (Client, error) {
	client, err := scanProject(r.pool.QueryRow(ctx, `
		SELECT `+projectColumns+`
		FROM client_projects cp
		LEFT JOIN contacts c ON c.id = cp.contact_id
		WHERE cp.key = $1`, key))
	if err == nil || !errors.Is(err, ErrNotFound) {
		return client, err
	}

	contactID, oppID, ok := domain.SplitClientKey(key)
	switch {
	case !ok:
		return Client{}, ErrNotFound
	case oppID != nil:
		return r.opportunityClient(ctx, contactID, *oppID)
	default:
		return r.contactClient(ctx, contactID)
	}
}

// opportunityClient derives the record of an opportunity whose mirror row is missing.
func (r *Repository) opportunityClient(ctx context.Context, contactID, opportunityID uuid.UUID) (Client, error) {
	rows, err := r.pool.Query(ctx, opportunityClientsQuery+` AND o.id = $2 AND c.id = $1`, contactID, opportunityID)
	if err != nil {
		return Client{}, fmt.Errorf("failed to resolve opportunity client: %w", err)
	}
	clients, err := collectOpportunityClients(rows)
	if err != nil {
		return Client{}, err
	}
	if len(clients) == 0 {
		return Client{}, ErrNotFound
	}
	return clients[0], nil
}

func (r *Repository) contactClient(ctx context.Context, contactID uuid.UUID) (Client, error) {
	c := Client{Kind: domain.ClientContact}
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, city, architect, status, created_by, invited_user_ids, created_at
		FROM contacts WHERE id = $1`, contactID).
		Scan(&id, &c.ContactName, &c.Phone, &c.Email, &c.City, &c.Architect, &c.Stage, &c.CreatedBy, &c.Invited, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("failed to resolve contact client: %w", err)
	}
	c.Key = id.String()
	c.ContactID = &id
	return c, nil
}

// ListProjects returns the legacy and mirror rows visible to scope, newest first.
func (r *Repository) ListProjects(ctx context.Context, scope access.Scope, search string) ([]Client, error) {
	where, args := scope.Where(projectScope, 1)
	if s := strings.TrimSpace(search); s != "" {
		where += fmt.Sprintf(" AND (cp.contact_name ILIKE $%d OR cp.title ILIKE $%d OR cp.city ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+s+"%")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+projectColumns+`
		FROM client_projects cp
		LEFT JOIN contacts c ON c.id = cp.contact_id
		WHERE `+where+`
		ORDER BY cp.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list client projects: %w", err)
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		c, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var contactScope = access.Columns{CreatedBy: "c.created_by", AssignedTo: "c.architect", Invited: "c.invited_user_ids"}

// ListOpportunityClients derives a pseudo-client from every opportunity of a
// client-tagged contact. Rows already mirrored are dropped later by dedupe.
func (r *Repository) ListOpportunityClients(ctx context.Context, scope access.Scope, search string) ([]Client, error) {
	where, args := scope.Where(contactScope, 1)
	if s := strings.TrimSpace(search); s != "" {
		where += fmt.Sprintf(" AND (c.name ILIKE $%d OR o.title ILIKE $%d OR c.city ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+s+"%")
	}

	rows, err := r.pool.Query(ctx, opportunityClientsQuery+` AND c.tag = 'client' AND `+where+`
		ORDER BY o.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunity clients: %w", err)
	}
	return collectOpportunityClients(rows)
}

const opportunityClientsQuery = `
	SELECT c.id, o.id, c.name, c.phone, c.email, c.city, o.title, o.type, o.budget,
		COALESCE(NULLIF(o.architect, ''), c.architect), o.status, o.pipeline_stage,
		c.created_by, c.invited_user_ids, o.created_at
	FROM opportunities o
	JOIN contacts c ON c.id = o.contact_id
	WHERE TRUE`

func collectOpportunityClients(rows pgx.Rows) ([]Client, error) {
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		var (
			c             Client
			contactID, id uuid.UUID
			status, stage string
		)
		if err := rows.Scan(&contactID, &id, &c.ContactName, &c.Phone, &c.Email, &c.City, &c.Title, &c.Type, &c.Budget,
			&c.Architect, &status, &stage, &c.CreatedBy, &c.Invited, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = domain.ClientOpportunity
		c.Key = domain.OpportunityClientKey(contactID, id)
		c.ContactID = &contactID
		c.OpportunityID = &id
		c.Stage = domain.MirrorStageOf(domain.Opportunity{
			Status: domain.OpportunityStatus(status),
			Stage:  domain.PipelineStage(stage),
		})
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListContactClients returns client-tagged contacts without any opportunity.
func (r *Repository) ListContactClients(ctx context.Context, scope access.Scope, search string) ([]Client, error) {
	where, args := scope.Where(contactScope, 1)
	if s := strings.TrimSpace(search); s != "" {
		where += fmt.Sprintf(" AND (c.name ILIKE $%d OR c.city ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+s+"%")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, c.email, c.city, c.architect, c.status, c.created_by, c.invited_user_ids, c.created_at
		FROM contacts c
		WHERE c.tag = 'client'
			AND NOT EXISTS (SELECT 1 FROM opportunities o WHERE o.contact_id = c.id)
			AND `+where+`
		ORDER BY c.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact clients: %w", err)
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		c := Client{Kind: domain.ClientContact}
		var id uuid.UUID
		if err := rows.Scan(&id, &c.ContactName, &c.Phone, &c.Email, &c.City, &c.Architect, &c.Stage,
			&c.CreatedBy, &c.Invited, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Key = id.String()
		c.ContactID = &id
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateLegacy inserts a standalone client and opens its first stage interval.
func (r *Repository) CreateLegacy(ctx context.Context, p CreateLegacyParams) (Client, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Client{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := Client{Kind: domain.ClientLegacy, Key: p.Key}
	err = tx.QueryRow(ctx, `
		INSERT INTO client_projects (key, origin, contact_name, phone, email, city, title, type, budget, architect, statut_projet, created_by)
		VALUES ($1, 'legacy', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING contact_name, phone, email, city, title, type, budget, architect, statut_projet, created_by, created_at`,
		p.Key, p.ContactName, p.Phone, p.Email, p.City, p.Title, p.Type, p.Budget, p.Architect, p.Stage, p.CreatedBy).
		Scan(&c.ContactName, &c.Phone, &c.Email, &c.City, &c.Title, &c.Type, &c.Budget, &c.Architect, &c.Stage, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("failed to create client: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO client_stage_history (client_key, stage, started_at) VALUES ($1, $2, $3)`,
		p.Key, p.Stage, c.CreatedAt); err != nil {
		return Client{}, fmt.Errorf("failed to open stage interval: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Client{}, fmt.Errorf("failed to commit client: %w", err)
	}
	return c, nil
}

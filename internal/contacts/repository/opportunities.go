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

var ErrOpportunityNotFound = apperr.NotFound("opportunity not found")

type Opportunity struct {
	ID          uuid.UUID
	ContactID   uuid.UUID
	Title       string
	Type        domain.OpportunityType
	Status      domain.OpportunityStatus
	Stage       domain.PipelineStage
	Budget      decimal.NullDecimal
	Architect   string
	Description string
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (o Opportunity) State() domain.Opportunity {
	return domain.Opportunity{
		ID:          o.ID,
		ContactID:   o.ContactID,
		Title:       o.Title,
		Type:        o.Type,
		Status:      o.Status,
		Stage:       o.Stage,
		Budget:      o.Budget,
		Architect:   o.Architect,
		Description: o.Description,
	}
}

const opportunityColumns = `id, contact_id, title, type, status, pipeline_stage, budget, architect, description, created_by, created_at, updated_at`

func scanOpportunity(row rowScanner) (Opportunity, error) {
	var o Opportunity
	err := row.Scan(&o.ID, &o.ContactID, &o.Title, &o.Type, &o.Status, &o.Stage, &o.Budget, &o.Architect, &o.Description,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, ErrOpportunityNotFound
	}
	return o, err
}

func (r *Repository) CreateOpportunity(ctx context.Context, o domain.Opportunity, createdBy *uuid.UUID) (Opportunity, error) {
	opp, err := scanOpportunity(r.pool.QueryRow(ctx, `
		INSERT INTO opportunities (id, contact_id, title, type, status, pipeline_stage, budget, architect, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+opportunityColumns,
		o.ID, o.ContactID, o.Title, o.Type, o.Status, o.Stage, o.Budget, o.Architect, o.Description, createdBy))
	if err != nil {
		return Opportunity{}, fmt.Errorf("failed to create opportunity: %w", err)
	}
	return opp, nil
}

func (r *Repository) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	return scanOpportunity(r.pool.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id))
}

func (r *Repository) ListOpportunities(ctx context.Context, contactID uuid.UUID) ([]Opportunity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE contact_id = $1
		ORDER BY created_at ASC`, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	opps := make([]Opportunity, 0)
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (r *Repository) UpdateOpportunity(ctx context.Context, o domain.Opportunity) (Opportunity, error) {
	return scanOpportunity(r.pool.QueryRow(ctx, `
		UPDATE opportunities SET
			title = $2, type = $3, status = $4, pipeline_stage = $5, budget = $6,
			architect = $7, description = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+opportunityColumns,
		o.ID, o.Title, o.Type, o.Status, o.Stage, o.Budget, o.Architect, o.Description))
}

func (r *Repository) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOpportunityNotFound
	}
	return nil
}

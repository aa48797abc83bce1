package repository

import (
	"context"
	"fmt"
	"time"

	"archi_crm_backend/internal/pipeline"
	"archi_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// SetContactTag stores the tag. client_since is only ever written once.
func (r *Repository) SetContactTag(ctx context.Context, contactID uuid.UUID, tag domain.ContactTag, clientSince *time.Time) error {
	tagRes, err := r.pool.Exec(ctx, `
		UPDATE contacts SET
			tag = $2,
			client_since = COALESCE(client_since, $3),
			updated_at = now()
		WHERE id = $1`, contactID, tag, clientSince)
	if err != nil {
		return fmt.Errorf("failed to set contact tag: %w", err)
	}
	if tagRes.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetContactStatus(ctx context.Context, contactID uuid.UUID, status domain.Stage, leadStatus *domain.Stage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts SET
			status = $2,
			lead_status = COALESCE($3, lead_status),
			updated_at = now()
		WHERE id = $1`, contactID, status, leadStatus)
	if err != nil {
		return fmt.Errorf("failed to set contact status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetOpportunityStage(ctx context.Context, opportunityID uuid.UUID, stage domain.PipelineStage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE opportunities SET pipeline_stage = $2, updated_at = now() WHERE id = $1`, opportunityID, stage)
	if err != nil {
		return fmt.Errorf("failed to set opportunity stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOpportunityNotFound
	}
	return nil
}

func (r *Repository) GetContactState(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	c, err := r.GetByID(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	return c.State(), nil
}

func (r *Repository) ListOpportunityStates(ctx context.Context, contactID uuid.UUID) ([]domain.Opportunity, error) {
	opps, err := r.ListOpportunities(ctx, contactID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Opportunity, len(opps))
	for i, o := range opps {
		out[i] = o.State()
	}
	return out, nil
}

var (
	_ pipeline.ContactGateway = (*Repository)(nil)
	_ pipeline.ContactSource  = (*Repository)(nil)
)

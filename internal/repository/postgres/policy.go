package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

type policyRepository struct {
	BaseRepository
}

func NewPolicyRepository(base BaseRepository) repository.PolicyRepository {
	return &policyRepository{base}
}

func (r *policyRepository) Create(ctx context.Context, policy *model.Policy) error {
	query := `
		INSERT INTO policies (
			id, patient_id, clinic_id, specialty, document_id,
			status, valid_from, valid_until, priority, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	policy.ID = uuid.New()
	policy.CreatedAt = time.Now()
	policy.UpdatedAt = policy.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		policy.ID,
		policy.PatientID,
		policy.ClinicID,
		policy.Specialty,
		policy.DocumentID,
		policy.Status,
		policy.ValidFrom,
		policy.ValidUntil,
		policy.Priority,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable("policy", err)
	}
	return nil
}

func (r *policyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Policy, error) {
	query := `SELECT * FROM policies WHERE id = $1`

	var policy model.Policy
	if err := r.db.GetContext(ctx, &policy, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("policy", err)
		}
		return nil, errors.StoreUnavailable("policy", err)
	}
	return &policy, nil
}

func (r *policyRepository) Update(ctx context.Context, policy *model.Policy) error {
	query := `
		UPDATE policies SET
			status = $1,
			valid_from = $2,
			valid_until = $3,
			priority = $4,
			updated_at = $5
		WHERE id = $6
	`

	policy.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		policy.Status,
		policy.ValidFrom,
		policy.ValidUntil,
		policy.Priority,
		policy.UpdatedAt,
		policy.ID,
	)
	if err != nil {
		return errors.StoreUnavailable("policy", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("policy", nil)
	}
	return nil
}

func (r *policyRepository) FindByPatient(ctx context.Context, patientID string) ([]*model.Policy, error) {
	query := `
		SELECT * FROM policies
		WHERE patient_id = $1
		ORDER BY updated_at DESC
	`

	var policies []*model.Policy
	if err := r.db.SelectContext(ctx, &policies, query, patientID); err != nil {
		return nil, errors.StoreUnavailable("policy", err)
	}
	return policies, nil
}

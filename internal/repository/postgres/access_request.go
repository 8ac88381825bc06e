package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

type accessRequestRepository struct {
	BaseRepository
}

func NewAccessRequestRepository(base BaseRepository) repository.AccessRequestRepository {
	return &accessRequestRepository{base}
}

func (r *accessRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	query := `SELECT * FROM access_requests WHERE id = $1`

	var req model.AccessRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("access request", err)
		}
		return nil, errors.StoreUnavailable("access request", err)
	}
	return &req, nil
}

// CreateOrGetPending relies on the partial unique index on
// (professional_id, patient_id, document_id) WHERE status = 'PENDING'.
// Two concurrent callers both trying to insert end up with the same row:
// the loser of the race reads back the winner's insert.
func (r *accessRequestRepository) CreateOrGetPending(ctx context.Context, req *model.AccessRequest) (*model.AccessRequest, bool, error) {
	query := `
		INSERT INTO access_requests (
			id, professional_id, patient_id, document_id, reason,
			status, requested_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`

	req.ID = uuid.New()
	req.Status = model.AccessRequestStatusPending
	req.RequestedAt = time.Now()
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = req.RequestedAt.Add(model.DefaultAccessRequestTTL)
	}

	result, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.ProfessionalID,
		req.PatientID,
		req.DocumentID,
		req.Reason,
		req.Status,
		req.RequestedAt,
		req.ExpiresAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return r.fetchExistingPending(ctx, req)
		}
		return nil, false, errors.StoreUnavailable("access request", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, errors.StoreUnavailable("access request", err)
	}
	if rows == 0 {
		return r.fetchExistingPending(ctx, req)
	}
	return req, true, nil
}

func (r *accessRequestRepository) fetchExistingPending(ctx context.Context, req *model.AccessRequest) (*model.AccessRequest, bool, error) {
	existing, err := r.FindPending(ctx, req.ProfessionalID, req.PatientID, req.DocumentID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Lost the race and the winner's row is already gone; extremely
		// unlikely, surface as a store failure so the caller retries.
		return nil, false, errors.StoreUnavailable("access request", sql.ErrNoRows)
	}
	return existing, false, nil
}

// Update persists a state transition. The status guard keeps terminal rows
// immutable even if two transitions race.
func (r *accessRequestRepository) Update(ctx context.Context, req *model.AccessRequest) error {
	query := `
		UPDATE access_requests SET
			status = $1,
			responded_at = $2,
			patient_comment = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Status,
		req.RespondedAt,
		req.PatientComment,
		req.ID,
		model.AccessRequestStatusPending,
	)
	if err != nil {
		return errors.StoreUnavailable("access request", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StoreUnavailable("access request", err)
	}
	if rows == 0 {
		return errors.IllegalTransition("request already reached a terminal state")
	}
	return nil
}

func (r *accessRequestRepository) FindPending(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID) (*model.AccessRequest, error) {
	query := `
		SELECT * FROM access_requests
		WHERE professional_id = $1
		AND patient_id = $2
		AND document_id IS NOT DISTINCT FROM $3
		AND status = $4
		ORDER BY requested_at DESC
		LIMIT 1
	`

	var req model.AccessRequest
	err := r.db.GetContext(ctx, &req, query, professionalID, patientID, documentID, model.AccessRequestStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StoreUnavailable("access request", err)
	}
	return &req, nil
}

func (r *accessRequestRepository) FindRecentDenied(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID, since time.Time) (*model.AccessRequest, error) {
	query := `
		SELECT * FROM access_requests
		WHERE professional_id = $1
		AND patient_id = $2
		AND document_id IS NOT DISTINCT FROM $3
		AND status = $4
		AND responded_at >= $5
		ORDER BY responded_at DESC
		LIMIT 1
	`

	var req model.AccessRequest
	err := r.db.GetContext(ctx, &req, query, professionalID, patientID, documentID, model.AccessRequestStatusDenied, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StoreUnavailable("access request", err)
	}
	return &req, nil
}

func (r *accessRequestRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.AccessRequest, error) {
	query := `
		SELECT * FROM access_requests
		WHERE patient_id = $1
		ORDER BY requested_at DESC
	`

	var reqs []*model.AccessRequest
	if err := r.db.SelectContext(ctx, &reqs, query, patientID); err != nil {
		return nil, errors.StoreUnavailable("access request", err)
	}
	return reqs, nil
}

func (r *accessRequestRepository) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*model.AccessRequest, error) {
	query := `
		SELECT * FROM access_requests
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3
	`

	var reqs []*model.AccessRequest
	if err := r.db.SelectContext(ctx, &reqs, query, model.AccessRequestStatusPending, now, limit); err != nil {
		return nil, errors.StoreUnavailable("access request", err)
	}
	return reqs, nil
}

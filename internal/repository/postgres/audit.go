package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	query := `
		INSERT INTO audit_events (
			id, event_type, actor_id, actor_type, resource_type,
			resource_id, outcome, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.ActorID,
		event.ActorType,
		event.ResourceType,
		event.ResourceID,
		event.Outcome,
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable("audit", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error) {
	query := `SELECT * FROM audit_events WHERE 1=1`
	args := []interface{}{}

	if v, ok := filters["actor_id"]; ok {
		query += fmt.Sprintf(" AND actor_id = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["actor_type"]; ok {
		query += fmt.Sprintf(" AND actor_type = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["event_type"]; ok {
		query += fmt.Sprintf(" AND event_type = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["resource_type"]; ok {
		query += fmt.Sprintf(" AND resource_type = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["resource_id"]; ok {
		query += fmt.Sprintf(" AND resource_id = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["outcome"]; ok {
		query += fmt.Sprintf(" AND outcome = $%d", len(args)+1)
		args = append(args, v)
	}
	if v, ok := filters["since"]; ok {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, v)
	}

	query += " ORDER BY created_at DESC LIMIT 500"

	var events []*model.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, errors.StoreUnavailable("audit", err)
	}
	return events, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.StoreUnavailable("audit", err)
	}
	return result.RowsAffected()
}

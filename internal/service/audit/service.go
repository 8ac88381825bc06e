package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
)

// Sink is the fixed interface through which the core reports every decision
// and retrieval outcome.
type Sink interface {
	LogEvent(ctx context.Context, eventType, actorID, actorType, resourceType, resourceID, outcome string, details map[string]interface{}) error
}

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// LogEvent persists one audit event.
func (s *Service) LogEvent(ctx context.Context, eventType, actorID, actorType, resourceType, resourceID, outcome string, details map[string]interface{}) error {
	var raw json.RawMessage
	if details != nil {
		var err error
		raw, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}

	event := &model.AuditEvent{
		ID:           uuid.New(),
		EventType:    eventType,
		ActorID:      actorID,
		ActorType:    actorType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Outcome:      outcome,
		Details:      raw,
		CreatedAt:    time.Now(),
	}

	return s.repo.Create(ctx, event)
}

func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteBefore(ctx, before)
}

package accessrequest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
)

// Service drives the pending-approval workflow: PENDING is the only live
// state, APPROVED, DENIED and EXPIRED are terminal and immutable.
type Service struct {
	repo    repository.AccessRequestRepository
	outbox  repository.OutboxRepository
	auditor audit.Sink
	metrics *metrics.Metrics
	logger  *logger.Logger
	ttl     time.Duration
}

func NewService(repo repository.AccessRequestRepository, outbox repository.OutboxRepository, auditor audit.Sink, m *metrics.Metrics, log *logger.Logger, ttl time.Duration) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	if ttl <= 0 {
		ttl = model.DefaultAccessRequestTTL
	}
	return &Service{
		repo:    repo,
		outbox:  outbox,
		auditor: auditor,
		metrics: m,
		logger:  log.With("accessrequest"),
		ttl:     ttl,
	}
}

// Create registers a pending request for patient approval. It is idempotent:
// repeated calls for the same professional, patient and document scope
// return the existing pending request instead of stacking duplicates.
func (s *Service) Create(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID, reason string) (*model.AccessRequest, error) {
	if professionalID == "" {
		return nil, errors.Validation("professional id is required", nil)
	}
	if patientID == "" {
		return nil, errors.Validation("patient id is required", nil)
	}

	existing, err := s.repo.FindPending(ctx, professionalID, patientID, documentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsOverdue(time.Now()) {
			return existing, nil
		}
		// The matching pending request sat past its deadline; close it out
		// so a fresh one can take its place.
		if err := s.expire(ctx, existing); err != nil {
			return nil, err
		}
	}

	req := &model.AccessRequest{
		ProfessionalID: professionalID,
		PatientID:      patientID,
		DocumentID:     documentID,
		Reason:         reason,
		ExpiresAt:      time.Now().Add(s.ttl),
	}

	req, created, err := s.repo.CreateOrGetPending(ctx, req)
	if err != nil {
		return nil, err
	}
	if !created {
		return req, nil
	}

	s.auditor.LogEvent(ctx, model.AuditEventRequestCreated,
		professionalID, model.AuditActorProfessional,
		model.AuditResourceAccessRequest, req.ID.String(),
		string(req.Status), map[string]interface{}{
			"patient_id": patientID,
			"expires_at": req.ExpiresAt,
		})
	s.publish(ctx, model.EventAccessRequestCreated, req)
	if s.metrics != nil {
		s.metrics.PendingRequests.Inc()
		s.metrics.RequestTransitions.WithLabelValues(string(model.AccessRequestStatusPending)).Inc()
	}
	return req, nil
}

// Get returns a request, lazily expiring it when read past its deadline.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsOverdue(time.Now()) {
		if err := s.expire(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Approve transitions a pending, unexpired request to APPROVED.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, patientComment string) (*model.AccessRequest, error) {
	return s.respond(ctx, id, model.AccessRequestStatusApproved, patientComment)
}

// Deny transitions a pending, unexpired request to DENIED.
func (s *Service) Deny(ctx context.Context, id uuid.UUID, patientComment string) (*model.AccessRequest, error) {
	return s.respond(ctx, id, model.AccessRequestStatusDenied, patientComment)
}

func (s *Service) respond(ctx context.Context, id uuid.UUID, status model.AccessRequestStatus, patientComment string) (*model.AccessRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if req.IsOverdue(now) {
		if err := s.expire(ctx, req); err != nil {
			return nil, err
		}
		return nil, errors.IllegalTransition("request expired before the patient responded")
	}
	if req.IsTerminal() {
		return nil, errors.IllegalTransition("request already reached a terminal state")
	}

	req.Status = status
	req.RespondedAt = &now
	if patientComment != "" {
		req.PatientComment = &patientComment
	}

	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	eventType := model.AuditEventRequestApproved
	outboxType := model.EventAccessRequestApproved
	if status == model.AccessRequestStatusDenied {
		eventType = model.AuditEventRequestDenied
		outboxType = model.EventAccessRequestDenied
	}

	s.auditor.LogEvent(ctx, eventType,
		req.PatientID, model.AuditActorPatient,
		model.AuditResourceAccessRequest, req.ID.String(),
		string(status), map[string]interface{}{
			"professional_id": req.ProfessionalID,
		})
	s.publish(ctx, outboxType, req)
	if s.metrics != nil {
		s.metrics.PendingRequests.Dec()
		s.metrics.RequestTransitions.WithLabelValues(string(status)).Inc()
	}
	return req, nil
}

// Expire marks an overdue pending request EXPIRED. Calling it on a request
// that is not pending, or not yet past its deadline, is an illegal
// transition.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, errors.IllegalTransition("request already reached a terminal state")
	}
	if !req.IsOverdue(time.Now()) {
		return nil, errors.IllegalTransition("request has not passed its deadline")
	}
	if err := s.expire(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListByPatient returns a patient's requests, lazily expiring overdue ones.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*model.AccessRequest, error) {
	reqs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, req := range reqs {
		if req.IsOverdue(now) {
			if err := s.expire(ctx, req); err != nil {
				return nil, err
			}
		}
	}
	return reqs, nil
}

// ExpireOverdue sweeps overdue pending requests in batches. Used by the
// background worker; observable behavior matches lazy expiry.
func (s *Service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.repo.ListOverduePending(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, req := range overdue {
		if err := s.expire(ctx, req); err != nil {
			s.logger.Error(err, "failed to expire request", "request_id", req.ID.String())
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expire(ctx context.Context, req *model.AccessRequest) error {
	req.Status = model.AccessRequestStatusExpired
	if err := s.repo.Update(ctx, req); err != nil {
		// Another reader won the expiry race; the row is already terminal.
		if errors.Is(err, errors.ErrIllegalTransition) {
			return nil
		}
		return err
	}

	s.auditor.LogEvent(ctx, model.AuditEventRequestExpired,
		"system", model.AuditActorSystem,
		model.AuditResourceAccessRequest, req.ID.String(),
		string(model.AccessRequestStatusExpired), nil)
	s.publish(ctx, model.EventAccessRequestExpired, req)
	if s.metrics != nil {
		s.metrics.PendingRequests.Dec()
		s.metrics.RequestTransitions.WithLabelValues(string(model.AccessRequestStatusExpired)).Inc()
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, req *model.AccessRequest) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload", "request_id", req.ID.String())
		return
	}
	event := &model.OutboxEvent{
		EventType:   eventType,
		AggregateID: req.ID.String(),
		Payload:     payload,
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to enqueue outbox event", "event_type", eventType)
	}
}

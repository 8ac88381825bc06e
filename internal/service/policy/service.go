package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

// Service manages the lifecycle of patient-authored policies. Policies are
// only ever status-transitioned, never deleted.
type Service struct {
	repo    repository.PolicyRepository
	auditor audit.Sink
}

func NewService(repo repository.PolicyRepository, auditor audit.Sink) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) CreatePolicy(ctx context.Context, policy *model.Policy) error {
	if err := s.validatePolicy(policy); err != nil {
		return err
	}

	if policy.Status == "" {
		policy.Status = model.PolicyStatusGranted
	}

	if err := s.repo.Create(ctx, policy); err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	s.auditor.LogEvent(ctx, model.AuditEventPolicyCreated,
		policy.PatientID, model.AuditActorPatient,
		model.AuditResourcePolicy, policy.ID.String(),
		string(policy.Status), map[string]interface{}{
			"clinic_id": policy.ClinicID,
			"specialty": string(policy.Specialty),
		})
	return nil
}

// RevokePolicy transitions a policy to REVOKED. Only the owning patient may
// revoke.
func (s *Service) RevokePolicy(ctx context.Context, id uuid.UUID, patientID string) error {
	policy, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if policy.PatientID != patientID {
		return errors.NotFound("policy", nil)
	}
	if policy.Status == model.PolicyStatusRevoked {
		return nil
	}

	policy.Status = model.PolicyStatusRevoked
	if err := s.repo.Update(ctx, policy); err != nil {
		return fmt.Errorf("failed to revoke policy: %w", err)
	}

	s.auditor.LogEvent(ctx, model.AuditEventPolicyRevoked,
		patientID, model.AuditActorPatient,
		model.AuditResourcePolicy, id.String(),
		string(model.PolicyStatusRevoked), nil)
	return nil
}

// UpdateValidity changes a policy's validity window.
func (s *Service) UpdateValidity(ctx context.Context, id uuid.UUID, patientID string, validFrom, validUntil *time.Time) error {
	policy, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if policy.PatientID != patientID {
		return errors.NotFound("policy", nil)
	}
	if validFrom != nil && validUntil != nil && validUntil.Before(*validFrom) {
		return errors.Validation("valid_until precedes valid_from", nil)
	}

	policy.ValidFrom = validFrom
	policy.ValidUntil = validUntil
	if err := s.repo.Update(ctx, policy); err != nil {
		return fmt.Errorf("failed to update policy validity: %w", err)
	}

	s.auditor.LogEvent(ctx, model.AuditEventPolicyUpdated,
		patientID, model.AuditActorPatient,
		model.AuditResourcePolicy, id.String(),
		string(policy.Status), nil)
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*model.Policy, error) {
	if patientID == "" {
		return nil, errors.Validation("patient id is required", nil)
	}
	return s.repo.FindByPatient(ctx, patientID)
}

func (s *Service) validatePolicy(policy *model.Policy) error {
	if policy.PatientID == "" {
		return errors.Validation("patient id is required", nil)
	}
	if policy.ClinicID == "" {
		return errors.Validation("clinic id is required", nil)
	}
	if !policy.Specialty.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown specialty %q", policy.Specialty), nil)
	}
	if policy.ValidFrom != nil && policy.ValidUntil != nil && policy.ValidUntil.Before(*policy.ValidFrom) {
		return errors.Validation("valid_until precedes valid_from", nil)
	}
	switch policy.Status {
	case "", model.PolicyStatusGranted, model.PolicyStatusDenied, model.PolicyStatusPending:
	default:
		return errors.Validation(fmt.Sprintf("invalid policy status %q", policy.Status), nil)
	}
	return nil
}

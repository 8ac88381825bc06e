package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
)

// DefaultDenialLookback is how far back a terminal DENIED request keeps
// overriding grants for the same professional, patient and scope.
const DefaultDenialLookback = 30 * 24 * time.Hour

const (
	ReasonNoApplicablePolicy = "no applicable policy"
	ReasonGrantedByPolicy    = "granted by patient policy"
	ReasonDeniedByPolicy     = "explicitly denied by patient policy"
	ReasonDeniedByPatient    = "access recently denied by patient"
)

// EvaluateRequest carries everything needed for one access decision. It is
// constructed fully validated in one step; Engine.Evaluate rejects it before
// touching any store if a required field is missing.
type EvaluateRequest struct {
	ProfessionalID string
	PatientID      string
	ClinicID       string
	Specialty      model.Specialty
	DocumentID     *uuid.UUID
	Reason         string
}

func (r *EvaluateRequest) validate() error {
	if r.ProfessionalID == "" {
		return errors.Validation("professional id is required", nil)
	}
	if r.PatientID == "" {
		return errors.Validation("patient id is required", nil)
	}
	if r.ClinicID == "" {
		return errors.Validation("clinic id is required", nil)
	}
	if !r.Specialty.IsValid() {
		return errors.Validation(fmt.Sprintf("unknown specialty %q", r.Specialty), nil)
	}
	return nil
}

// Engine decides whether a professional may view a patient's document. It
// owns no mutable state; concurrency safety reduces to the stores'.
type Engine struct {
	policies       repository.PolicyRepository
	requests       repository.AccessRequestRepository
	auditor        audit.Sink
	metrics        *metrics.Metrics
	denialLookback time.Duration
}

func NewEngine(policies repository.PolicyRepository, requests repository.AccessRequestRepository, auditor audit.Sink, m *metrics.Metrics, denialLookback time.Duration) *Engine {
	if denialLookback <= 0 {
		denialLookback = DefaultDenialLookback
	}
	return &Engine{
		policies:       policies,
		requests:       requests,
		auditor:        auditor,
		metrics:        m,
		denialLookback: denialLookback,
	}
}

// Evaluate resolves one access attempt into PERMIT, DENY or PENDING. Store
// failures propagate; they are never mapped to a PENDING outcome.
func (e *Engine) Evaluate(ctx context.Context, req *EvaluateRequest) (*model.Decision, error) {
	if e.metrics != nil {
		timer := prometheus.NewTimer(e.metrics.EvaluationLatency)
		defer timer.ObserveDuration()
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	candidates, err := e.policies.FindByPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	evaluated := make([]uuid.UUID, 0, len(candidates))
	var granted []*model.Policy
	var explicitDeny *model.Policy

	for _, p := range candidates {
		evaluated = append(evaluated, p.ID)
		if !e.matches(p, req, now) {
			continue
		}
		switch p.Status {
		case model.PolicyStatusGranted:
			granted = append(granted, p)
		case model.PolicyStatusDenied:
			if explicitDeny == nil || p.Priority > explicitDeny.Priority {
				explicitDeny = p
			}
		}
	}

	decision := &model.Decision{EvaluatedPolicyIDs: evaluated}

	switch {
	case explicitDeny != nil:
		decision.Outcome = model.DecisionDeny
		decision.Reason = ReasonDeniedByPolicy
		decision.DecidingPolicyID = &explicitDeny.ID
	case len(granted) == 0:
		decision.Outcome = model.DecisionPending
		decision.Reason = ReasonNoApplicablePolicy
	default:
		winner := e.resolve(granted, req.DocumentID)
		decision.Outcome = model.DecisionPermit
		decision.Reason = ReasonGrantedByPolicy
		decision.DecidingPolicyID = &winner.ID
	}

	// A recent denial by the patient overrides PERMIT and PENDING alike; a
	// PENDING outcome would otherwise reopen a request the patient just
	// refused. An explicit DENY policy already settled the matter.
	if decision.Outcome != model.DecisionDeny {
		denied, err := e.requests.FindRecentDenied(ctx, req.ProfessionalID, req.PatientID, req.DocumentID, now.Add(-e.denialLookback))
		if err != nil {
			return nil, err
		}
		if denied != nil {
			decision.Outcome = model.DecisionDeny
			decision.Reason = ReasonDeniedByPatient
			decision.DecidingPolicyID = nil
		}
	}

	e.audited(ctx, req, decision)
	if e.metrics != nil {
		e.metrics.EvaluationsTotal.WithLabelValues(string(decision.Outcome)).Inc()
	}
	return decision, nil
}

// matches applies the applicability filter: clinic and specialty must match
// exactly, the validity window must contain now, and the scope must cover
// the requested document. Status is judged by the caller.
func (e *Engine) matches(p *model.Policy, req *EvaluateRequest, now time.Time) bool {
	if p.Status != model.PolicyStatusGranted && p.Status != model.PolicyStatusDenied {
		return false
	}
	if p.ClinicID != req.ClinicID || p.Specialty != req.Specialty {
		return false
	}
	if !p.ActiveAt(now) {
		return false
	}
	return p.CoversDocument(req.DocumentID)
}

// resolve picks the winning grant. A document-specific policy outranks an
// all-documents one when a specific document was requested; among equal
// specificity the highest priority wins; remaining ties go to the most
// recently updated policy.
func (e *Engine) resolve(granted []*model.Policy, documentID *uuid.UUID) *model.Policy {
	sorted := make([]*model.Policy, len(granted))
	copy(sorted, granted)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if documentID != nil && a.IsSpecific() != b.IsSpecific() {
			return a.IsSpecific()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})

	return sorted[0]
}

func (e *Engine) audited(ctx context.Context, req *EvaluateRequest, decision *model.Decision) {
	details := map[string]interface{}{
		"clinic_id": req.ClinicID,
		"specialty": string(req.Specialty),
		"reason":    decision.Reason,
		"evaluated": len(decision.EvaluatedPolicyIDs),
	}
	if req.DocumentID != nil {
		details["document_id"] = req.DocumentID.String()
	}
	if decision.DecidingPolicyID != nil {
		details["deciding_policy_id"] = decision.DecidingPolicyID.String()
	}

	e.auditor.LogEvent(ctx, model.AuditEventAccessEvaluated,
		req.ProfessionalID, model.AuditActorProfessional,
		model.AuditResourcePatientRecord, req.PatientID,
		string(decision.Outcome), details)
}

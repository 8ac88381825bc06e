package policy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

type fakePolicyRepo struct {
	policies []*model.Policy
	err      error
}

func (f *fakePolicyRepo) Create(ctx context.Context, p *model.Policy) error { return nil }
func (f *fakePolicyRepo) Get(ctx context.Context, id uuid.UUID) (*model.Policy, error) {
	for _, p := range f.policies {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.NotFound("policy", nil)
}
func (f *fakePolicyRepo) Update(ctx context.Context, p *model.Policy) error { return nil }
func (f *fakePolicyRepo) FindByPatient(ctx context.Context, patientID string) ([]*model.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Policy
	for _, p := range f.policies {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeRequestRepo struct {
	denied *model.AccessRequest
	err    error
}

func (f *fakeRequestRepo) Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	return nil, errors.NotFound("access request", nil)
}
func (f *fakeRequestRepo) CreateOrGetPending(ctx context.Context, req *model.AccessRequest) (*model.AccessRequest, bool, error) {
	return req, true, nil
}
func (f *fakeRequestRepo) Update(ctx context.Context, req *model.AccessRequest) error { return nil }
func (f *fakeRequestRepo) FindPending(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID) (*model.AccessRequest, error) {
	return nil, nil
}
func (f *fakeRequestRepo) FindRecentDenied(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID, since time.Time) (*model.AccessRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.denied != nil && f.denied.RespondedAt != nil && f.denied.RespondedAt.Before(since) {
		return nil, nil
	}
	return f.denied, nil
}
func (f *fakeRequestRepo) ListByPatient(ctx context.Context, patientID string) ([]*model.AccessRequest, error) {
	return nil, nil
}
func (f *fakeRequestRepo) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*model.AccessRequest, error) {
	return nil, nil
}

type recordingSink struct {
	events []string
}

func (r *recordingSink) LogEvent(ctx context.Context, eventType, actorID, actorType, resourceType, resourceID, outcome string, details map[string]interface{}) error {
	r.events = append(r.events, eventType+":"+outcome)
	return nil
}

func grantedPolicy(patientID, clinicID string, specialty model.Specialty, documentID *uuid.UUID, priority int) *model.Policy {
	p := &model.Policy{
		PatientID:  patientID,
		ClinicID:   clinicID,
		Specialty:  specialty,
		DocumentID: documentID,
		Status:     model.PolicyStatusGranted,
		Priority:   priority,
	}
	p.ID = uuid.New()
	p.UpdatedAt = time.Now()
	return p
}

func evalRequest(documentID *uuid.UUID) *EvaluateRequest {
	return &EvaluateRequest{
		ProfessionalID: "prof-1",
		PatientID:      "12345678",
		ClinicID:       "clinic-001",
		Specialty:      model.SpecialtyCardiology,
		DocumentID:     documentID,
	}
}

func TestEvaluateNoPoliciesIsPending(t *testing.T) {
	sink := &recordingSink{}
	engine := NewEngine(&fakePolicyRepo{}, &fakeRequestRepo{}, sink, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionPending, decision.Outcome)
	assert.Equal(t, ReasonNoApplicablePolicy, decision.Reason)
	assert.Nil(t, decision.DecidingPolicyID)
	assert.Len(t, sink.events, 1)
}

func TestEvaluateAllDocumentsGrantPermits(t *testing.T) {
	policy := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{policy}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	docID := uuid.New()
	decision, err := engine.Evaluate(context.Background(), evalRequest(&docID))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionPermit, decision.Outcome)
	require.NotNil(t, decision.DecidingPolicyID)
	assert.Equal(t, policy.ID, *decision.DecidingPolicyID)
}

func TestEvaluateSpecificityBeatsPriority(t *testing.T) {
	docID := uuid.New()
	broad := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 10)
	specific := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, &docID, 0)

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{broad, specific}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(&docID))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionPermit, decision.Outcome)
	assert.Equal(t, specific.ID, *decision.DecidingPolicyID)
	assert.Len(t, decision.EvaluatedPolicyIDs, 2)
}

func TestEvaluateSpecificPolicyDoesNotCoverOtherDocuments(t *testing.T) {
	docID := uuid.New()
	otherID := uuid.New()
	specific := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, &docID, 0)

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{specific}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(&otherID))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionPending, decision.Outcome)
}

func TestEvaluateHigherPriorityWinsAmongEqualSpecificity(t *testing.T) {
	low := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 1)
	high := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 5)

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{low, high}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, high.ID, *decision.DecidingPolicyID)
}

func TestEvaluateMostRecentlyUpdatedBreaksTies(t *testing.T) {
	older := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 3)
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 3)

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{older, newer}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, newer.ID, *decision.DecidingPolicyID)
}

func TestEvaluateExpiredPolicyExcluded(t *testing.T) {
	expired := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	past := time.Now().Add(-time.Hour)
	expired.ValidUntil = &past

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{expired}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionPending, decision.Outcome)
	// Excluded from the applicable set, still reported for audit.
	assert.Len(t, decision.EvaluatedPolicyIDs, 1)
}

func TestEvaluateClinicMismatchExcluded(t *testing.T) {
	other := grantedPolicy("12345678", "clinic-002", model.SpecialtyCardiology, nil, 0)
	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{other}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionPending, decision.Outcome)
}

func TestEvaluateRevokedPolicyExcluded(t *testing.T) {
	revoked := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	revoked.Status = model.PolicyStatusRevoked

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{revoked}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionPending, decision.Outcome)
}

func TestEvaluateRecentDenialOverridesGrant(t *testing.T) {
	policy := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	respondedAt := time.Now().Add(-time.Hour)
	denied := &model.AccessRequest{
		Status:      model.AccessRequestStatusDenied,
		RespondedAt: &respondedAt,
	}

	sink := &recordingSink{}
	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{policy}}, &fakeRequestRepo{denied: denied}, sink, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionDeny, decision.Outcome)
	assert.Equal(t, ReasonDeniedByPatient, decision.Reason)
	assert.Nil(t, decision.DecidingPolicyID)
	assert.Equal(t, []string{"access.evaluated:DENY"}, sink.events)
}

func TestEvaluateRecentDenialOverridesPending(t *testing.T) {
	// No applicable policies, but the patient denied this professional an
	// hour ago. Reopening a fresh approval request would spam the patient;
	// the denial stands.
	respondedAt := time.Now().Add(-time.Hour)
	denied := &model.AccessRequest{
		Status:      model.AccessRequestStatusDenied,
		RespondedAt: &respondedAt,
	}

	engine := NewEngine(&fakePolicyRepo{}, &fakeRequestRepo{denied: denied}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionDeny, decision.Outcome)
	assert.Equal(t, ReasonDeniedByPatient, decision.Reason)
	assert.Nil(t, decision.DecidingPolicyID)
}

func TestEvaluateDenialOutsideLookbackIgnored(t *testing.T) {
	policy := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	respondedAt := time.Now().Add(-time.Hour)
	denied := &model.AccessRequest{
		Status:      model.AccessRequestStatusDenied,
		RespondedAt: &respondedAt,
	}

	// With a 30 minute horizon the hour-old denial no longer counts.
	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{policy}}, &fakeRequestRepo{denied: denied}, &recordingSink{}, nil, 30*time.Minute)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionPermit, decision.Outcome)
}

func TestEvaluateExplicitDenyPolicyWins(t *testing.T) {
	grant := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 10)
	deny := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	deny.Status = model.PolicyStatusDenied

	engine := NewEngine(&fakePolicyRepo{policies: []*model.Policy{grant, deny}}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	decision, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, model.DecisionDeny, decision.Outcome)
	assert.Equal(t, ReasonDeniedByPolicy, decision.Reason)
	assert.Equal(t, deny.ID, *decision.DecidingPolicyID)
}

func TestEvaluateStoreFailurePropagates(t *testing.T) {
	storeErr := errors.StoreUnavailable("policy", nil)
	engine := NewEngine(&fakePolicyRepo{err: storeErr}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	_, err := engine.Evaluate(context.Background(), evalRequest(nil))
	require.Error(t, err)
	assert.Equal(t, errors.ErrStoreUnavailable, errors.Kind(err))
}

func TestEvaluateValidation(t *testing.T) {
	engine := NewEngine(&fakePolicyRepo{}, &fakeRequestRepo{}, &recordingSink{}, nil, 0)

	tests := []struct {
		name string
		req  *EvaluateRequest
	}{
		{"missing professional", &EvaluateRequest{PatientID: "p", ClinicID: "c", Specialty: model.SpecialtyCardiology}},
		{"missing patient", &EvaluateRequest{ProfessionalID: "pr", ClinicID: "c", Specialty: model.SpecialtyCardiology}},
		{"missing clinic", &EvaluateRequest{ProfessionalID: "pr", PatientID: "p", Specialty: model.SpecialtyCardiology}},
		{"unknown specialty", &EvaluateRequest{ProfessionalID: "pr", PatientID: "p", ClinicID: "c", Specialty: "XXX"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Evaluate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrValidation, errors.Kind(err))
		})
	}
}

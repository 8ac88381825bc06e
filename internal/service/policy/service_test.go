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

func TestCreatePolicyDefaultsToGranted(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(&fakePolicyRepo{}, sink)

	p := &model.Policy{
		PatientID: "12345678",
		ClinicID:  "clinic-001",
		Specialty: model.SpecialtyCardiology,
	}
	require.NoError(t, svc.CreatePolicy(context.Background(), p))
	assert.Equal(t, model.PolicyStatusGranted, p.Status)
	assert.Contains(t, sink.events, model.AuditEventPolicyCreated+":"+string(model.PolicyStatusGranted))
}

func TestCreatePolicyRejectsUnknownSpecialty(t *testing.T) {
	svc := NewService(&fakePolicyRepo{}, &recordingSink{})

	err := svc.CreatePolicy(context.Background(), &model.Policy{
		PatientID: "12345678",
		ClinicID:  "clinic-001",
		Specialty: model.Specialty("XXX"),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
}

func TestCreatePolicyRejectsInvertedWindow(t *testing.T) {
	svc := NewService(&fakePolicyRepo{}, &recordingSink{})

	from := time.Now()
	until := from.Add(-time.Hour)
	err := svc.CreatePolicy(context.Background(), &model.Policy{
		PatientID:  "12345678",
		ClinicID:   "clinic-001",
		Specialty:  model.SpecialtyCardiology,
		ValidFrom:  &from,
		ValidUntil: &until,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
}

func TestRevokePolicyOwnerOnly(t *testing.T) {
	p := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	repo := &fakePolicyRepo{policies: []*model.Policy{p}}
	svc := NewService(repo, &recordingSink{})

	err := svc.RevokePolicy(context.Background(), p.ID, "99999999")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))

	require.NoError(t, svc.RevokePolicy(context.Background(), p.ID, "12345678"))
	assert.Equal(t, model.PolicyStatusRevoked, p.Status)
}

func TestRevokePolicyIsIdempotent(t *testing.T) {
	p := grantedPolicy("12345678", "clinic-001", model.SpecialtyCardiology, nil, 0)
	p.Status = model.PolicyStatusRevoked
	repo := &fakePolicyRepo{policies: []*model.Policy{p}}
	sink := &recordingSink{}
	svc := NewService(repo, sink)

	require.NoError(t, svc.RevokePolicy(context.Background(), p.ID, "12345678"))
	// Already revoked; nothing new to audit.
	assert.Empty(t, sink.events)
}

func TestUpdateValidityUnknownPolicy(t *testing.T) {
	svc := NewService(&fakePolicyRepo{}, &recordingSink{})

	err := svc.UpdateValidity(context.Background(), uuid.New(), "12345678", nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}

package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/resilient"
)

type countingClinicRepo struct {
	clinic *model.Clinic
	gets   int32
}

func (c *countingClinicRepo) Create(ctx context.Context, clinic *model.Clinic) error { return nil }
func (c *countingClinicRepo) Get(ctx context.Context, clinicID string) (*model.Clinic, error) {
	atomic.AddInt32(&c.gets, 1)
	if c.clinic == nil || c.clinic.ClinicID != clinicID {
		return nil, errors.NotFound("clinic", nil)
	}
	return c.clinic, nil
}
func (c *countingClinicRepo) Update(ctx context.Context, clinic *model.Clinic) error { return nil }
func (c *countingClinicRepo) List(ctx context.Context) ([]*model.Clinic, error)      { return nil, nil }

func testCfg() resilient.Config {
	cfg := resilient.DefaultConfig("identity-test")
	cfg.BackoffDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return cfg
}

func TestGetAPIKeyCachesRepositoryHits(t *testing.T) {
	repo := &countingClinicRepo{clinic: &model.Clinic{ClinicID: "clinic-001", APIKey: "secret"}}
	svc := NewService(repo, "http://identity.test", testCfg(), nil)

	for i := 0; i < 3; i++ {
		key, err := svc.GetAPIKey(context.Background(), "clinic-001")
		require.NoError(t, err)
		assert.Equal(t, "secret", key)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.gets))
}

func TestGetAPIKeyUnknownClinic(t *testing.T) {
	svc := NewService(&countingClinicRepo{}, "http://identity.test", testCfg(), nil)

	_, err := svc.GetAPIKey(context.Background(), "clinic-missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}

func TestGetAPIKeyEmptyKeyIsNotFound(t *testing.T) {
	repo := &countingClinicRepo{clinic: &model.Clinic{ClinicID: "clinic-001"}}
	svc := NewService(repo, "http://identity.test", testCfg(), nil)

	_, err := svc.GetAPIKey(context.Background(), "clinic-001")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}

func TestInvalidateAPIKeyForcesReload(t *testing.T) {
	repo := &countingClinicRepo{clinic: &model.Clinic{ClinicID: "clinic-001", APIKey: "secret"}}
	svc := NewService(repo, "http://identity.test", testCfg(), nil)

	_, err := svc.GetAPIKey(context.Background(), "clinic-001")
	require.NoError(t, err)
	svc.InvalidateAPIKey("clinic-001")
	_, err = svc.GetAPIKey(context.Background(), "clinic-001")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.gets))
}

func TestVerifyProfessional(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/professionals/prof-1", r.URL.Path)
		json.NewEncoder(w).Encode(Professional{
			ID:        "prof-1",
			Name:      "Dr. Souza",
			ClinicID:  "clinic-001",
			Specialty: "CAR",
			Active:    true,
		})
	}))
	defer server.Close()

	svc := NewService(&countingClinicRepo{}, server.URL, testCfg(), nil)

	prof, err := svc.VerifyProfessional(context.Background(), "prof-1")
	require.NoError(t, err)
	assert.Equal(t, "clinic-001", prof.ClinicID)
	assert.Equal(t, "CAR", prof.Specialty)
}

func TestVerifyProfessionalUnknownID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	svc := NewService(&countingClinicRepo{}, server.URL, testCfg(), nil)

	_, err := svc.VerifyProfessional(context.Background(), "prof-unknown")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}

func TestVerifyProfessionalInactive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Professional{ID: "prof-1", Active: false})
	}))
	defer server.Close()

	svc := NewService(&countingClinicRepo{}, server.URL, testCfg(), nil)

	_, err := svc.VerifyProfessional(context.Background(), "prof-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
}

package directory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/resilient"
)

const (
	apiKeyCacheTTL     = 5 * time.Minute
	apiKeyCacheCleanup = 10 * time.Minute
	identityLookupPath = "/api/v1/professionals/%s"
)

// Professional is the identity service's view of a requesting clinician.
type Professional struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClinicID  string `json:"clinic_id"`
	Specialty string `json:"specialty"`
	Active    bool   `json:"active"`
}

// Service resolves clinic credentials and professional identities. Clinic
// API keys are cached briefly; identity lookups go through a resilient
// client against the national identity service.
type Service struct {
	clinics     repository.ClinicRepository
	keys        *cache.Cache
	identity    *resilient.Client
	identityURL string
	httpClient  *http.Client
	logger      *logger.Logger
}

func NewService(clinics repository.ClinicRepository, identityURL string, cfg resilient.Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "identity"
	}
	return &Service{
		clinics:     clinics,
		keys:        cache.New(apiKeyCacheTTL, apiKeyCacheCleanup),
		identity:    resilient.NewClient(cfg, resilient.ClassifyHTTP, log),
		identityURL: identityURL,
		httpClient:  resilient.NewHTTPClient(cfg),
		logger:      log.With("directory"),
	}
}

// GetAPIKey returns the storage-node credential for a clinic, or NotFound
// when the clinic is unknown or has no key configured.
func (s *Service) GetAPIKey(ctx context.Context, clinicID string) (string, error) {
	if clinicID == "" {
		return "", errors.Validation("clinic id is required", nil)
	}

	if key, ok := s.keys.Get(clinicID); ok {
		return key.(string), nil
	}

	clinic, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return "", err
	}
	if clinic.APIKey == "" {
		return "", errors.NotFound("clinic api key", nil)
	}

	s.keys.Set(clinicID, clinic.APIKey, cache.DefaultExpiration)
	return clinic.APIKey, nil
}

// InvalidateAPIKey drops a clinic's cached key, forcing a reload on the
// next retrieval. Called when clinic registration data changes.
func (s *Service) InvalidateAPIKey(clinicID string) {
	s.keys.Delete(clinicID)
}

// GetClinic returns the registered clinic record.
func (s *Service) GetClinic(ctx context.Context, clinicID string) (*model.Clinic, error) {
	return s.clinics.Get(ctx, clinicID)
}

// VerifyProfessional looks up a professional at the national identity
// service. An unknown id surfaces as NotFound; an inactive registration is
// a validation failure.
func (s *Service) VerifyProfessional(ctx context.Context, professionalID string) (*Professional, error) {
	if professionalID == "" {
		return nil, errors.Validation("professional id is required", nil)
	}

	url := s.identityURL + fmt.Sprintf(identityLookupPath, professionalID)
	body, err := s.identity.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.get(ctx, url)
	})
	if err != nil {
		var statusErr *resilient.HTTPStatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, errors.NotFound("professional", err)
		}
		return nil, err
	}

	var prof Professional
	if err := json.Unmarshal(body, &prof); err != nil {
		return nil, errors.Permanent("malformed identity response", err)
	}
	if !prof.Active {
		return nil, errors.Validation("professional registration is inactive", nil)
	}
	return &prof, nil
}

func (s *Service) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Permanent("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &resilient.HTTPStatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

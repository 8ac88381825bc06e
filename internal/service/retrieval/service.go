package retrieval

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/internal/service/directory"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
	"github.com/jwalitptl/exchange-api/pkg/resilient"
)

// Service fetches document bytes from remote storage nodes and verifies
// their integrity against the registry's recorded digest. Each storage host
// gets its own resilient client so nodes fail independently.
type Service struct {
	documents  repository.DocumentRepository
	directory  *directory.Service
	auditor    audit.Sink
	metrics    *metrics.Metrics
	logger     *logger.Logger
	httpClient *http.Client
	baseCfg    resilient.Config

	mu      sync.Mutex
	clients map[string]*resilient.Client
}

func NewService(documents repository.DocumentRepository, dir *directory.Service, auditor audit.Sink, m *metrics.Metrics, log *logger.Logger, cfg resilient.Config) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		documents:  documents,
		directory:  dir,
		auditor:    auditor,
		metrics:    m,
		logger:     log.With("retrieval"),
		httpClient: resilient.NewHTTPClient(cfg),
		baseCfg:    cfg,
		clients:    map[string]*resilient.Client{},
	}
}

// FetchDocument resolves a registered document to its locator and owning
// clinic's credentials, then fetches and verifies the bytes. Callers must
// have a PERMIT decision in hand before calling.
func (s *Service) FetchDocument(ctx context.Context, professionalID string, documentID uuid.UUID) ([]byte, *model.Document, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	apiKey, err := s.directory.GetAPIKey(ctx, doc.ClinicID)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.Fetch(ctx, doc.Locator, apiKey, doc.SHA256)
	if err != nil {
		s.auditor.LogEvent(ctx, model.AuditEventDocumentRejected,
			professionalID, model.AuditActorProfessional,
			model.AuditResourceDocument, documentID.String(),
			"failure", map[string]interface{}{"error": err.Error()})
		return nil, nil, err
	}

	s.auditor.LogEvent(ctx, model.AuditEventDocumentFetched,
		professionalID, model.AuditActorProfessional,
		model.AuditResourceDocument, documentID.String(),
		"success", map[string]interface{}{"size_bytes": len(body)})
	return body, doc, nil
}

// Fetch retrieves raw bytes from a locator with bearer authentication and
// verifies them against expectedHash when one is supplied. The expected
// digest may be hex or base64 encoded. A mismatch is permanent: it is never
// retried and never triggers another fetch.
func (s *Service) Fetch(ctx context.Context, locator, apiKey, expectedHash string) ([]byte, error) {
	host, err := validateLocator(locator)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.RetrievalLatency)
		defer timer.ObserveDuration()
	}

	client := s.clientFor(host)
	body, err := client.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.get(ctx, locator, apiKey)
	})
	if err != nil {
		s.observeRetrieval("error")
		return nil, err
	}

	if expectedHash != "" {
		if err := verifyDigest(body, expectedHash); err != nil {
			s.observeRetrieval("integrity_failure")
			if s.metrics != nil {
				s.metrics.IntegrityFailures.Inc()
			}
			return nil, err
		}
	}

	s.observeRetrieval("success")
	return body, nil
}

func (s *Service) get(ctx context.Context, locator, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, errors.Permanent("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/octet-stream")

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

// clientFor returns the resilient client owning the breaker for one storage
// host, creating it on first use.
func (s *Service) clientFor(host string) *resilient.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[host]; ok {
		return client
	}

	cfg := s.baseCfg
	cfg.Endpoint = host
	client := resilient.NewClient(cfg, resilient.ClassifyHTTP, s.logger)
	if s.metrics != nil {
		client.Breaker().OnStateChange(s.metrics.ObserveCircuit())
	}
	s.clients[host] = client
	return client
}

func (s *Service) observeRetrieval(status string) {
	if s.metrics != nil {
		s.metrics.RetrievalsTotal.WithLabelValues(status).Inc()
	}
}

func validateLocator(locator string) (string, error) {
	if locator == "" {
		return "", errors.Validation("document locator is required", nil)
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", errors.Validation("malformed document locator", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Validation(fmt.Sprintf("unsupported locator scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return "", errors.Validation("document locator has no host", nil)
	}
	return u.Host, nil
}

// verifyDigest compares the SHA-256 of body against the expected value,
// which may be hex (any case) or standard base64.
func verifyDigest(body []byte, expected string) error {
	sum := sha256.Sum256(body)

	if decoded, err := hex.DecodeString(strings.ToLower(expected)); err == nil && len(decoded) == sha256.Size {
		if subtle.ConstantTimeCompare(sum[:], decoded) == 1 {
			return nil
		}
		return errors.Integrity("document bytes do not match recorded digest")
	}

	if decoded, err := base64.StdEncoding.DecodeString(expected); err == nil && len(decoded) == sha256.Size {
		if subtle.ConstantTimeCompare(sum[:], decoded) == 1 {
			return nil
		}
		return errors.Integrity("document bytes do not match recorded digest")
	}

	return errors.Integrity("recorded digest is not a valid sha-256 encoding")
}

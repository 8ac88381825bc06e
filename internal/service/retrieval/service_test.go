package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/directory"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/resilient"
)

type nopSink struct{}

func (nopSink) LogEvent(ctx context.Context, eventType, actorID, actorType, resourceType, resourceID, outcome string, details map[string]interface{}) error {
	return nil
}

type fakeDocumentRepo struct {
	doc *model.Document
}

func (f *fakeDocumentRepo) Create(ctx context.Context, doc *model.Document) error { return nil }
func (f *fakeDocumentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, errors.NotFound("document", nil)
	}
	return f.doc, nil
}
func (f *fakeDocumentRepo) ListByPatient(ctx context.Context, patientID string) ([]*model.Document, error) {
	return nil, nil
}

type fakeClinicRepo struct {
	clinic *model.Clinic
}

func (f *fakeClinicRepo) Create(ctx context.Context, c *model.Clinic) error { return nil }
func (f *fakeClinicRepo) Get(ctx context.Context, clinicID string) (*model.Clinic, error) {
	if f.clinic == nil || f.clinic.ClinicID != clinicID {
		return nil, errors.NotFound("clinic", nil)
	}
	return f.clinic, nil
}
func (f *fakeClinicRepo) Update(ctx context.Context, c *model.Clinic) error { return nil }
func (f *fakeClinicRepo) List(ctx context.Context) ([]*model.Clinic, error) { return nil, nil }

var _ repository.DocumentRepository = (*fakeDocumentRepo)(nil)
var _ repository.ClinicRepository = (*fakeClinicRepo)(nil)

func testCfg() resilient.Config {
	cfg := resilient.DefaultConfig("test")
	cfg.BackoffDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return cfg
}

func newTestService(docs repository.DocumentRepository, clinics repository.ClinicRepository) *Service {
	dir := directory.NewService(clinics, "http://identity.test", testCfg(), nil)
	return NewService(docs, dir, nopSink{}, nil, nil, testCfg())
}

func hexDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func TestFetchVerifiesHexDigest(t *testing.T) {
	content := []byte("clinical report")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		w.Write(content)
	}))
	defer server.Close()

	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	body, err := svc.Fetch(context.Background(), server.URL, "key-123", hexDigest(content))
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestFetchVerifiesBase64Digest(t *testing.T) {
	content := []byte("imaging result")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	sum := sha256.Sum256(content)
	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	body, err := svc.Fetch(context.Background(), server.URL, "key", base64.StdEncoding.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestFetchIntegrityMismatchIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("tampered bytes"))
	}))
	defer server.Close()

	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	_, err := svc.Fetch(context.Background(), server.URL, "key", hexDigest([]byte("original bytes")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrIntegrity, errors.Kind(err))
	// No refetch on integrity failure.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchWithoutHashSkipsVerification(t *testing.T) {
	content := []byte("best effort")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	body, err := svc.Fetch(context.Background(), server.URL, "key", "")
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestFetchRejectsBadLocators(t *testing.T) {
	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	for _, locator := range []string{"", "ftp://node/doc", "not a url at all\x00"} {
		_, err := svc.Fetch(context.Background(), locator, "key", "")
		require.Error(t, err, "locator %q", locator)
		assert.Equal(t, errors.ErrValidation, errors.Kind(err))
	}
}

func TestFetchNon2xxIsPermanentNoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	_, err := svc.Fetch(context.Background(), server.URL, "bad-key", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchRetriesConnectionFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	locator := server.URL
	server.Close()

	svc := newTestService(&fakeDocumentRepo{}, &fakeClinicRepo{})

	_, err := svc.Fetch(context.Background(), locator, "key", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrTransientNetwork, errors.Kind(err))
}

func TestFetchDocumentResolvesLocatorAndKey(t *testing.T) {
	content := []byte("discharge summary")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer clinic-key", r.Header.Get("Authorization"))
		w.Write(content)
	}))
	defer server.Close()

	doc := &model.Document{
		PatientID: "12345678",
		ClinicID:  "clinic-001",
		Locator:   server.URL,
		SHA256:    hexDigest(content),
	}
	doc.ID = uuid.New()

	clinic := &model.Clinic{ClinicID: "clinic-001", APIKey: "clinic-key"}

	svc := newTestService(&fakeDocumentRepo{doc: doc}, &fakeClinicRepo{clinic: clinic})

	body, got, err := svc.FetchDocument(context.Background(), "prof-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, content, body)
	assert.Equal(t, doc.ID, got.ID)
}

func TestFetchDocumentUnknownClinicKey(t *testing.T) {
	doc := &model.Document{ClinicID: "clinic-x", Locator: "http://node/doc"}
	doc.ID = uuid.New()

	svc := newTestService(&fakeDocumentRepo{doc: doc}, &fakeClinicRepo{})

	_, _, err := svc.FetchDocument(context.Background(), "prof-1", doc.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}

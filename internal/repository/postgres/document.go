package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
)

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentRepository {
	return &documentRepository{base}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (
			id, patient_id, clinic_id, title, content_type,
			locator, sha256, size_bytes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	doc.ID = uuid.New()
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.PatientID,
		doc.ClinicID,
		doc.Title,
		doc.ContentType,
		doc.Locator,
		doc.SHA256,
		doc.SizeBytes,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable("document", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	query := `SELECT * FROM documents WHERE id = $1`

	var doc model.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("document", err)
		}
		return nil, errors.StoreUnavailable("document", err)
	}
	return &doc, nil
}

func (r *documentRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.Document, error) {
	query := `
		SELECT * FROM documents
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`

	var docs []*model.Document
	if err := r.db.SelectContext(ctx, &docs, query, patientID); err != nil {
		return nil, errors.StoreUnavailable("document", err)
	}
	return docs, nil
}

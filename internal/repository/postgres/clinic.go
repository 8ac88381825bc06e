package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/security"
)

type clinicRepository struct {
	BaseRepository
	encryptor security.Encryptor
}

// NewClinicRepository stores clinic registrations. When an encryptor is
// supplied, storage credentials are sealed before hitting the database.
func NewClinicRepository(base BaseRepository, encryptor security.Encryptor) repository.ClinicRepository {
	return &clinicRepository{BaseRepository: base, encryptor: encryptor}
}

func (r *clinicRepository) sealKey(clinic *model.Clinic) (string, error) {
	if r.encryptor == nil || clinic.APIKey == "" {
		return clinic.APIKey, nil
	}
	sealed, err := r.encryptor.EncryptString(clinic.APIKey)
	if err != nil {
		return "", errors.Internal("failed to seal clinic credential", err)
	}
	return sealed, nil
}

func (r *clinicRepository) openKey(clinic *model.Clinic) error {
	if r.encryptor == nil || clinic.APIKey == "" {
		return nil
	}
	key, err := r.encryptor.DecryptString(clinic.APIKey)
	if err != nil {
		return errors.Internal("failed to open clinic credential", err)
	}
	clinic.APIKey = key
	return nil
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, clinic_id, name, location, status, endpoint, api_key,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	clinic.ID = uuid.New()
	clinic.CreatedAt = time.Now()
	clinic.UpdatedAt = clinic.CreatedAt

	sealed, err := r.sealKey(clinic)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		clinic.ID,
		clinic.ClinicID,
		clinic.Name,
		clinic.Location,
		clinic.Status,
		clinic.Endpoint,
		sealed,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable("clinic", err)
	}
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, clinicID string) (*model.Clinic, error) {
	query := `SELECT * FROM clinics WHERE clinic_id = $1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, clinicID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("clinic", err)
		}
		return nil, errors.StoreUnavailable("clinic", err)
	}
	if err := r.openKey(&clinic); err != nil {
		return nil, err
	}
	return &clinic, nil
}

func (r *clinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	query := `
		UPDATE clinics SET
			name = $1,
			location = $2,
			status = $3,
			endpoint = $4,
			api_key = $5,
			updated_at = $6
		WHERE clinic_id = $7
	`

	clinic.UpdatedAt = time.Now()

	sealed, err := r.sealKey(clinic)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		clinic.Name,
		clinic.Location,
		clinic.Status,
		clinic.Endpoint,
		sealed,
		clinic.UpdatedAt,
		clinic.ClinicID,
	)
	if err != nil {
		return errors.StoreUnavailable("clinic", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StoreUnavailable("clinic", err)
	}
	if rows == 0 {
		return errors.NotFound("clinic", nil)
	}
	return nil
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	query := `SELECT * FROM clinics ORDER BY name ASC`

	var clinics []*model.Clinic
	if err := r.db.SelectContext(ctx, &clinics, query); err != nil {
		return nil, errors.StoreUnavailable("clinic", err)
	}
	for _, clinic := range clinics {
		if err := r.openKey(clinic); err != nil {
			return nil, err
		}
	}
	return clinics, nil
}

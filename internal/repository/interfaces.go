package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/model"
)

// All repository interfaces in one file
type (
	// PolicyRepository stores patient-authored access policies
	PolicyRepository interface {
		Create(ctx context.Context, policy *model.Policy) error
		Get(ctx context.Context, id uuid.UUID) (*model.Policy, error)
		Update(ctx context.Context, policy *model.Policy) error
		FindByPatient(ctx context.Context, patientID string) ([]*model.Policy, error)
	}

	// AccessRequestRepository stores pending-approval requests
	AccessRequestRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error)
		// CreateOrGetPending atomically inserts the request or, when a
		// matching PENDING request already exists, returns the existing
		// row. The boolean reports whether a new row was created.
		CreateOrGetPending(ctx context.Context, req *model.AccessRequest) (*model.AccessRequest, bool, error)
		Update(ctx context.Context, req *model.AccessRequest) error
		FindPending(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID) (*model.AccessRequest, error)
		FindRecentDenied(ctx context.Context, professionalID, patientID string, documentID *uuid.UUID, since time.Time) (*model.AccessRequest, error)
		ListByPatient(ctx context.Context, patientID string) ([]*model.AccessRequest, error)
		ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*model.AccessRequest, error)
	}

	// ClinicRepository stores provider nodes registered with the hub
	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, clinicID string) (*model.Clinic, error)
		Update(ctx context.Context, clinic *model.Clinic) error
		List(ctx context.Context) ([]*model.Clinic, error)
	}

	// DocumentRepository is the registry's read model of document metadata
	DocumentRepository interface {
		Create(ctx context.Context, doc *model.Document) error
		Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
		ListByPatient(ctx context.Context, patientID string) ([]*model.Document, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, event *model.AuditEvent) error
		List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditEvent, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, tx *sql.Tx, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

package model

import (
	"time"

	"github.com/google/uuid"
)

type PolicyStatus string

const (
	PolicyStatusGranted PolicyStatus = "GRANTED"
	PolicyStatusPending PolicyStatus = "PENDING"
	PolicyStatusDenied  PolicyStatus = "DENIED"
	PolicyStatusRevoked PolicyStatus = "REVOKED"
)

// Policy is a patient-authored grant (or explicit denial) of access to
// clinical documents for one clinic and specialty. A nil DocumentID means
// the policy covers every document of the patient.
type Policy struct {
	Base
	PatientID  string       `db:"patient_id" json:"patient_id"`
	ClinicID   string       `db:"clinic_id" json:"clinic_id"`
	Specialty  Specialty    `db:"specialty" json:"specialty"`
	DocumentID *uuid.UUID   `db:"document_id" json:"document_id,omitempty"`
	Status     PolicyStatus `db:"status" json:"status"`
	ValidFrom  *time.Time   `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time   `db:"valid_until" json:"valid_until,omitempty"`
	Priority   int          `db:"priority" json:"priority"`
}

// CoversDocument reports whether the policy scope includes the given
// document. An all-documents policy covers any document, including none.
func (p *Policy) CoversDocument(documentID *uuid.UUID) bool {
	if p.DocumentID == nil {
		return true
	}
	if documentID == nil {
		return false
	}
	return *p.DocumentID == *documentID
}

// ActiveAt reports whether the validity window contains t. Open bounds are
// treated as unbounded.
func (p *Policy) ActiveAt(t time.Time) bool {
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && t.After(*p.ValidUntil) {
		return false
	}
	return true
}

// IsSpecific reports whether the policy is scoped to a single document.
func (p *Policy) IsSpecific() bool {
	return p.DocumentID != nil
}

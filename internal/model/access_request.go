package model

import (
	"time"

	"github.com/google/uuid"
)

type AccessRequestStatus string

const (
	AccessRequestStatusPending  AccessRequestStatus = "PENDING"
	AccessRequestStatusApproved AccessRequestStatus = "APPROVED"
	AccessRequestStatusDenied   AccessRequestStatus = "DENIED"
	AccessRequestStatusExpired  AccessRequestStatus = "EXPIRED"
)

// DefaultAccessRequestTTL is how long a patient has to respond before a
// pending request expires.
const DefaultAccessRequestTTL = 48 * time.Hour

// AccessRequest is created when policy evaluation cannot resolve a
// professional's access attempt and the patient must decide.
type AccessRequest struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	ProfessionalID string              `db:"professional_id" json:"professional_id"`
	PatientID      string              `db:"patient_id" json:"patient_id"`
	DocumentID     *uuid.UUID          `db:"document_id" json:"document_id,omitempty"`
	Reason         string              `db:"reason" json:"reason"`
	Status         AccessRequestStatus `db:"status" json:"status"`
	RequestedAt    time.Time           `db:"requested_at" json:"requested_at"`
	ExpiresAt      time.Time           `db:"expires_at" json:"expires_at"`
	RespondedAt    *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
	PatientComment *string             `db:"patient_comment" json:"patient_comment,omitempty"`
}

// IsTerminal reports whether the request reached a final state. Terminal
// requests never transition again.
func (r *AccessRequest) IsTerminal() bool {
	return r.Status != AccessRequestStatusPending
}

// IsOverdue reports whether a pending request passed its response deadline.
func (r *AccessRequest) IsOverdue(now time.Time) bool {
	return r.Status == AccessRequestStatusPending && now.After(r.ExpiresAt)
}

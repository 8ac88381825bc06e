package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditEvent struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	EventType    string          `json:"event_type" db:"event_type"`
	ActorID      string          `json:"actor_id" db:"actor_id"`
	ActorType    string          `json:"actor_type" db:"actor_type"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id" db:"resource_id"`
	Outcome      string          `json:"outcome" db:"outcome"`
	Details      json.RawMessage `json:"details" db:"details"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Event types
	AuditEventAccessEvaluated  = "access.evaluated"
	AuditEventRequestCreated   = "access_request.created"
	AuditEventRequestApproved  = "access_request.approved"
	AuditEventRequestDenied    = "access_request.denied"
	AuditEventRequestExpired   = "access_request.expired"
	AuditEventDocumentFetched  = "document.fetched"
	AuditEventDocumentRejected = "document.rejected"
	AuditEventPolicyCreated    = "policy.created"
	AuditEventPolicyUpdated    = "policy.updated"
	AuditEventPolicyRevoked    = "policy.revoked"

	// Actor types
	AuditActorProfessional = "professional"
	AuditActorPatient      = "patient"
	AuditActorSystem       = "system"

	// Resource types
	AuditResourcePatientRecord = "patient_record"
	AuditResourceAccessRequest = "access_request"
	AuditResourceDocument      = "document"
	AuditResourcePolicy        = "policy"
)

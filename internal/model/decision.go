package model

import "github.com/google/uuid"

type DecisionOutcome string

const (
	DecisionPermit  DecisionOutcome = "PERMIT"
	DecisionDeny    DecisionOutcome = "DENY"
	DecisionPending DecisionOutcome = "PENDING"
)

// Decision is the transient result of one policy evaluation. It is returned
// to the caller and audited, never persisted on its own.
type Decision struct {
	Outcome            DecisionOutcome `json:"outcome"`
	Reason             string          `json:"reason"`
	EvaluatedPolicyIDs []uuid.UUID     `json:"evaluated_policy_ids"`
	DecidingPolicyID   *uuid.UUID      `json:"deciding_policy_id,omitempty"`
	AccessRequestID    *uuid.UUID      `json:"access_request_id,omitempty"`
}

// Permitted reports whether the caller may proceed to retrieval.
func (d *Decision) Permitted() bool {
	return d.Outcome == DecisionPermit
}

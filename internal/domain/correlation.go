package domain

import "time"

type CorrelationState string

const (
	CorrelationPending  CorrelationState = "pending"
	CorrelationResolved CorrelationState = "resolved"
)

// CorrelationEntry bridges an outbound notification to its paused instance.
// Created exactly once by the notify stage; resolved when the instance
// reaches a terminal stage. Entries are archived, never reused.
type CorrelationEntry struct {
	ExternalRef string           `json:"external_ref"`
	InstanceID  string           `json:"instance_id"`
	State       CorrelationState `json:"state"`
	CreatedAt   time.Time        `json:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// DecisionRecord is the audit trail of the human decision. At most one per
// instance; a replayed decision event must not produce a second record.
type DecisionRecord struct {
	InstanceID   string    `json:"instance_id"`
	Decision     Decision  `json:"decision"`
	ChosenTarget string    `json:"chosen_target,omitempty"`
	DecidedAt    time.Time `json:"decided_at"`
}

package domain

import (
	json "github.com/goccy/go-json"
)

const PayloadSchemaVersion = 1

// Decision is the verdict delivered by the human approver.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionModify  Decision = "modify"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionModify, DecisionReject:
		return true
	}
	return false
}

// Classification is the result of the external classification call. The
// NeedsResponse flag decides the draft_response branch and must be derived
// from the stored result only, never re-queried.
type Classification struct {
	Target        string  `json:"target"`
	Reasoning     string  `json:"reasoning"`
	Score         float64 `json:"score"`
	NeedsResponse bool    `json:"needs_response"`
	FallbackUsed  bool    `json:"fallback_used"`
}

// Payload is the versioned bag of everything an instance has accumulated.
// Side-effecting stages record their outcome here before anything else, which
// is what makes re-running them from the last checkpoint safe.
type Payload struct {
	SchemaVersion  int             `json:"schema_version"`
	Subject        string          `json:"subject,omitempty"`
	Content        string          `json:"content,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Priority       bool            `json:"priority"`
	PriorityScore  float64         `json:"priority_score"`
	Draft          string          `json:"draft,omitempty"`
	ExternalRef    string          `json:"external_ref,omitempty"`
	Decision       Decision        `json:"decision,omitempty"`
	ChosenTarget   string          `json:"chosen_target,omitempty"`
	ActionApplied  bool            `json:"action_applied"`
	ActionError    string          `json:"action_error,omitempty"`
	Confirmed      bool            `json:"confirmed"`
	Cancelled      bool            `json:"cancelled"`
	Error          string          `json:"error,omitempty"`
	FailedStage    Stage           `json:"failed_stage,omitempty"`

	// Annotations collects free-form context contributed by individual
	// stages (extraction metadata, classifier raw output, timing).
	Annotations json.RawMessage `json:"annotations,omitempty"`
}

func NewPayload() *Payload {
	return &Payload{SchemaVersion: PayloadSchemaVersion}
}

// EffectiveTarget is the target the final action must use: the approver's
// alternative when one was chosen, otherwise the classified target.
func (p *Payload) EffectiveTarget() string {
	if p.ChosenTarget != "" {
		return p.ChosenTarget
	}
	if p.Classification != nil {
		return p.Classification.Target
	}
	return ""
}

// Annotate merges a patch into the payload annotations.
func (p *Payload) Annotate(patch map[string]interface{}) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return NewInternalError("failed to marshal annotation patch", err)
	}

	merged, err := MergeStates(p.Annotations, raw)
	if err != nil {
		return err
	}

	p.Annotations = merged
	return nil
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage identifies a node in the per-item state machine. Traversal runs from
// extract_context through classify, detect_priority, draft_response (when a
// reply is needed), notify and await_decision, then apply_action, confirm and
// done.
type Stage string

const (
	StageExtractContext Stage = "extract_context"
	StageClassify       Stage = "classify"
	StageDetectPriority Stage = "detect_priority"
	StageDraftResponse  Stage = "draft_response"
	StageNotify         Stage = "notify"
	StageAwaitDecision  Stage = "await_decision"
	StageApplyAction    Stage = "apply_action"
	StageConfirm        Stage = "confirm"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// PastAwaitDecision reports whether the stage is strictly beyond the pause
// point, which is what makes a late decision a duplicate.
func (s Stage) PastAwaitDecision() bool {
	switch s {
	case StageApplyAction, StageConfirm, StageDone, StageFailed:
		return true
	}
	return false
}

// Instance is the unit of work for one inbound item. It is mutated only by
// the runner through checkpoint writes and never deleted; terminal instances
// remain as the audit trail.
type Instance struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	OwnerID   string    `json:"owner_id"`
	Stage     Stage     `json:"stage"`
	Payload   *Payload  `json:"payload"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInstanceID builds an instance id as {item_id}_{random} so a correlation
// problem can be traced back to its item with the naked eye.
func NewInstanceID(itemID string) string {
	fragment := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s_%s", itemID, fragment)
}

func NewInstance(itemID, ownerID string) *Instance {
	now := time.Now().UTC()
	return &Instance{
		ID:        NewInstanceID(itemID),
		ItemID:    itemID,
		OwnerID:   ownerID,
		Stage:     StageExtractContext,
		Payload:   NewPayload(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Checkpoint is an immutable, versioned snapshot of one instance. For a given
// instance the current state is the checkpoint with the highest version.
type Checkpoint struct {
	InstanceID string    `json:"instance_id"`
	Version    int64     `json:"version"`
	Stage      Stage     `json:"stage"`
	Instance   *Instance `json:"instance"`
	CreatedAt  time.Time `json:"created_at"`
}

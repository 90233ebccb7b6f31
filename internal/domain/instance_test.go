package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageAwaitDecision.Terminal())
	assert.False(t, StageExtractContext.Terminal())
}

func TestStage_PastAwaitDecision(t *testing.T) {
	past := []Stage{StageApplyAction, StageConfirm, StageDone, StageFailed}
	for _, stage := range past {
		assert.True(t, stage.PastAwaitDecision(), string(stage))
	}

	before := []Stage{StageExtractContext, StageClassify, StageDetectPriority, StageDraftResponse, StageNotify, StageAwaitDecision}
	for _, stage := range before {
		assert.False(t, stage.PastAwaitDecision(), string(stage))
	}
}

func TestNewInstanceID(t *testing.T) {
	id := NewInstanceID("msg-42")
	assert.True(t, strings.HasPrefix(id, "msg-42_"))
	assert.NotEqual(t, id, NewInstanceID("msg-42"))
}

func TestNewInstance(t *testing.T) {
	instance := NewInstance("msg-42", "user-1")

	assert.Equal(t, "msg-42", instance.ItemID)
	assert.Equal(t, "user-1", instance.OwnerID)
	assert.Equal(t, StageExtractContext, instance.Stage)
	require.NotNil(t, instance.Payload)
	assert.Equal(t, PayloadSchemaVersion, instance.Payload.SchemaVersion)
	assert.False(t, instance.CreatedAt.IsZero())
}

func TestDecision_Valid(t *testing.T) {
	assert.True(t, DecisionApprove.Valid())
	assert.True(t, DecisionModify.Valid())
	assert.True(t, DecisionReject.Valid())
	assert.False(t, Decision("").Valid())
	assert.False(t, Decision("maybe").Valid())
}

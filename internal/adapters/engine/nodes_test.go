package engine

import (
	"testing"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/stretchr/testify/assert"
)

func newCardInstance() *domain.Instance {
	instance := domain.NewInstance("item-1", "owner-1")
	instance.Payload.Subject = "Invoice #42"
	instance.Payload.Classification = &domain.Classification{
		Target:    "Finance",
		Reasoning: "mentions an invoice",
	}
	return instance
}

func TestBuildDecisionCard(t *testing.T) {
	instance := newCardInstance()

	card := buildDecisionCard(instance)
	assert.Equal(t, "Approval needed: Invoice #42", card.Title)
	assert.Equal(t, "Finance", card.Target)
	assert.Contains(t, card.Markup, "Finance")
	assert.Contains(t, card.PlainText, "Suggested target: Finance")
	assert.False(t, card.Priority)
}

func TestBuildDecisionCard_PriorityTitle(t *testing.T) {
	instance := newCardInstance()
	instance.Payload.Priority = true

	card := buildDecisionCard(instance)
	assert.Equal(t, "[PRIORITY] Approval needed: Invoice #42", card.Title)
	assert.True(t, card.Priority)
}

func TestBuildDecisionCard_ChosenTargetWins(t *testing.T) {
	instance := newCardInstance()
	instance.Payload.ChosenTarget = "Archive"

	card := buildDecisionCard(instance)
	assert.Equal(t, "Archive", card.Target)
}

func TestBuildDecisionCard_EscapesSubjectMarkup(t *testing.T) {
	instance := newCardInstance()
	instance.Payload.Subject = "re: *deal* [draft]"

	card := buildDecisionCard(instance)
	assert.Contains(t, card.Markup, `\*deal\*`)
	assert.Contains(t, card.Markup, `\[draft\]`)
	// Plain text passes through untouched.
	assert.Contains(t, card.PlainText, "*deal* [draft]")
}

func TestConfirmationText(t *testing.T) {
	instance := newCardInstance()

	instance.Payload.Decision = domain.DecisionApprove
	assert.Equal(t, `Filed "Invoice #42" under Finance.`, confirmationText(instance))

	instance.Payload.Decision = domain.DecisionReject
	assert.Equal(t, `Dismissed "Invoice #42", no action taken.`, confirmationText(instance))

	instance.Payload.Error = "classifier exploded"
	assert.Contains(t, confirmationText(instance), "Processing failed")

	instance.Payload.ActionError = "filing service down"
	assert.Contains(t, confirmationText(instance), "Could not apply")
}

func TestEscapeMarkup(t *testing.T) {
	assert.Equal(t, `a\*b\_c\[d\]e\`+"\\`"+`f`, escapeMarkup("a*b_c[d]e`f"))
	assert.Equal(t, "plain", escapeMarkup("plain"))
}

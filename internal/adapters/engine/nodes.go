package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// priorityThreshold is the score above which an item is flagged for the
// approver as priority.
const priorityThreshold = 0.75

var urgencyMarkers = []string{"urgent", "asap", "immediately", "deadline", "overdue"}

// executeNode runs the executor for the instance's current stage and returns
// the next stage. Executors mutate only the payload; externally visible side
// effects record their outcome in the payload before anything else so a
// re-run from the last checkpoint is a no-op.
func (r *Runner) executeNode(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	switch instance.Stage {
	case domain.StageExtractContext:
		return r.extractContext(ctx, instance)
	case domain.StageClassify:
		return r.classify(ctx, instance)
	case domain.StageDetectPriority:
		return r.detectPriority(ctx, instance)
	case domain.StageDraftResponse:
		return r.draftResponse(ctx, instance)
	case domain.StageNotify:
		return r.notify(ctx, instance)
	case domain.StageApplyAction:
		return r.applyAction(ctx, instance)
	case domain.StageConfirm:
		return r.confirm(ctx, instance)
	default:
		return "", domain.NewValidationError("no executor for stage", map[string]interface{}{
			"instance_id": instance.ID,
			"stage":       string(instance.Stage),
		})
	}
}

func (r *Runner) extractContext(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	content, err := r.collaborators.ContentSource.FetchFull(ctx, instance.ItemID)
	if err != nil {
		return "", err
	}

	instance.Payload.Subject = content.Subject
	instance.Payload.Content = content.Body

	if err := instance.Payload.Annotate(map[string]interface{}{
		"sender":       content.Sender,
		"extracted_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return "", err
	}

	return domain.StageClassify, nil
}

func (r *Runner) classify(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	content := &ports.FullContent{
		Subject: instance.Payload.Subject,
		Body:    instance.Payload.Content,
	}

	result, err := r.collaborators.Classifier.Classify(ctx, content, r.collaborators.CandidateTargets)
	if err != nil {
		return "", err
	}

	instance.Payload.Classification = &domain.Classification{
		Target:        result.Target,
		Reasoning:     result.Reasoning,
		Score:         result.Score,
		NeedsResponse: result.NeedsResponse,
	}

	if err := instance.Payload.Annotate(map[string]interface{}{
		"classifier_reasoning": result.Reasoning,
	}); err != nil {
		return "", err
	}

	return domain.StageDetectPriority, nil
}

// fallbackClassification applies the conservative default when the classifier
// stayed unavailable through every retry. The item keeps moving; the fallback
// is recorded for auditing.
func (r *Runner) fallbackClassification(instance *domain.Instance, cause error) domain.Stage {
	target := "Inbox"
	if len(r.collaborators.CandidateTargets) > 0 {
		target = r.collaborators.CandidateTargets[0]
	}

	instance.Payload.Classification = &domain.Classification{
		Target:       target,
		Reasoning:    "classifier unavailable, conservative default applied",
		FallbackUsed: true,
	}

	r.logger.Warn("classification fell back to conservative default",
		"instance_id", instance.ID,
		"target", target,
		"error", cause.Error(),
	)

	return domain.StageDetectPriority
}

func (r *Runner) detectPriority(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	classification := instance.Payload.Classification
	if classification == nil {
		return "", domain.NewValidationError("priority detection before classification", map[string]interface{}{
			"instance_id": instance.ID,
		})
	}

	// A fallback classification carries no signal, so it never promotes
	// an item to priority.
	score := 0.0
	if !classification.FallbackUsed {
		score = classification.Score
		haystack := strings.ToLower(instance.Payload.Subject + " " + instance.Payload.Content)
		for _, marker := range urgencyMarkers {
			if strings.Contains(haystack, marker) {
				score += 0.15
			}
		}
		if score > 1.0 {
			score = 1.0
		}
	}

	instance.Payload.PriorityScore = score
	instance.Payload.Priority = score >= priorityThreshold

	// The draft branch is decided here, once, from stored classification
	// data only. Re-execution after a crash re-derives the same path.
	if classification.NeedsResponse {
		return domain.StageDraftResponse, nil
	}
	return domain.StageNotify, nil
}

func (r *Runner) draftResponse(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	if r.collaborators.Drafter == nil {
		if err := instance.Payload.Annotate(map[string]interface{}{
			"draft_skipped": "no drafter configured",
		}); err != nil {
			return "", err
		}
		return domain.StageNotify, nil
	}

	content := &ports.FullContent{
		Subject: instance.Payload.Subject,
		Body:    instance.Payload.Content,
	}

	draft, err := r.collaborators.Drafter.Draft(ctx, content, instance.Payload.Classification)
	if err != nil {
		return "", err
	}

	instance.Payload.Draft = draft
	return domain.StageNotify, nil
}

func (r *Runner) notify(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	if ref := instance.Payload.ExternalRef; ref != "" {
		// A previous attempt already sent the card; it may still have died
		// before the correlation landed, so registration runs again.
		r.logger.Debug("notify already performed, skipping send",
			"instance_id", instance.ID,
			"external_ref", ref,
		)
		if err := r.registerCorrelation(instance, ref); err != nil {
			return "", err
		}
		return domain.StageAwaitDecision, nil
	}

	card := buildDecisionCard(instance)

	externalRef, err := r.collaborators.Notifier.Send(ctx, instance.OwnerID, card)
	if err != nil {
		if domain.IsValidation(err) {
			// The channel rejected the markup; degrade to plain text
			// rather than failing the instance.
			r.logger.Warn("decision card markup rejected, degrading to plain text",
				"instance_id", instance.ID,
				"error", err.Error(),
			)
			plain := *card
			plain.Markup = ""
			externalRef, err = r.collaborators.Notifier.Send(ctx, instance.OwnerID, &plain)
		}
		if err != nil {
			return "", err
		}
	}

	instance.Payload.ExternalRef = externalRef

	if err := r.registerCorrelation(instance, externalRef); err != nil {
		return "", err
	}

	return domain.StageAwaitDecision, nil
}

// registerCorrelation binds the external ref to the instance, tolerating a
// duplicate: the mapping from a previous attempt already exists.
func (r *Runner) registerCorrelation(instance *domain.Instance, externalRef string) error {
	err := r.correlations.Register(externalRef, instance.ID)
	if err == nil {
		return nil
	}
	if !domain.IsDuplicateRef(err) {
		return err
	}

	r.logger.Debug("correlation already registered",
		"instance_id", instance.ID,
		"external_ref", externalRef,
	)
	return nil
}

func (r *Runner) applyAction(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	payload := instance.Payload

	if !payload.Decision.Valid() {
		return "", domain.NewValidationError("apply_action without a decision", map[string]interface{}{
			"instance_id": instance.ID,
		})
	}

	if payload.ActionApplied {
		r.logger.Debug("action already applied, skipping",
			"instance_id", instance.ID,
		)
		return domain.StageConfirm, nil
	}

	if payload.Decision == domain.DecisionReject {
		if err := payload.Annotate(map[string]interface{}{
			"action_outcome": "dismissed by approver",
		}); err != nil {
			return "", err
		}
		return domain.StageConfirm, nil
	}

	target := payload.EffectiveTarget()
	if target == "" {
		return "", domain.NewValidationError("no target to apply", map[string]interface{}{
			"instance_id": instance.ID,
		})
	}

	if err := r.collaborators.ActionSink.Apply(ctx, instance.ItemID, target); err != nil {
		return "", err
	}

	payload.ActionApplied = true
	return domain.StageConfirm, nil
}

func (r *Runner) confirm(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	payload := instance.Payload

	if !payload.Confirmed {
		text := confirmationText(instance)
		if err := r.collaborators.Notifier.Confirm(ctx, instance.OwnerID, text); err != nil {
			// Confirmation is best effort; the terminal transition
			// must not hinge on the channel being reachable.
			r.logger.Warn("confirmation delivery failed",
				"instance_id", instance.ID,
				"error", err.Error(),
			)
		}
		payload.Confirmed = true
	}

	if payload.ActionError != "" {
		payload.Error = payload.ActionError
		payload.FailedStage = domain.StageApplyAction
		return domain.StageFailed, nil
	}

	return domain.StageDone, nil
}

func buildDecisionCard(instance *domain.Instance) *ports.DecisionCard {
	payload := instance.Payload
	target := payload.EffectiveTarget()

	title := fmt.Sprintf("Approval needed: %s", payload.Subject)
	if payload.Priority {
		title = "[PRIORITY] " + title
	}

	var markup strings.Builder
	markup.WriteString(fmt.Sprintf("*%s*\n", escapeMarkup(payload.Subject)))
	markup.WriteString(fmt.Sprintf("Suggested target: *%s*\n", escapeMarkup(target)))
	if payload.Classification != nil && payload.Classification.Reasoning != "" {
		markup.WriteString(fmt.Sprintf("_%s_\n", escapeMarkup(payload.Classification.Reasoning)))
	}
	if payload.Draft != "" {
		markup.WriteString(fmt.Sprintf("\nDraft reply:\n%s\n", escapeMarkup(payload.Draft)))
	}

	var plain strings.Builder
	plain.WriteString(payload.Subject)
	plain.WriteString("\nSuggested target: " + target)
	if payload.Draft != "" {
		plain.WriteString("\nDraft reply:\n" + payload.Draft)
	}

	return &ports.DecisionCard{
		Title:     title,
		Markup:    markup.String(),
		PlainText: plain.String(),
		Target:    target,
		Priority:  payload.Priority,
	}
}

func confirmationText(instance *domain.Instance) string {
	payload := instance.Payload

	switch {
	case payload.ActionError != "":
		return fmt.Sprintf("Could not apply your decision for %q: %s", payload.Subject, payload.ActionError)
	case payload.Error != "":
		return fmt.Sprintf("Processing failed for %q: %s", payload.Subject, payload.Error)
	case payload.Decision == domain.DecisionReject:
		return fmt.Sprintf("Dismissed %q, no action taken.", payload.Subject)
	default:
		return fmt.Sprintf("Filed %q under %s.", payload.Subject, payload.EffectiveTarget())
	}
}

// escapeMarkup neutralizes the channel's reserved characters so a subject
// line cannot break the card.
var markupEscaper = strings.NewReplacer(
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"`", "\\`",
)

func escapeMarkup(s string) string {
	return markupEscaper.Replace(s)
}

package engine

import (
	"context"
	"log/slog"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// Runner drives one instance through the state machine until it pauses at
// await_decision or reaches a terminal stage. It owns no long-lived state:
// after a pause the goroutine exits and resumption is a fresh invocation over
// the durable checkpoint.
type Runner struct {
	config        domain.Config
	checkpoints   ports.CheckpointStore
	correlations  ports.CorrelationIndex
	collaborators ports.Collaborators
	logger        *slog.Logger
}

func NewRunner(
	config domain.Config,
	checkpoints ports.CheckpointStore,
	correlations ports.CorrelationIndex,
	collaborators ports.Collaborators,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	config.ApplyDefaults()

	return &Runner{
		config:        config,
		checkpoints:   checkpoints,
		correlations:  correlations,
		collaborators: collaborators,
		logger:        logger.With("component", "runner"),
	}
}

// Advance executes nodes until the instance pauses or terminates. Every
// successful node execution is checkpointed, so the latest checkpoint always
// reflects durable progress. The caller must hold the instance's advisory
// lock.
func (r *Runner) Advance(ctx context.Context, instance *domain.Instance) (*domain.Instance, bool, error) {
	for {
		if instance.Stage.Terminal() {
			return instance, false, nil
		}

		if instance.Stage == domain.StageAwaitDecision {
			r.logger.Debug("instance paused awaiting decision",
				"instance_id", instance.ID,
				"external_ref", instance.Payload.ExternalRef,
			)
			return instance, true, nil
		}

		stage := instance.Stage
		r.logger.Debug("executing stage",
			"instance_id", instance.ID,
			"stage", string(stage),
		)

		next, err := r.executeWithRetry(ctx, instance)
		if err != nil {
			next, err = r.handleStageFailure(instance, err)
			if err != nil {
				if saveErr := r.failInstance(ctx, instance, err); saveErr != nil {
					return instance, false, saveErr
				}
				return instance, false, nil
			}
		}

		instance.Stage = next

		if _, err := r.checkpoints.Save(instance); err != nil {
			r.logger.Error("failed to checkpoint instance",
				"instance_id", instance.ID,
				"stage", string(next),
				"error", err.Error(),
			)
			return instance, false, err
		}

		r.logger.Debug("stage completed",
			"instance_id", instance.ID,
			"stage", string(stage),
			"next_stage", string(next),
		)

		if next.Terminal() {
			r.finalizeTerminal(ctx, instance)
			return instance, false, nil
		}
	}
}

// executeWithRetry runs the current stage with bounded exponential backoff on
// transient collaborator errors. Validation errors are never retried.
func (r *Runner) executeWithRetry(ctx context.Context, instance *domain.Instance) (domain.Stage, error) {
	var lastErr error

	for attempt := 0; attempt < r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(r.config, attempt-1)
			r.logger.Debug("retrying stage after backoff",
				"instance_id", instance.ID,
				"stage", string(instance.Stage),
				"attempt", attempt+1,
				"delay", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return "", err
			}
		}

		nodeCtx, cancel := context.WithTimeout(ctx, r.config.NodeTimeout)
		next, err := r.executeNode(nodeCtx, instance)
		cancel()

		if err == nil {
			return next, nil
		}

		lastErr = err

		if !domain.IsTransient(err) {
			return "", err
		}

		r.logger.Warn("stage failed with transient error",
			"instance_id", instance.ID,
			"stage", string(instance.Stage),
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}

	return "", lastErr
}

// handleStageFailure decides whether an exhausted stage can degrade instead
// of failing the instance: classification falls back to a conservative
// default, and a failed final action is recorded but still reaches confirm so
// the approver hears about it.
func (r *Runner) handleStageFailure(instance *domain.Instance, execErr error) (domain.Stage, error) {
	switch instance.Stage {
	case domain.StageClassify:
		if domain.IsTransient(execErr) {
			return r.fallbackClassification(instance, execErr), nil
		}
	case domain.StageApplyAction:
		if !domain.IsValidation(execErr) {
			r.logger.Error("final action failed, recording and continuing to confirm",
				"instance_id", instance.ID,
				"error", execErr.Error(),
			)
			instance.Payload.ActionError = execErr.Error()
			return domain.StageConfirm, nil
		}
	}

	return "", execErr
}

// failInstance transitions to the failed terminal stage with the error
// captured in the payload, and writes the checkpoint so the failure is
// durable and inspectable.
func (r *Runner) failInstance(ctx context.Context, instance *domain.Instance, execErr error) error {
	r.logger.Error("instance failed",
		"instance_id", instance.ID,
		"failed_stage", string(instance.Stage),
		"error", execErr.Error(),
	)

	instance.Payload.Error = execErr.Error()
	instance.Payload.FailedStage = instance.Stage
	instance.Stage = domain.StageFailed

	if _, err := r.checkpoints.Save(instance); err != nil {
		return err
	}

	r.finalizeTerminal(ctx, instance)
	return nil
}

// finalizeTerminal resolves the correlation entry and tells the owner (best
// effort) when the instance failed. Every terminal transition produces a
// confirmation attempt, even for instances that never reached notify.
func (r *Runner) finalizeTerminal(ctx context.Context, instance *domain.Instance) {
	if externalRef := instance.Payload.ExternalRef; externalRef != "" {
		if err := r.correlations.MarkResolved(externalRef); err != nil {
			r.logger.Warn("failed to mark correlation resolved",
				"instance_id", instance.ID,
				"external_ref", externalRef,
				"error", err.Error(),
			)
		}
	}

	if instance.Stage == domain.StageFailed && !instance.Payload.Confirmed {
		text := confirmationText(instance)
		if err := r.collaborators.Notifier.Confirm(ctx, instance.OwnerID, text); err != nil {
			r.logger.Warn("failure notification could not be delivered",
				"instance_id", instance.ID,
				"error", err.Error(),
			)
		}
	}
}

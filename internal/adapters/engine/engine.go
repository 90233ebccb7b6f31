package engine

import (
	"context"
	"log/slog"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// Engine is the single-service workflow executor: it admits instances, drives
// them through the runner, and routes inbound decisions through the
// correlator. Many instances run concurrently, each owned by exactly one
// goroutine from admission to its first pause or terminal stage.
type Engine struct {
	config        domain.Config
	checkpoints   ports.CheckpointStore
	correlations  ports.CorrelationIndex
	decisions     ports.DecisionLedger
	collaborators ports.Collaborators

	runner     *Runner
	correlator *Correlator
	locks      *instanceLocks
	sem        chan struct{}
	logger     *slog.Logger
}

func NewEngine(
	config domain.Config,
	checkpoints ports.CheckpointStore,
	correlations ports.CorrelationIndex,
	decisions ports.DecisionLedger,
	collaborators ports.Collaborators,
	logger *slog.Logger,
) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	locks := newInstanceLocks()
	runner := NewRunner(config, checkpoints, correlations, collaborators, logger)
	correlator := NewCorrelator(runner, checkpoints, correlations, decisions, locks, logger)

	return &Engine{
		config:        config,
		checkpoints:   checkpoints,
		correlations:  correlations,
		decisions:     decisions,
		collaborators: collaborators,
		runner:        runner,
		correlator:    correlator,
		locks:         locks,
		sem:           make(chan struct{}, config.MaxConcurrentInstances),
		logger:        logger.With("component", "engine"),
	}, nil
}

// Submit admits a new instance for an item and runs it to its first pause or
// terminal stage. The initial checkpoint is written before any node executes,
// so even an immediately-crashing process leaves a recoverable instance.
func (e *Engine) Submit(ctx context.Context, itemRef, ownerID string) (string, error) {
	if itemRef == "" {
		return "", domain.NewValidationError("item ref is required", nil)
	}

	instance := domain.NewInstance(itemRef, ownerID)

	if _, err := e.checkpoints.Save(instance); err != nil {
		return "", err
	}

	e.logger.Info("instance admitted",
		"instance_id", instance.ID,
		"item_id", itemRef,
		"owner_id", ownerID,
	)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return instance.ID, ctx.Err()
	}
	defer func() { <-e.sem }()

	e.locks.Lock(instance.ID)
	defer e.locks.Unlock(instance.ID)

	if _, _, err := e.runner.Advance(ctx, instance); err != nil {
		return instance.ID, err
	}

	return instance.ID, nil
}

// HandleDecision routes an inbound decision event to its paused instance.
func (e *Engine) HandleDecision(ctx context.Context, externalRef string, decision domain.Decision, chosenAlternative string) (*Result, error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	return e.correlator.HandleDecision(ctx, externalRef, decision, chosenAlternative)
}

// StatusInfo is the operator/audit view of one instance.
type StatusInfo struct {
	InstanceID string
	ItemID     string
	OwnerID    string
	Stage      domain.Stage
	Version    int64
	Payload    *domain.Payload
	Decision   *domain.DecisionRecord
}

func (e *Engine) Status(instanceID string) (*StatusInfo, error) {
	instance, err := e.checkpoints.LoadLatest(instanceID)
	if err != nil {
		return nil, err
	}

	info := &StatusInfo{
		InstanceID: instance.ID,
		ItemID:     instance.ItemID,
		OwnerID:    instance.OwnerID,
		Stage:      instance.Stage,
		Version:    instance.Version,
		Payload:    instance.Payload,
	}

	if record, err := e.decisions.Get(instanceID); err == nil {
		info.Decision = record
	}

	return info, nil
}

// Cancel terminates an instance awaiting a decision. Any later-arriving
// decision for its external ref is answered as a duplicate.
func (e *Engine) Cancel(ctx context.Context, instanceID string) error {
	e.locks.Lock(instanceID)
	defer e.locks.Unlock(instanceID)

	instance, err := e.checkpoints.LoadLatest(instanceID)
	if err != nil {
		return err
	}

	if instance.Stage.Terminal() {
		return nil
	}

	instance.Payload.Cancelled = true
	instance.Payload.Error = "cancelled by operator"
	instance.Payload.FailedStage = instance.Stage
	instance.Stage = domain.StageFailed

	if _, err := e.checkpoints.Save(instance); err != nil {
		return err
	}

	if ref := instance.Payload.ExternalRef; ref != "" {
		if err := e.correlations.MarkResolved(ref); err != nil {
			e.logger.Warn("failed to resolve correlation on cancel",
				"instance_id", instanceID,
				"external_ref", ref,
				"error", err.Error(),
			)
		}
	}

	e.logger.Info("instance cancelled",
		"instance_id", instanceID,
	)

	return nil
}

// RetryFailed re-enters the runner at the stage that failed, from the last
// good checkpoint. Only failed, non-cancelled instances are retryable.
func (e *Engine) RetryFailed(ctx context.Context, instanceID string) error {
	e.locks.Lock(instanceID)
	defer e.locks.Unlock(instanceID)

	instance, err := e.checkpoints.LoadLatest(instanceID)
	if err != nil {
		return err
	}

	if instance.Stage != domain.StageFailed {
		return domain.NewValidationError("instance is not failed", map[string]interface{}{
			"instance_id": instanceID,
			"stage":       string(instance.Stage),
		})
	}
	if instance.Payload.Cancelled {
		return domain.NewValidationError("cancelled instance cannot be retried", map[string]interface{}{
			"instance_id": instanceID,
		})
	}
	if instance.Payload.FailedStage == "" {
		return domain.NewValidationError("failed stage unknown", map[string]interface{}{
			"instance_id": instanceID,
		})
	}

	instance.Stage = instance.Payload.FailedStage
	instance.Payload.FailedStage = ""
	instance.Payload.Error = ""
	if instance.Stage == domain.StageApplyAction {
		instance.Payload.ActionError = ""
		instance.Payload.Confirmed = false
	}

	if _, err := e.checkpoints.Save(instance); err != nil {
		return err
	}

	e.logger.Info("retrying failed instance",
		"instance_id", instanceID,
		"stage", string(instance.Stage),
	)

	_, _, err = e.runner.Advance(ctx, instance)
	return err
}

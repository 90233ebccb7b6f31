package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// ResultStatus classifies the outcome of an inbound decision event.
type ResultStatus string

const (
	// ResultApplied means the decision was injected and the instance ran on.
	ResultApplied ResultStatus = "applied"
	// ResultDuplicate means the instance was already resolved; the event is
	// accepted as a no-op success since approvers double-tap buttons.
	ResultDuplicate ResultStatus = "duplicate"
	// ResultUnknown means the external ref matched no correlation entry; the
	// event is logged and dropped.
	ResultUnknown ResultStatus = "unknown"
	// ResultInvalid means the event itself was malformed.
	ResultInvalid ResultStatus = "invalid"
)

// Result is returned to the inbound callback handler.
type Result struct {
	Status     ResultStatus
	InstanceID string
	Stage      domain.Stage
}

// Correlator reconnects an inbound decision event to its paused instance.
// Resolution depends only on durable storage, never on in-memory state from
// the instance's creation, so the originating process may have exited long
// ago.
type Correlator struct {
	runner       *Runner
	checkpoints  ports.CheckpointStore
	correlations ports.CorrelationIndex
	decisions    ports.DecisionLedger
	locks        *instanceLocks
	logger       *slog.Logger
}

func NewCorrelator(
	runner *Runner,
	checkpoints ports.CheckpointStore,
	correlations ports.CorrelationIndex,
	decisions ports.DecisionLedger,
	locks *instanceLocks,
	logger *slog.Logger,
) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		runner:       runner,
		checkpoints:  checkpoints,
		correlations: correlations,
		decisions:    decisions,
		locks:        locks,
		logger:       logger.With("component", "approval-correlator"),
	}
}

// HandleDecision is the sole inbound entry point for human decisions. It
// never panics or propagates a crash to the callback handler: unknown refs
// and duplicates are reported in the result, not as failures.
func (c *Correlator) HandleDecision(ctx context.Context, externalRef string, decision domain.Decision, chosenAlternative string) (*Result, error) {
	if !decision.Valid() {
		c.logger.Warn("dropping decision event with invalid verdict",
			"external_ref", externalRef,
			"decision", string(decision),
		)
		return &Result{Status: ResultInvalid}, domain.NewValidationError("invalid decision", map[string]interface{}{
			"decision": string(decision),
		})
	}

	instanceID, err := c.correlations.Resolve(externalRef)
	if err != nil {
		if domain.IsNotFound(err) {
			// Stale callback, replayed event, or tampered id. Log and drop.
			c.logger.Warn("dropping decision event for unknown external ref",
				"external_ref", externalRef,
			)
			return &Result{Status: ResultUnknown}, nil
		}
		return nil, err
	}

	c.locks.Lock(instanceID)
	defer c.locks.Unlock(instanceID)

	instance, err := c.checkpoints.LoadLatest(instanceID)
	if err != nil {
		return nil, err
	}

	if instance.Stage != domain.StageAwaitDecision {
		if instance.Stage.PastAwaitDecision() {
			c.logger.Debug("duplicate decision for resolved instance, accepting as no-op",
				"instance_id", instanceID,
				"stage", string(instance.Stage),
			)
			return &Result{Status: ResultDuplicate, InstanceID: instanceID, Stage: instance.Stage}, nil
		}

		// The ref exists but the pause checkpoint has not landed yet; the
		// instance will re-run notify on recovery and pause properly.
		c.logger.Warn("decision arrived before instance paused, dropping",
			"instance_id", instanceID,
			"stage", string(instance.Stage),
		)
		return &Result{Status: ResultUnknown, InstanceID: instanceID, Stage: instance.Stage}, nil
	}

	record := &domain.DecisionRecord{
		InstanceID:   instanceID,
		Decision:     decision,
		ChosenTarget: chosenAlternative,
		DecidedAt:    time.Now().UTC(),
	}

	inserted, err := c.decisions.Record(record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		c.logger.Debug("decision already recorded for instance",
			"instance_id", instanceID,
		)
	}

	instance.Payload.Decision = decision
	instance.Payload.ChosenTarget = chosenAlternative
	instance.Stage = domain.StageApplyAction

	// Make the injected decision durable before any side effect runs, so a
	// crash here resumes from apply_action instead of replaying the inbound
	// event.
	if _, err := c.checkpoints.Save(instance); err != nil {
		return nil, err
	}

	c.logger.Info("decision applied to instance",
		"instance_id", instanceID,
		"decision", string(decision),
		"chosen_alternative", chosenAlternative,
	)

	instance, _, err = c.runner.Advance(ctx, instance)
	if err != nil {
		return nil, err
	}

	return &Result{Status: ResultApplied, InstanceID: instanceID, Stage: instance.Stage}, nil
}

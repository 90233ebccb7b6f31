// Package triageflow provides a durable approval-workflow engine for inbound
// items such as emails. Each item runs through a per-instance state machine
// (extract, classify, prioritize, optionally draft, then notify) and pauses,
// for hours or days if need be, until a human decision arrives on a separate
// channel. State is checkpointed to durable storage at every step, so any
// process can resume any instance, including a process started long after
// the original exited.
//
// Basic usage:
//
//	svc, err := triageflow.New(triageflow.Options{
//	    DataDir:       "./data",
//	    Collaborators: collaborators,
//	    Logger:        logger,
//	})
//
//	instanceID, err := svc.Submit(ctx, "msg-42", "user-1")
//	...
//	result, err := svc.HandleDecision(ctx, externalRef, triageflow.DecisionApprove, "")
package triageflow

import (
	"context"
	"log/slog"

	"github.com/eleven-am/triageflow/internal/adapters/checkpoint"
	"github.com/eleven-am/triageflow/internal/adapters/correlation"
	"github.com/eleven-am/triageflow/internal/adapters/engine"
	"github.com/eleven-am/triageflow/internal/adapters/ledger"
	"github.com/eleven-am/triageflow/internal/adapters/storage"
	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// Config tunes the engine; zero values get sensible defaults.
type Config = domain.Config

// Stage identifies a node in the per-instance state machine.
type Stage = domain.Stage

// Decision is the verdict delivered by the human approver.
type Decision = domain.Decision

// Payload is the accumulated state of one instance.
type Payload = domain.Payload

// DecisionRecord is the audit record of a human decision.
type DecisionRecord = domain.DecisionRecord

// Result reports the outcome of an inbound decision event.
type Result = engine.Result

// ResultStatus classifies a decision event outcome.
type ResultStatus = engine.ResultStatus

// StatusInfo is the operator view of one instance.
type StatusInfo = engine.StatusInfo

// Collaborators bundles the external systems the engine talks to.
type Collaborators = ports.Collaborators

// Collaborator interfaces, implemented by the mail, classifier, chat and
// action integrations living outside this module.
type (
	ContentSource        = ports.ContentSource
	Classifier           = ports.Classifier
	ResponseDrafter      = ports.ResponseDrafter
	Notifier             = ports.Notifier
	ActionSink           = ports.ActionSink
	FullContent          = ports.FullContent
	ClassificationResult = ports.ClassificationResult
	DecisionCard         = ports.DecisionCard
)

const (
	DecisionApprove = domain.DecisionApprove
	DecisionModify  = domain.DecisionModify
	DecisionReject  = domain.DecisionReject

	StageAwaitDecision = domain.StageAwaitDecision
	StageDone          = domain.StageDone
	StageFailed        = domain.StageFailed

	ResultApplied   = engine.ResultApplied
	ResultDuplicate = engine.ResultDuplicate
	ResultUnknown   = engine.ResultUnknown
	ResultInvalid   = engine.ResultInvalid
)

// Options configures a Service. Exactly one storage source applies: an
// explicit Storage port wins, otherwise DataDir opens the default badger
// backend (empty DataDir means in-memory, for tests).
type Options struct {
	Config        Config
	Collaborators Collaborators
	Storage       ports.StoragePort
	DataDir       string
	Logger        *slog.Logger
}

// Service is the public face of the workflow engine.
type Service struct {
	engine  *engine.Engine
	storage ports.StoragePort
	ownsDB  bool
	logger  *slog.Logger
}

// New wires the checkpoint store, correlation index, decision ledger and
// engine over the selected storage backend.
func New(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := opts.Storage
	ownsDB := false
	if store == nil {
		s, err := storage.OpenBadger(opts.DataDir, logger)
		if err != nil {
			return nil, err
		}
		store = s
		ownsDB = true
	}

	checkpoints := checkpoint.NewStore(store, logger)
	correlations := correlation.NewIndex(store, logger)
	decisions := ledger.NewLedger(store, logger)

	eng, err := engine.NewEngine(opts.Config, checkpoints, correlations, decisions, opts.Collaborators, logger)
	if err != nil {
		if ownsDB {
			store.Close()
		}
		return nil, err
	}

	return &Service{
		engine:  eng,
		storage: store,
		ownsDB:  ownsDB,
		logger:  logger,
	}, nil
}

// Submit admits one item and runs its instance to the first pause or
// terminal stage. It returns the new instance id.
func (s *Service) Submit(ctx context.Context, itemRef, ownerID string) (string, error) {
	return s.engine.Submit(ctx, itemRef, ownerID)
}

// HandleDecision is the sole inbound callback entry point; the chat
// integration calls it with the message id and the approver's verdict.
func (s *Service) HandleDecision(ctx context.Context, externalRef string, decision Decision, chosenAlternative string) (*Result, error) {
	return s.engine.HandleDecision(ctx, externalRef, decision, chosenAlternative)
}

// Status returns the operator/audit view of an instance.
func (s *Service) Status(instanceID string) (*StatusInfo, error) {
	return s.engine.Status(instanceID)
}

// Cancel terminates an instance that is awaiting a decision.
func (s *Service) Cancel(ctx context.Context, instanceID string) error {
	return s.engine.Cancel(ctx, instanceID)
}

// RetryFailed re-enters a failed instance at the stage that failed.
func (s *Service) RetryFailed(ctx context.Context, instanceID string) error {
	return s.engine.RetryFailed(ctx, instanceID)
}

// Close releases the storage backend when the service owns it.
func (s *Service) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.storage.Close()
}

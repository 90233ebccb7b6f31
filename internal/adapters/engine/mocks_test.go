package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/triageflow/internal/adapters/checkpoint"
	"github.com/eleven-am/triageflow/internal/adapters/correlation"
	"github.com/eleven-am/triageflow/internal/adapters/ledger"
	"github.com/eleven-am/triageflow/internal/adapters/storage"
	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	content  *ports.FullContent
	failures int
	calls    int
}

func (f *fakeSource) FetchFull(ctx context.Context, itemRef string) (*ports.FullContent, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, domain.NewTransientError("mail provider unavailable", nil)
	}
	return f.content, nil
}

type fakeClassifier struct {
	result   *ports.ClassificationResult
	err      error
	failures int
	calls    int
}

func (f *fakeClassifier) Classify(ctx context.Context, content *ports.FullContent, candidateTargets []string) (*ports.ClassificationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failures > 0 {
		f.failures--
		return nil, domain.NewTransientError("classifier rate limited", nil)
	}
	return f.result, nil
}

type fakeDrafter struct {
	draft string
	err   error
	calls int
}

func (f *fakeDrafter) Draft(ctx context.Context, content *ports.FullContent, classification *domain.Classification) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.draft, nil
}

type fakeNotifier struct {
	rejectMarkup bool
	sendErr      error
	confirmErr   error

	sent     []*ports.DecisionCard
	confirms []string
}

func (f *fakeNotifier) Send(ctx context.Context, recipient string, card *ports.DecisionCard) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	if f.rejectMarkup && card.Markup != "" {
		return "", domain.NewValidationError("unsupported markup", nil)
	}
	f.sent = append(f.sent, card)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeNotifier) Confirm(ctx context.Context, recipient string, text string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirms = append(f.confirms, text)
	return nil
}

type appliedAction struct {
	itemRef string
	target  string
}

type fakeSink struct {
	err     error
	applied []appliedAction
}

func (f *fakeSink) Apply(ctx context.Context, itemRef string, target string) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, appliedAction{itemRef: itemRef, target: target})
	return nil
}

// flakyCorrelations wraps a real index and fails the first registration
// attempts, standing in for a storage hiccup after the card was sent.
type flakyCorrelations struct {
	ports.CorrelationIndex
	failures  int
	registers int
}

func (f *flakyCorrelations) Register(externalRef, instanceID string) error {
	f.registers++
	if f.failures > 0 {
		f.failures--
		return domain.NewInternalError("correlation write failed", nil)
	}
	return f.CorrelationIndex.Register(externalRef, instanceID)
}

// harness wires an engine over in-memory storage with counting fakes for
// every collaborator. newEngine builds additional engines over the same
// stores, which is how restart recovery is exercised.
type harness struct {
	storage      *storage.BadgerStorage
	checkpoints  *checkpoint.Store
	correlations *correlation.Index
	decisions    *ledger.Ledger

	source     *fakeSource
	classifier *fakeClassifier
	drafter    *fakeDrafter
	notifier   *fakeNotifier
	sink       *fakeSink

	engine *Engine
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() domain.Config {
	return domain.Config{
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
		NodeTimeout:    time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := storage.OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h := &harness{
		storage:      s,
		checkpoints:  checkpoint.NewStore(s, testLogger()),
		correlations: correlation.NewIndex(s, testLogger()),
		decisions:    ledger.NewLedger(s, testLogger()),
		source: &fakeSource{content: &ports.FullContent{
			Subject: "Quarterly tax filing",
			Body:    "Please find the filing attached.",
			Sender:  "accounts@example.com",
		}},
		classifier: &fakeClassifier{result: &ports.ClassificationResult{
			Target:    "Government",
			Reasoning: "official correspondence",
			Score:     0.6,
		}},
		drafter:  &fakeDrafter{draft: "Thank you, we will review the filing."},
		notifier: &fakeNotifier{},
		sink:     &fakeSink{},
	}

	h.engine = h.newEngine(t)
	return h
}

func (h *harness) collaborators() ports.Collaborators {
	c := ports.Collaborators{
		ContentSource:    h.source,
		Classifier:       h.classifier,
		Notifier:         h.notifier,
		ActionSink:       h.sink,
		CandidateTargets: []string{"Inbox", "Government", "Archive"},
	}
	if h.drafter != nil {
		c.Drafter = h.drafter
	}
	return c
}

func (h *harness) newEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine(testConfig(), h.checkpoints, h.correlations, h.decisions, h.collaborators(), testLogger())
	require.NoError(t, err)
	return eng
}

// submit runs an instance to its first pause and returns its id and the
// external ref of the decision card it sent.
func (h *harness) submit(t *testing.T) (string, string) {
	t.Helper()

	instanceID, err := h.engine.Submit(context.Background(), "item-1", "owner-1")
	require.NoError(t, err)

	instance, err := h.checkpoints.LoadLatest(instanceID)
	require.NoError(t, err)

	return instanceID, instance.Payload.ExternalRef
}

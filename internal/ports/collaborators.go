package ports

import (
	"context"

	"github.com/eleven-am/triageflow/internal/domain"
)

// FullContent is the retrieved body of one inbound item.
type FullContent struct {
	Subject string
	Body    string
	Sender  string
}

// ContentSource retrieves the full content of an item from the mail provider.
type ContentSource interface {
	FetchFull(ctx context.Context, itemRef string) (*FullContent, error)
}

// ClassificationResult is what the external classifier returns for one item.
type ClassificationResult struct {
	Target        string
	Reasoning     string
	Score         float64
	NeedsResponse bool
}

// Classifier is the AI classification capability. It is a black box that may
// return transient errors when rate limited or unavailable.
type Classifier interface {
	Classify(ctx context.Context, content *FullContent, candidateTargets []string) (*ClassificationResult, error)
}

// ResponseDrafter produces a suggested reply for items that need one.
type ResponseDrafter interface {
	Draft(ctx context.Context, content *FullContent, classification *domain.Classification) (string, error)
}

// DecisionCard is the outbound approval prompt. Markup is the channel's rich
// form; PlainText is the degraded fallback when the channel rejects the
// markup.
type DecisionCard struct {
	Title     string
	Markup    string
	PlainText string
	Target    string
	Priority  bool
}

// Notifier delivers decision cards and confirmations on the human channel.
// Send returns the channel's message identifier, which becomes the
// correlation external ref.
type Notifier interface {
	Send(ctx context.Context, recipient string, card *DecisionCard) (externalRef string, err error)
	Confirm(ctx context.Context, recipient string, text string) error
}

// ActionSink performs the final external mutation, e.g. filing the item.
type ActionSink interface {
	Apply(ctx context.Context, itemRef string, target string) error
}

// Collaborators bundles the external dependencies handed to the engine.
type Collaborators struct {
	ContentSource    ContentSource
	Classifier       Classifier
	Drafter          ResponseDrafter
	Notifier         Notifier
	ActionSink       ActionSink
	CandidateTargets []string
}

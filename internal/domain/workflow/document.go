package workflow

import (
	"context"
	"fmt"
	"sync"
)

// DocumentFacts are the document attributes the transition guards look at
type DocumentFacts struct {
	IsDuplicate bool
}

type factsKey struct{}

// WithFacts attaches document facts to ctx for guard evaluation
func WithFacts(ctx context.Context, facts DocumentFacts) context.Context {
	return context.WithValue(ctx, factsKey{}, facts)
}

func factsFrom(ctx context.Context) DocumentFacts {
	facts, _ := ctx.Value(factsKey{}).(DocumentFacts)
	return facts
}

func isDuplicate(ctx context.Context) bool {
	return factsFrom(ctx).IsDuplicate
}

// NewDocumentBuilder returns a builder configured with the document lifecycle:
//
//	staged_unclassified -> processed | needs_review | archived
//	needs_review        -> processed (approve) | rejected (reject)
//	needs_review        -> needs_review (keep both) | rejected (delete new), duplicates only
func NewDocumentBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateStagedUnclassified).
		Permit(TriggerClassifyShortcut, StateProcessed).
		Permit(TriggerClassifyForReview, StateNeedsReview).
		Permit(TriggerArchive, StateArchived)

	b.Configure(StateNeedsReview).
		Permit(TriggerApprove, StateProcessed).
		Permit(TriggerReject, StateRejected).
		PermitReentryIf(TriggerKeepBoth, isDuplicate).
		PermitIf(TriggerDeleteNew, StateRejected, isDuplicate)

	// Terminal states are registered without transitions so that firing
	// from them reports ErrInvalidTransition with the state in the message.
	b.Configure(StateProcessed)
	b.Configure(StateRejected)
	b.Configure(StateArchived)

	return b
}

var (
	documentBuilderOnce sync.Once
	documentBuilder     StateMachineBuilder
)

// NewDocumentMachine builds a document state machine positioned at current
func NewDocumentMachine(current State) StateMachine {
	documentBuilderOnce.Do(func() {
		documentBuilder = NewDocumentBuilder()
	})
	return documentBuilder.Build(current)
}

// Next computes the state reached by firing trigger from current
func Next(ctx context.Context, current State, trigger Trigger, facts DocumentFacts) (State, error) {
	if !current.IsValid() {
		return current, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, current)
	}
	m := NewDocumentMachine(current)
	if err := m.Fire(WithFacts(ctx, facts), trigger); err != nil {
		return current, err
	}
	return m.State(), nil
}

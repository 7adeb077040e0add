package workflow

import (
	"context"
	"sync"
	"testing"
)

func TestNewDocumentMachine_ConcurrentFirstUse(t *testing.T) {
	const n = 16
	var wg sync.WaitGroup
	states := make([]State, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := Next(context.Background(), StateStagedUnclassified, TriggerClassifyForReview, DocumentFacts{})
			if err != nil {
				t.Errorf("Next() unexpected error: %v", err)
				return
			}
			states[i] = got
		}(i)
	}
	wg.Wait()

	for i, s := range states {
		if s != StateNeedsReview {
			t.Errorf("states[%d] = %v, want %v", i, s, StateNeedsReview)
		}
	}
}

func TestNewDocumentMachine_ConfiguresEveryState(t *testing.T) {
	a := NewDocumentMachine(StateStagedUnclassified).(*stateMachine)
	b := NewDocumentMachine(StateNeedsReview).(*stateMachine)

	if len(a.configurations) != len(validStates) {
		t.Errorf("configured states = %d, want %d", len(a.configurations), len(validStates))
	}
	if a.State() != StateStagedUnclassified || b.State() != StateNeedsReview {
		t.Errorf("initial states = %v, %v", a.State(), b.State())
	}
}

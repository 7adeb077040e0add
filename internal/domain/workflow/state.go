package workflow

// State represents a document state in the intake and approval lifecycle.
// Values match the persisted document status strings.
type State string

const (
	StateStagedUnclassified State = "staged_unclassified"
	StateNeedsReview        State = "needs_review"
	StateArchived           State = "archived"
	StateProcessed          State = "processed"
	StateRejected           State = "rejected"
)

var validStates = map[State]bool{
	StateStagedUnclassified: true,
	StateNeedsReview:        true,
	StateArchived:           true,
	StateProcessed:          true,
	StateRejected:           true,
}

var terminalStates = map[State]bool{
	StateArchived:  true,
	StateProcessed: true,
	StateRejected:  true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid document state
func (s State) IsValid() bool {
	return validStates[s]
}

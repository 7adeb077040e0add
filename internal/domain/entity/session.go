package entity

import (
	"fmt"
	"time"
)

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in an assistant conversation
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// PendingActionKind tags the PendingAction variant
type PendingActionKind string

// Pending action kinds
const (
	PendingNone                 PendingActionKind = "none"
	PendingAwaitingConfirmation PendingActionKind = "awaiting_confirmation"
	PendingAwaitingPropertyInfo PendingActionKind = "awaiting_property_info"
)

// AssistantAction is an operation the assistant proposed and has not yet run
type AssistantAction struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// PendingAction is the per-session state carried between turns.
// Kind None never carries an action; the other kinds always do.
type PendingAction struct {
	Kind   PendingActionKind `json:"kind"`
	Action *AssistantAction  `json:"action,omitempty"`
}

// NoPendingAction returns the None variant
func NoPendingAction() PendingAction {
	return PendingAction{Kind: PendingNone}
}

// AwaitingConfirmation returns a variant waiting for the user to confirm action
func AwaitingConfirmation(action AssistantAction) PendingAction {
	return PendingAction{Kind: PendingAwaitingConfirmation, Action: &action}
}

// AwaitingPropertyInfo returns a variant waiting for the user to name a property
func AwaitingPropertyInfo(action AssistantAction) PendingAction {
	return PendingAction{Kind: PendingAwaitingPropertyInfo, Action: &action}
}

// Validate checks the variant invariants
func (p PendingAction) Validate() error {
	switch p.Kind {
	case PendingNone, "":
		if p.Action != nil {
			return fmt.Errorf("pending action of kind none must not carry an action")
		}
		return nil
	case PendingAwaitingConfirmation, PendingAwaitingPropertyInfo:
		if p.Action == nil || p.Action.Name == "" {
			return fmt.Errorf("pending action of kind %s requires a named action", p.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown pending action kind: %s", p.Kind)
	}
}

// IsNone reports whether nothing is pending
func (p PendingAction) IsNone() bool {
	return p.Kind == PendingNone || p.Kind == ""
}

// Session is the conversation state of one assistant session
type Session struct {
	ID        string        `json:"id"`
	Turns     []Turn        `json:"turns"`
	Pending   PendingAction `json:"pending"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Trim keeps only the last maxTurns turns
func (s *Session) Trim(maxTurns int) {
	if maxTurns <= 0 || len(s.Turns) <= maxTurns {
		return
	}
	kept := make([]Turn, maxTurns)
	copy(kept, s.Turns[len(s.Turns)-maxTurns:])
	s.Turns = kept
}

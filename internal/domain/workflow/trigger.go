package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerClassifyShortcut  Trigger = "CLASSIFY_SHORTCUT"
	TriggerClassifyForReview Trigger = "CLASSIFY_FOR_REVIEW"
	TriggerArchive           Trigger = "ARCHIVE"
	TriggerApprove           Trigger = "APPROVE"
	TriggerReject            Trigger = "REJECT"
	TriggerKeepBoth          Trigger = "KEEP_BOTH"
	TriggerDeleteNew         Trigger = "DELETE_NEW"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

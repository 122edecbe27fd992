package clinic

import "time"

// CompletionType records how a call ended. Every entry starts pending and
// is finalized exactly once.
type CompletionType string

const (
	CompletionPending    CompletionType = "pending"
	CompletionCompleted  CompletionType = "completed"
	CompletionWithdrawal CompletionType = "withdrawal"
	CompletionTimedOut   CompletionType = "timed-out"
)

// HistoryEntry is the durable trace of one call: a snapshot of the patient
// at call time plus the eventual outcome. It is the only record that
// survives a patient's removal from the entity store.
type HistoryEntry struct {
	ID          string         `json:"id"`
	Patient     Patient        `json:"patient"`
	CalledAt    time.Time      `json:"calledAt"`
	CalledBy    Station        `json:"calledBy"`
	Completion  CompletionType `json:"completion"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

package store

import (
	"sync"
	"time"

	"clinicware.com/callboard/internal/clinic"
)

// DefaultHistoryLimit bounds the local recent-call window.
const DefaultHistoryLimit = 20

// HistoryLog keeps the bounded local window of recent calls. The shared
// store holds the unbounded copy; this one only feeds the station UI and
// lets completions be finalized without a round trip.
type HistoryLog struct {
	mu      sync.Mutex
	entries []*clinic.HistoryEntry
	limit   int
}

// NewHistoryLog returns a log bounded to limit entries. A non-positive
// limit falls back to DefaultHistoryLimit.
func NewHistoryLog(limit int) *HistoryLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryLog{limit: limit}
}

// Append records a new entry, evicting the oldest once the window is full.
func (h *HistoryLog) Append(e *clinic.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *e
	h.entries = append(h.entries, &cp)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// FinalizePending marks the most recent pending entry for the patient with
// the terminal completion type. It returns the finalized entry's id, or
// false if the patient has no pending entry in the window.
func (h *HistoryLog) FinalizePending(patientID string, c clinic.CompletionType, at time.Time) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		if e.Patient.ID == patientID && e.Completion == clinic.CompletionPending {
			e.Completion = c
			t := at
			e.CompletedAt = &t
			return e.ID, true
		}
	}
	return "", false
}

// Recent returns copies of the window, oldest first.
func (h *HistoryLog) Recent() []clinic.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]clinic.HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		out[i] = *e
	}
	return out
}

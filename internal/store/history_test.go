package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicware.com/callboard/internal/clinic"
)

func historyEntry(id, patientID string, calledAt time.Time) *clinic.HistoryEntry {
	return &clinic.HistoryEntry{
		ID:         id,
		Patient:    clinic.Patient{ID: patientID, Name: "Patient " + patientID},
		CalledAt:   calledAt,
		CalledBy:   clinic.StationTriage,
		Completion: clinic.CompletionPending,
	}
}

func TestHistoryLogBoundedWindow(t *testing.T) {
	h := NewHistoryLog(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		h.Append(historyEntry(fmt.Sprintf("e%d", i), fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	recent := h.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "e2", recent[0].ID)
	assert.Equal(t, "e4", recent[2].ID)
}

func TestFinalizePendingPicksMostRecent(t *testing.T) {
	h := NewHistoryLog(DefaultHistoryLimit)
	base := time.Now()
	h.Append(historyEntry("e1", "p1", base))
	h.Append(historyEntry("e2", "p1", base.Add(time.Minute)))

	at := base.Add(2 * time.Minute)
	id, ok := h.FinalizePending("p1", clinic.CompletionCompleted, at)
	require.True(t, ok)
	assert.Equal(t, "e2", id)

	recent := h.Recent()
	assert.Equal(t, clinic.CompletionPending, recent[0].Completion)
	assert.Equal(t, clinic.CompletionCompleted, recent[1].Completion)
	require.NotNil(t, recent[1].CompletedAt)
	assert.True(t, recent[1].CompletedAt.Equal(at))

	// The older entry is still pending and finalizes on the next call.
	id, ok = h.FinalizePending("p1", clinic.CompletionWithdrawal, at)
	require.True(t, ok)
	assert.Equal(t, "e1", id)

	_, ok = h.FinalizePending("p1", clinic.CompletionCompleted, at)
	assert.False(t, ok)
}

func TestFinalizePendingUnknownPatient(t *testing.T) {
	h := NewHistoryLog(DefaultHistoryLimit)
	h.Append(historyEntry("e1", "p1", time.Now()))

	_, ok := h.FinalizePending("nobody", clinic.CompletionCompleted, time.Now())
	assert.False(t, ok)
}

func TestAppendCopiesEntry(t *testing.T) {
	h := NewHistoryLog(DefaultHistoryLimit)
	e := historyEntry("e1", "p1", time.Now())
	h.Append(e)
	e.Completion = clinic.CompletionWithdrawal

	recent := h.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, clinic.CompletionPending, recent[0].Completion)
}

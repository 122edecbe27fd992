package waittime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/store"
)

const (
	// historyWindow is how far back call history informs the estimate.
	historyWindow = 7 * 24 * time.Hour
	// outlierGap marks an inter-call gap as a session break, not a real
	// wait between patients.
	outlierGap = 2 * time.Hour
	// minAverage and maxAverage clamp a station average to a sane range.
	minAverage = 5 * time.Minute
	maxAverage = 60 * time.Minute
)

// ErrNotQueued is returned when estimating a patient that is not on any
// waiting list.
var ErrNotQueued = errors.New("patient is not on a waiting list")

// HistorySource supplies the shared call history window.
type HistorySource interface {
	Window(ctx context.Context, since time.Time) ([]clinic.HistoryEntry, error)
}

// Estimator derives expected waits from recent call history. It is a
// read-only consumer of the entity store and history; nothing here
// mutates state.
type Estimator struct {
	source HistorySource
	clock  clinic.Clock
}

// New returns an estimator over the history source.
func New(source HistorySource, clock clinic.Clock) *Estimator {
	return &Estimator{source: source, clock: clock}
}

// StationAverage is the mean interval between consecutive calls at the
// station over the last seven days, with session breaks excluded and the
// result clamped to [5, 60] minutes. With fewer than two usable samples
// it falls back to a fixed default.
func (e *Estimator) StationAverage(ctx context.Context, st clinic.Station) (time.Duration, error) {
	since := e.clock.Now().Add(-historyWindow)
	entries, err := e.source.Window(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("load history window: %w", err)
	}

	var calls []time.Time
	for _, entry := range entries {
		if entry.CalledBy == st {
			calls = append(calls, entry.CalledAt)
		}
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Before(calls[j]) })

	var total time.Duration
	var samples int
	for i := 1; i < len(calls); i++ {
		gap := calls[i].Sub(calls[i-1])
		if gap <= 0 || gap > outlierGap {
			continue
		}
		total += gap
		samples++
	}
	if samples == 0 {
		return fallbackFor(st), nil
	}

	avg := total / time.Duration(samples)
	if avg < minAverage {
		return minAverage, nil
	}
	if avg > maxAverage {
		return maxAverage, nil
	}
	return avg, nil
}

func fallbackFor(st clinic.Station) time.Duration {
	switch st {
	case clinic.StationTriage:
		return 15 * time.Minute
	case clinic.StationDoctor:
		return 20 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// Estimate projects the patient's expected wait: queue position times the
// station average, scaled by the priority multiplier (higher priority is
// modeled as served faster per position, on top of skipping ahead).
func (e *Estimator) Estimate(ctx context.Context, patients []*clinic.Patient, patientID string) (time.Duration, error) {
	var target *clinic.Patient
	for _, p := range patients {
		if p.ID == patientID {
			target = p
			break
		}
	}
	if target == nil || !target.Status.IsWaiting() {
		return 0, ErrNotQueued
	}
	st, _ := target.Status.StationFor()

	position := store.QueuePosition(patients, st, patientID)
	if position == 0 {
		return 0, ErrNotQueued
	}

	avg, err := e.StationAverage(ctx, st)
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(position) * float64(avg) * target.Priority.Multiplier()), nil
}

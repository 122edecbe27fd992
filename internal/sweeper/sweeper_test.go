package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type finalized struct {
	entryID    string
	completion clinic.CompletionType
}

type fakeMirror struct {
	removals  []string
	finalized []finalized
}

func (m *fakeMirror) RemoveCall(_ context.Context, patientID string) error {
	m.removals = append(m.removals, patientID)
	return nil
}

func (m *fakeMirror) FinalizeHistory(_ context.Context, entryID string, c clinic.CompletionType) error {
	m.finalized = append(m.finalized, finalized{entryID: entryID, completion: c})
	return nil
}

type fakePurger struct {
	cutoffs []time.Time
}

func (p *fakePurger) PurgeCreatedBefore(_ context.Context, cutoff time.Time) error {
	p.cutoffs = append(p.cutoffs, cutoff)
	return nil
}

type sweepFixture struct {
	sweeper *Sweeper
	store   *store.EntityStore
	history *store.HistoryLog
	mirror  *fakeMirror
	purger  *fakePurger
	clock   *fakeClock
}

func newFixture(now time.Time, timeout time.Duration) *sweepFixture {
	f := &sweepFixture{
		store:   store.NewEntityStore(),
		history: store.NewHistoryLog(store.DefaultHistoryLimit),
		mirror:  &fakeMirror{},
		purger:  &fakePurger{},
		clock:   &fakeClock{now: now},
	}
	f.sweeper = New(f.store, f.history, f.mirror, f.purger, nil, f.clock, DefaultInterval, timeout)
	return f
}

func (f *sweepFixture) addPatient(status clinic.Status, createdAt time.Time, calledAt *time.Time) *clinic.Patient {
	p := &clinic.Patient{
		ID:        uuid.NewString(),
		Name:      "Patient",
		Status:    status,
		Priority:  clinic.PriorityNormal,
		CreatedAt: createdAt,
		CalledAt:  calledAt,
	}
	f.store.Put(p)
	if status.IsActive() {
		if st, ok := status.StationFor(); ok {
			f.store.TakeSlot(st, p.ID)
		}
	}
	return p
}

func TestSweepEvictsNoShowWithoutHistoryEntry(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(now, 10*time.Minute)

	stale := f.addPatient(clinic.StatusWaiting, now.Add(-11*time.Minute), nil)
	fresh := f.addPatient(clinic.StatusWaiting, now.Add(-5*time.Minute), nil)

	f.sweeper.Sweep(context.Background())

	_, ok := f.store.Get(stale.ID)
	assert.False(t, ok)
	_, ok = f.store.Get(fresh.ID)
	assert.True(t, ok)

	// A never-called no-show leaves no trace: eviction writes no history.
	assert.Empty(t, f.history.Recent())
	assert.Empty(t, f.mirror.finalized)
	assert.Contains(t, f.mirror.removals, stale.ID)
}

func TestSweepFinalizesAbandonedCallAsTimedOut(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(now, 10*time.Minute)

	calledAt := now.Add(-15 * time.Minute)
	p := f.addPatient(clinic.StatusInTriage, now.Add(-30*time.Minute), &calledAt)
	f.history.Append(&clinic.HistoryEntry{
		ID:         "entry-1",
		Patient:    *p,
		CalledAt:   calledAt,
		CalledBy:   clinic.StationTriage,
		Completion: clinic.CompletionPending,
	})

	f.sweeper.Sweep(context.Background())

	_, ok := f.store.Get(p.ID)
	assert.False(t, ok)
	_, ok = f.store.SlotOccupant(clinic.StationTriage)
	assert.False(t, ok)

	recent := f.history.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, clinic.CompletionTimedOut, recent[0].Completion)
	require.Len(t, f.mirror.finalized, 1)
	assert.Equal(t, "entry-1", f.mirror.finalized[0].entryID)
	assert.Equal(t, clinic.CompletionTimedOut, f.mirror.finalized[0].completion)
}

func TestSweepKeepsActiveCallWithinTimeout(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(now, 10*time.Minute)

	calledAt := now.Add(-5 * time.Minute)
	p := f.addPatient(clinic.StatusInConsultation, now.Add(-2*time.Hour), &calledAt)
	// Created long ago but still today and recently called: stays.

	f.sweeper.Sweep(context.Background())

	_, ok := f.store.Get(p.ID)
	assert.True(t, ok)
}

func TestSweepEvictsPreviousDayCarryover(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)
	f := newFixture(now, 10*time.Minute)

	yesterday := f.addPatient(clinic.StatusWaitingDoctor, now.Add(-30*time.Minute), nil)

	f.sweeper.Sweep(context.Background())

	_, ok := f.store.Get(yesterday.ID)
	assert.False(t, ok)

	require.Len(t, f.purger.cutoffs, 1)
	assert.True(t, f.purger.cutoffs[0].Equal(clinic.DayStart(now)))
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(now, 10*time.Minute)
	f.addPatient(clinic.StatusWaiting, now.Add(-20*time.Minute), nil)

	f.sweeper.Sweep(context.Background())
	removalsAfterFirst := len(f.mirror.removals)
	f.sweeper.Sweep(context.Background())

	assert.Equal(t, removalsAfterFirst, len(f.mirror.removals))
	assert.Equal(t, 0, f.store.Len())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(time.Now(), 10*time.Minute)
	f.sweeper.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sweeper.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

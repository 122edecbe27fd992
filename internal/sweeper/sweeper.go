package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

const (
	// DefaultInterval is how often each connected client sweeps.
	DefaultInterval = 60 * time.Second
	// DefaultResidencyTimeout is the longest a patient may sit in any
	// waiting or in-progress state before being treated as a no-show or
	// an abandoned call.
	DefaultResidencyTimeout = 10 * time.Minute
)

// Mirror propagates evictions to the shared store and its feed.
type Mirror interface {
	RemoveCall(ctx context.Context, patientID string) error
	FinalizeHistory(ctx context.Context, entryID string, c clinic.CompletionType) error
}

// Purger deletes shared-store rows by filter, used for the day-rollover
// purge so rows from clients that never reconnected still disappear.
type Purger interface {
	PurgeCreatedBefore(ctx context.Context, cutoff time.Time) error
}

// Persister stores a local snapshot after the store is mutated.
type Persister interface {
	Save(snap store.Snapshot) error
}

// Sweeper periodically hard-deletes stale entries: carryover from a
// previous clinic day and entries that exceeded the residency timeout.
// Every connected client runs its own sweeper against the same shared
// store; a sweep is idempotent and safe under that concurrency.
type Sweeper struct {
	store     *store.EntityStore
	history   *store.HistoryLog
	mirror    Mirror
	purger    Purger
	persister Persister
	clock     clinic.Clock
	interval  time.Duration
	timeout   time.Duration
}

// New wires a sweeper. mirror, purger and persister may be nil in tests.
func New(st *store.EntityStore, hist *store.HistoryLog, mirror Mirror, purger Purger, persister Persister, clock clinic.Clock, interval, timeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultResidencyTimeout
	}
	return &Sweeper{
		store:     st,
		history:   hist,
		mirror:    mirror,
		purger:    purger,
		persister: persister,
		clock:     clock,
		interval:  interval,
		timeout:   timeout,
	}
}

// Name identifies the sweeper to the lifecycle supervisor.
func (s *Sweeper) Name() string { return "eviction-sweeper" }

// Run sweeps on a fixed period until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass. Evictions are hard deletes: no new
// HistoryEntry is written, though an entry already pending for an evicted
// call is finalized as timed-out so the outcome is not silently lost.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clock.Now()
	dayStart := clinic.DayStart(now)
	evicted := 0

	for _, p := range s.store.All() {
		reason := s.evictionReason(p, now, dayStart)
		if reason == "" {
			continue
		}
		s.evict(ctx, p, reason, now)
		evicted++
	}

	if evicted > 0 {
		s.persist()
		log.Info().Int("evicted", evicted).Msg("Eviction sweep removed stale entries")
	}

	if s.purger != nil {
		if err := s.purger.PurgeCreatedBefore(ctx, dayStart); err != nil {
			metrics.RecordSyncFailure("purge")
			log.Warn().Err(err).Msg("Failed day-rollover purge of shared store")
		}
	}
}

func (s *Sweeper) evictionReason(p *clinic.Patient, now, dayStart time.Time) string {
	switch {
	case p.CreatedAt.Before(dayStart):
		return "previous-day"
	case p.Status.IsActive() && now.Sub(s.calledRef(p)) > s.timeout:
		return "abandoned-call"
	case p.Status.IsWaiting() && now.Sub(p.CreatedAt) > s.timeout:
		return "no-show"
	}
	return ""
}

// calledRef is the residency reference for an actively-called patient.
func (s *Sweeper) calledRef(p *clinic.Patient) time.Time {
	if p.CalledAt != nil {
		return *p.CalledAt
	}
	return p.CreatedAt
}

func (s *Sweeper) evict(ctx context.Context, p *clinic.Patient, reason string, now time.Time) {
	if entryID, ok := s.history.FinalizePending(p.ID, clinic.CompletionTimedOut, now); ok {
		if s.mirror != nil {
			if err := s.mirror.FinalizeHistory(ctx, entryID, clinic.CompletionTimedOut); err != nil {
				log.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to mirror timed-out completion")
			}
		}
	}
	s.store.Remove(p.ID)
	if s.mirror != nil {
		if err := s.mirror.RemoveCall(ctx, p.ID); err != nil {
			log.Warn().Err(err).Str("patient_id", p.ID).Msg("Failed to mirror eviction")
		}
	}
	metrics.RecordEviction(reason)

	log.Info().
		Str("patient_id", p.ID).
		Str("status", string(p.Status)).
		Str("reason", reason).
		Msg("Evicted stale patient")
}

func (s *Sweeper) persist() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.store.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist snapshot after sweep")
	}
}

package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/feed"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

// CallTable is the durable active/waiting call table of the clinic unit.
type CallTable interface {
	Upsert(ctx context.Context, p *clinic.Patient) error
	Remove(ctx context.Context, patientID string) error
	ListActive(ctx context.Context) ([]*clinic.Patient, error)
}

// HistoryTable is the durable append-only call history of the unit.
type HistoryTable interface {
	Append(ctx context.Context, e *clinic.HistoryEntry) error
	Finalize(ctx context.Context, entryID string, c clinic.CompletionType, at time.Time) error
}

// Publisher broadcasts feed events for the unit.
type Publisher interface {
	Publish(ctx context.Context, ev feed.Event) (string, error)
}

// Syncer mirrors every local mutation to the shared store and broadcasts
// it on the change feed. It implements the dispatch engine's Mirror and
// Announcer collaborators.
type Syncer struct {
	calls   CallTable
	history HistoryTable
	pub     Publisher
	clock   clinic.Clock
}

// NewSyncer wires a syncer over the shared tables and the unit feed.
func NewSyncer(calls CallTable, history HistoryTable, pub Publisher, clock clinic.Clock) *Syncer {
	return &Syncer{calls: calls, history: history, pub: pub, clock: clock}
}

// UpsertCall writes the patient row and broadcasts the change.
func (s *Syncer) UpsertCall(ctx context.Context, p *clinic.Patient) error {
	if err := s.calls.Upsert(ctx, p); err != nil {
		metrics.RecordSyncFailure("upsert")
		return err
	}
	if _, err := s.pub.Publish(ctx, feed.Event{Kind: feed.KindUpsert, Patient: p}); err != nil {
		metrics.RecordSyncFailure("publish")
		return fmt.Errorf("broadcast upsert: %w", err)
	}
	metrics.RecordFeedPublished()
	return nil
}

// RemoveCall deletes the patient row and broadcasts the removal.
func (s *Syncer) RemoveCall(ctx context.Context, patientID string) error {
	if err := s.calls.Remove(ctx, patientID); err != nil {
		metrics.RecordSyncFailure("remove")
		return err
	}
	if _, err := s.pub.Publish(ctx, feed.Event{Kind: feed.KindRemove, PatientID: patientID}); err != nil {
		metrics.RecordSyncFailure("publish")
		return fmt.Errorf("broadcast removal: %w", err)
	}
	metrics.RecordFeedPublished()
	return nil
}

// AppendHistory mirrors a new pending history entry.
func (s *Syncer) AppendHistory(ctx context.Context, e *clinic.HistoryEntry) error {
	if err := s.history.Append(ctx, e); err != nil {
		metrics.RecordSyncFailure("history-append")
		return err
	}
	return nil
}

// FinalizeHistory mirrors a pending entry's terminal outcome.
func (s *Syncer) FinalizeHistory(ctx context.Context, entryID string, c clinic.CompletionType) error {
	if err := s.history.Finalize(ctx, entryID, c, s.clock.Now()); err != nil {
		metrics.RecordSyncFailure("history-finalize")
		return err
	}
	return nil
}

// Announce broadcasts a public call announcement on the feed. Delivery is
// at-most-once per subscriber; the core expects no acknowledgement.
func (s *Syncer) Announce(ctx context.Context, ev clinic.CallEvent) {
	if _, err := s.pub.Publish(ctx, feed.Event{Kind: feed.KindAnnounce, Announcement: &ev}); err != nil {
		metrics.RecordSyncFailure("publish")
		log.Warn().Err(err).Str("patient", ev.PatientName).Msg("Failed to broadcast announcement")
		return
	}
	metrics.RecordAnnouncement()
	metrics.RecordFeedPublished()
}

// Reconcile pulls the unit's current call rows into the local store. Run
// once at client start, after the snapshot restore, so a client that was
// offline catches up without waiting for feed traffic.
func (s *Syncer) Reconcile(ctx context.Context, st *store.EntityStore) error {
	return Bootstrap(ctx, s.calls, st)
}

// Bootstrap merges the unit's current call rows into a local store.
func Bootstrap(ctx context.Context, calls CallTable, st *store.EntityStore) error {
	patients, err := calls.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("reconcile from shared store: %w", err)
	}
	for _, p := range patients {
		applyRemote(st, p)
	}
	log.Info().Int("patients", len(patients)).Msg("Reconciled local store from shared store")
	return nil
}

// applyRemote merges a remote-originated patient record into the local
// store and keeps the slot mirror consistent with its status.
// Reconciliation is id-based: records created on another client carry the
// same uuid everywhere, so no name matching is needed.
func applyRemote(st *store.EntityStore, p *clinic.Patient) {
	st.Put(p)
	if held, ok := st.SlotHeldBy(p.ID); ok {
		if !p.Status.IsActive() {
			st.ClearSlot(held)
		} else if active, _ := p.Status.StationFor(); active != held {
			st.ClearSlot(held)
		}
	}
	if p.Status.IsActive() {
		if active, ok := p.Status.StationFor(); ok {
			st.TakeSlot(active, p.ID)
		}
	}
}

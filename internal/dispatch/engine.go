package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

var (
	// ErrPatientNotFound is returned when the target of a transition is
	// not in the entity store.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrNotWaiting is returned when a call targets a patient that is not
	// queued for the calling station.
	ErrNotWaiting = errors.New("patient is not waiting for this station")
	// ErrSlotEmpty is returned by recall and finish when the station has
	// no current call.
	ErrSlotEmpty = errors.New("station has no current call")
	// ErrQueueEmpty is returned by call-next when nobody is waiting.
	ErrQueueEmpty = errors.New("waiting list is empty")
)

// Announcer receives public call announcements. The core expects no
// acknowledgement; presentation is a collaborator concern.
type Announcer interface {
	Announce(ctx context.Context, ev clinic.CallEvent)
}

// Mirror pushes local mutations to the durable shared store and its change
// feed. Implementations must be safe for sequential use from one engine.
type Mirror interface {
	UpsertCall(ctx context.Context, p *clinic.Patient) error
	RemoveCall(ctx context.Context, patientID string) error
	AppendHistory(ctx context.Context, e *clinic.HistoryEntry) error
	FinalizeHistory(ctx context.Context, entryID string, c clinic.CompletionType) error
}

// Persister stores a local snapshot after every mutation for crash
// recovery.
type Persister interface {
	Save(snap store.Snapshot) error
}

// Engine applies the clinic routing state machine to the entity store.
// Within one client, transitions run to completion under a single mutex;
// cross-client coordination happens only through the mirror and its feed.
type Engine struct {
	mu        sync.Mutex
	store     *store.EntityStore
	history   *store.HistoryLog
	mirror    Mirror
	announcer Announcer
	persister Persister
	clock     clinic.Clock
}

// NewEngine wires an engine. mirror, announcer and persister may be nil in
// read-only or test setups.
func NewEngine(st *store.EntityStore, hist *store.HistoryLog, mirror Mirror, announcer Announcer, persister Persister, clock clinic.Clock) *Engine {
	return &Engine{
		store:     st,
		history:   hist,
		mirror:    mirror,
		announcer: announcer,
		persister: persister,
		clock:     clock,
	}
}

// Register creates a patient at the head of the clinic path, queued for
// triage.
func (e *Engine) Register(ctx context.Context, name string, priority clinic.Priority, observations string) (*clinic.Patient, error) {
	if name == "" {
		return nil, errors.New("patient name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p := &clinic.Patient{
		ID:           uuid.NewString(),
		Name:         name,
		Status:       clinic.StatusWaiting,
		Priority:     priority,
		CreatedAt:    e.clock.Now(),
		Observations: observations,
	}
	e.store.Put(p)
	e.mirrorUpsert(ctx, p)
	e.persist()
	metrics.RecordDispatch("register", "")

	log.Info().
		Str("patient_id", p.ID).
		Str("priority", string(p.Priority)).
		Msg("Patient registered")
	return p.Clone(), nil
}

// Call announces the patient for the station and takes its call slot,
// implicitly releasing the previous occupant.
func (e *Engine) Call(ctx context.Context, patientID string, st clinic.Station, destination string) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.call(ctx, patientID, st, destination)
}

// CallNext calls the head of the station's priority queue.
func (e *Engine) CallNext(ctx context.Context, st clinic.Station, destination string) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := store.WaitingFor(e.store.All(), st)
	if len(queue) == 0 {
		return nil, ErrQueueEmpty
	}
	return e.call(ctx, queue[0].ID, st, destination)
}

func (e *Engine) call(ctx context.Context, patientID string, st clinic.Station, destination string) (*clinic.Patient, error) {
	p, ok := e.store.Get(patientID)
	if !ok {
		return nil, ErrPatientNotFound
	}
	if p.Status != clinic.WaitingStatus(st) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotWaiting, p.ID, p.Status)
	}

	now := e.clock.Now()

	// Releasing the displaced occupant and writing the new active record
	// are two sequential shared-store writes, not one transaction. A
	// concurrent call from another client can interleave here; the
	// resulting double-active row self-heals on the next call.
	if prevID, had := e.store.TakeSlot(st, patientID); had {
		e.releaseDisplaced(ctx, st, prevID)
	}

	p.Status = clinic.ActiveStatus(st)
	p.CalledAt = &now
	p.CalledBy = st
	if destination != "" {
		p.Destination = destination
	}
	e.store.Put(p)

	entry := &clinic.HistoryEntry{
		ID:         uuid.NewString(),
		Patient:    *p.Clone(),
		CalledAt:   now,
		CalledBy:   st,
		Completion: clinic.CompletionPending,
	}
	e.history.Append(entry)
	if e.mirror != nil {
		if err := e.mirror.AppendHistory(ctx, entry); err != nil {
			log.Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to mirror history entry")
		}
	}

	e.mirrorUpsert(ctx, p)
	e.announce(ctx, clinic.CallEvent{
		PatientName: p.Name,
		Station:     st,
		Destination: p.Destination,
		Timestamp:   now,
	})
	e.persist()
	metrics.RecordDispatch("call", string(st))

	log.Info().
		Str("patient_id", p.ID).
		Str("station", string(st)).
		Str("destination", p.Destination).
		Msg("Patient called")
	return p.Clone(), nil
}

// releaseDisplaced finishes the record a new call pushed out of the slot.
func (e *Engine) releaseDisplaced(ctx context.Context, st clinic.Station, prevID string) {
	prev, ok := e.store.Get(prevID)
	if !ok || prev.Status != clinic.ActiveStatus(st) {
		return
	}
	now := e.clock.Now()
	if entryID, ok := e.history.FinalizePending(prevID, clinic.CompletionCompleted, now); ok {
		e.mirrorFinalize(ctx, entryID, clinic.CompletionCompleted)
	}
	e.store.Remove(prevID)
	e.mirrorRemove(ctx, prevID)
}

// Recall re-announces the station's current call without changing state.
func (e *Engine) Recall(ctx context.Context, st clinic.Station) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.SlotOccupant(st)
	if !ok {
		return nil, ErrSlotEmpty
	}
	e.announce(ctx, clinic.CallEvent{
		PatientName: p.Name,
		Station:     st,
		Destination: p.Destination,
		Timestamp:   e.clock.Now(),
	})
	metrics.RecordDispatch("recall", string(st))
	return p, nil
}

// Finish completes the station's current call. Triage routes the patient
// onward to the doctor queue; every other station ends the clinic path and
// removes the record entirely.
func (e *Engine) Finish(ctx context.Context, st clinic.Station) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.SlotOccupant(st)
	if !ok {
		return nil, ErrSlotEmpty
	}
	now := e.clock.Now()
	e.store.ClearSlot(st)
	if entryID, ok := e.history.FinalizePending(p.ID, clinic.CompletionCompleted, now); ok {
		e.mirrorFinalize(ctx, entryID, clinic.CompletionCompleted)
	}

	if st == clinic.StationTriage {
		p.Status = clinic.StatusWaitingDoctor
		e.store.Put(p)
		e.mirrorUpsert(ctx, p)
	} else {
		e.store.Remove(p.ID)
		e.mirrorRemove(ctx, p.ID)
		p = nil
	}
	e.persist()
	metrics.RecordDispatch("finish", string(st))

	log.Info().Str("station", string(st)).Msg("Call finished")
	if p == nil {
		return nil, nil
	}
	return p.Clone(), nil
}

// Withdraw removes the patient from the clinic entirely, whether or not a
// station currently holds them.
func (e *Engine) Withdraw(ctx context.Context, patientID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Get(patientID)
	if !ok {
		return ErrPatientNotFound
	}
	now := e.clock.Now()
	if entryID, ok := e.history.FinalizePending(p.ID, clinic.CompletionWithdrawal, now); ok {
		e.mirrorFinalize(ctx, entryID, clinic.CompletionWithdrawal)
	}
	e.store.Remove(p.ID)
	e.mirrorRemove(ctx, p.ID)
	e.persist()
	metrics.RecordDispatch("withdraw", "")

	log.Info().Str("patient_id", p.ID).Msg("Patient withdrawn")
	return nil
}

// ForwardSilent moves the patient to the target station's waiting list
// without a public announcement.
func (e *Engine) ForwardSilent(ctx context.Context, patientID string, target clinic.Station, destination string) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forward(ctx, patientID, target, destination, false)
}

// ForwardAnnounced moves the patient to the target station's waiting list
// and announces them for the target immediately, modeling a receiving
// station calling a patient the sender already cleared.
func (e *Engine) ForwardAnnounced(ctx context.Context, patientID string, target clinic.Station, destination string) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forward(ctx, patientID, target, destination, true)
}

func (e *Engine) forward(ctx context.Context, patientID string, target clinic.Station, destination string, announced bool) (*clinic.Patient, error) {
	p, ok := e.store.Get(patientID)
	if !ok {
		return nil, ErrPatientNotFound
	}
	now := e.clock.Now()

	if src, held := e.store.SlotHeldBy(p.ID); held {
		e.store.ClearSlot(src)
		if entryID, ok := e.history.FinalizePending(p.ID, clinic.CompletionCompleted, now); ok {
			e.mirrorFinalize(ctx, entryID, clinic.CompletionCompleted)
		}
	}

	p.Status = clinic.WaitingStatus(target)
	if destination != "" {
		p.Destination = destination
	}
	e.store.Put(p)
	e.mirrorUpsert(ctx, p)

	if announced {
		e.announce(ctx, clinic.CallEvent{
			PatientName: p.Name,
			Station:     target,
			Destination: p.Destination,
			Timestamp:   now,
		})
	}
	e.persist()
	metrics.RecordDispatch("forward", string(target))

	log.Info().
		Str("patient_id", p.ID).
		Str("target", string(target)).
		Bool("announced", announced).
		Msg("Patient forwarded")
	return p.Clone(), nil
}

// DirectRoute broadcasts a patient to an un-modeled physical room. Pure
// announcement: no patient record is touched, whether or not one exists.
func (e *Engine) DirectRoute(ctx context.Context, patientName, room string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.announce(ctx, clinic.CallEvent{
		PatientName: patientName,
		Destination: room,
		Timestamp:   e.clock.Now(),
	})
	metrics.RecordDispatch("direct-route", "")
}

// UpdateObservations overwrites the patient's clinical note.
func (e *Engine) UpdateObservations(ctx context.Context, patientID, observations string) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Get(patientID)
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Observations = observations
	e.store.Put(p)
	e.mirrorUpsert(ctx, p)
	e.persist()
	return p.Clone(), nil
}

// SetPriority reclassifies the patient inside its waiting list.
func (e *Engine) SetPriority(ctx context.Context, patientID string, priority clinic.Priority) (*clinic.Patient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Get(patientID)
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Priority = priority
	e.store.Put(p)
	e.mirrorUpsert(ctx, p)
	e.persist()
	return p.Clone(), nil
}

func (e *Engine) announce(ctx context.Context, ev clinic.CallEvent) {
	if e.announcer != nil {
		e.announcer.Announce(ctx, ev)
	}
}

// Mirror and persistence failures never fail a transition: local state
// stays authoritative and the next mutation retries the write.

func (e *Engine) mirrorUpsert(ctx context.Context, p *clinic.Patient) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.UpsertCall(ctx, p); err != nil {
		log.Warn().Err(err).Str("patient_id", p.ID).Msg("Failed to mirror patient upsert")
	}
}

func (e *Engine) mirrorRemove(ctx context.Context, patientID string) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.RemoveCall(ctx, patientID); err != nil {
		log.Warn().Err(err).Str("patient_id", patientID).Msg("Failed to mirror patient removal")
	}
}

func (e *Engine) mirrorFinalize(ctx context.Context, entryID string, c clinic.CompletionType) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.FinalizeHistory(ctx, entryID, c); err != nil {
		log.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to mirror history completion")
	}
}

func (e *Engine) persist() {
	if e.persister == nil {
		return
	}
	if err := e.persister.Save(e.store.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist local snapshot")
	}
}

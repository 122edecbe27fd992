package syncer

import (
	"context"

	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/feed"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

// Source is a change feed subscription.
type Source interface {
	Subscribe(ctx context.Context) (<-chan feed.Event, func(), error)
}

// Subscriber applies the clinic unit's change feed to the local entity
// store. Own-origin echoes and redelivered events are dropped by event id
// before any state is touched.
type Subscriber struct {
	src        Source
	store      *store.EntityStore
	seen       *seenSet
	clientID   string
	onAnnounce func(clinic.CallEvent)
}

// NewSubscriber wires a subscriber. onAnnounce may be nil for clients that
// do not present announcements.
func NewSubscriber(src Source, st *store.EntityStore, clientID string, onAnnounce func(clinic.CallEvent)) *Subscriber {
	return &Subscriber{
		src:        src,
		store:      st,
		seen:       newSeenSet(1024),
		clientID:   clientID,
		onAnnounce: onAnnounce,
	}
}

// Name identifies the subscriber to the lifecycle supervisor.
func (s *Subscriber) Name() string { return "feed-subscriber" }

// Run consumes the feed until the context is cancelled or the subscription
// closes.
func (s *Subscriber) Run(ctx context.Context) error {
	events, stop, err := s.src.Subscribe(ctx)
	if err != nil {
		metrics.RecordSyncFailure("subscribe")
		return err
	}
	defer stop()

	log.Info().Str("client_id", s.clientID).Msg("Change feed subscription started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				log.Warn().Msg("Change feed subscription closed")
				return nil
			}
			s.apply(ev)
		}
	}
}

func (s *Subscriber) apply(ev feed.Event) {
	if !s.seen.Add(ev.EventID) {
		metrics.RecordFeedReceived("duplicate")
		return
	}
	if ev.Origin == s.clientID {
		metrics.RecordFeedReceived("self")
		return
	}

	switch ev.Kind {
	case feed.KindUpsert:
		if ev.Patient == nil {
			metrics.RecordFeedReceived("stale")
			return
		}
		applyRemote(s.store, ev.Patient)
		metrics.RecordFeedReceived("applied")
		log.Debug().
			Str("patient_id", ev.Patient.ID).
			Str("status", string(ev.Patient.Status)).
			Msg("Applied remote upsert")
	case feed.KindRemove:
		if ev.PatientID == "" {
			metrics.RecordFeedReceived("stale")
			return
		}
		s.store.Remove(ev.PatientID)
		metrics.RecordFeedReceived("applied")
		log.Debug().Str("patient_id", ev.PatientID).Msg("Applied remote removal")
	case feed.KindAnnounce:
		if ev.Announcement != nil && s.onAnnounce != nil {
			s.onAnnounce(*ev.Announcement)
		}
		metrics.RecordFeedReceived("applied")
	default:
		metrics.RecordFeedReceived("stale")
		log.Warn().Str("kind", string(ev.Kind)).Msg("Unknown feed event kind")
	}
}

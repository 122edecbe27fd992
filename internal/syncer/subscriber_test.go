package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/feed"
	"clinicware.com/callboard/internal/store"
)

type fakeSource struct {
	events chan feed.Event
	stops  int
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{events: make(chan feed.Event, buffer)}
}

func (f *fakeSource) Subscribe(_ context.Context) (<-chan feed.Event, func(), error) {
	return f.events, func() { f.stops++ }, nil
}

func runSubscriber(t *testing.T, sub *Subscriber) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not stop")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSubscriberAppliesRemoteUpsertAndRemove(t *testing.T) {
	src := newFakeSource(8)
	st := store.NewEntityStore()
	sub := NewSubscriber(src, st, "client-a", nil)
	stop := runSubscriber(t, sub)
	defer stop()

	p := activePatient("p1", clinic.StatusInTriage)
	src.events <- feed.Event{EventID: "ev-1", Origin: "client-b", Kind: feed.KindUpsert, Patient: p}

	waitFor(t, func() bool { _, ok := st.Get("p1"); return ok })
	occ, ok := st.SlotOccupant(clinic.StationTriage)
	require.True(t, ok)
	assert.Equal(t, "p1", occ.ID)

	src.events <- feed.Event{EventID: "ev-2", Origin: "client-b", Kind: feed.KindRemove, PatientID: "p1"}
	waitFor(t, func() bool { _, ok := st.Get("p1"); return !ok })
	_, ok = st.SlotOccupant(clinic.StationTriage)
	assert.False(t, ok)
}

func TestSubscriberSkipsOwnEcho(t *testing.T) {
	src := newFakeSource(8)
	st := store.NewEntityStore()
	sub := NewSubscriber(src, st, "client-a", nil)
	stop := runSubscriber(t, sub)
	defer stop()

	src.events <- feed.Event{EventID: "ev-own", Origin: "client-a", Kind: feed.KindUpsert, Patient: activePatient("p1", clinic.StatusWaiting)}
	// A later remote event proves the echo was processed and skipped.
	src.events <- feed.Event{EventID: "ev-remote", Origin: "client-b", Kind: feed.KindUpsert, Patient: activePatient("p2", clinic.StatusWaiting)}

	waitFor(t, func() bool { _, ok := st.Get("p2"); return ok })
	_, ok := st.Get("p1")
	assert.False(t, ok)
}

func TestSubscriberDropsRedeliveredEvents(t *testing.T) {
	src := newFakeSource(8)
	st := store.NewEntityStore()
	sub := NewSubscriber(src, st, "client-a", nil)
	stop := runSubscriber(t, sub)
	defer stop()

	upsert := feed.Event{EventID: "ev-1", Origin: "client-b", Kind: feed.KindUpsert, Patient: activePatient("p1", clinic.StatusWaiting)}
	src.events <- upsert
	waitFor(t, func() bool { _, ok := st.Get("p1"); return ok })

	st.Remove("p1")
	src.events <- upsert
	src.events <- feed.Event{EventID: "ev-2", Origin: "client-b", Kind: feed.KindUpsert, Patient: activePatient("p2", clinic.StatusWaiting)}

	waitFor(t, func() bool { _, ok := st.Get("p2"); return ok })
	_, ok := st.Get("p1")
	assert.False(t, ok)
}

func TestSubscriberForwardsAnnouncements(t *testing.T) {
	src := newFakeSource(8)
	st := store.NewEntityStore()

	announced := make(chan clinic.CallEvent, 1)
	sub := NewSubscriber(src, st, "client-a", func(ev clinic.CallEvent) { announced <- ev })
	stop := runSubscriber(t, sub)
	defer stop()

	src.events <- feed.Event{
		EventID: "ev-1",
		Origin:  "client-b",
		Kind:    feed.KindAnnounce,
		Announcement: &clinic.CallEvent{
			PatientName: "Ana Souza",
			Station:     clinic.StationDoctor,
			Destination: "room 4",
		},
	}

	select {
	case ev := <-announced:
		assert.Equal(t, "Ana Souza", ev.PatientName)
		assert.Equal(t, clinic.StationDoctor, ev.Station)
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not forwarded")
	}
}

func TestSubscriberStopsWhenFeedCloses(t *testing.T) {
	src := newFakeSource(1)
	sub := NewSubscriber(src, store.NewEntityStore(), "client-a", nil)

	done := make(chan error, 1)
	go func() { done <- sub.Run(context.Background()) }()

	close(src.events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop on feed close")
	}
	assert.Equal(t, 1, src.stops)
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
)

// Kind discriminates the change-feed event payloads.
type Kind string

const (
	// KindUpsert carries a full patient record that was created or mutated.
	KindUpsert Kind = "upsert"
	// KindRemove carries the id of a patient that reached a terminal state.
	KindRemove Kind = "remove"
	// KindAnnounce carries a public call announcement.
	KindAnnounce Kind = "announce"
)

// Event is the envelope delivered to every client subscribed to a clinic
// unit. EventID deduplicates redelivery and the publisher's own echo;
// Origin lets a client skip events it produced itself.
type Event struct {
	EventID      string            `json:"eventId"`
	Origin       string            `json:"origin"`
	Unit         string            `json:"unit"`
	Kind         Kind              `json:"kind"`
	Patient      *clinic.Patient   `json:"patient,omitempty"`
	PatientID    string            `json:"patientId,omitempty"`
	Announcement *clinic.CallEvent `json:"announcement,omitempty"`
}

// Client publishes and subscribes to the change feed of one clinic unit,
// carried over a Redis pub/sub channel.
type Client struct {
	rdb    *redis.Client
	unit   string
	origin string
}

// NewClient returns a feed client for the unit. origin identifies this
// process on every event it publishes.
func NewClient(rdb *redis.Client, unit, origin string) *Client {
	return &Client{rdb: rdb, unit: unit, origin: origin}
}

func channelFor(unit string) string {
	return "clinic:" + unit + ":feed"
}

// Publish assigns the envelope identity fields and broadcasts the event.
func (c *Client) Publish(ctx context.Context, ev Event) (string, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	ev.Origin = c.origin
	ev.Unit = c.unit

	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode feed event: %w", err)
	}
	if err := c.rdb.Publish(ctx, channelFor(c.unit), data).Err(); err != nil {
		return "", fmt.Errorf("publish feed event: %w", err)
	}
	return ev.EventID, nil
}

// Subscribe opens the unit's channel and returns a stream of decoded
// events. The returned stop function closes the subscription and, once
// drained, the channel.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	pubsub := c.rdb.Subscribe(ctx, channelFor(c.unit))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to feed: %w", err)
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("unit", c.unit).Msg("Dropping undecodable feed event")
				continue
			}
			events <- ev
		}
	}()

	stop := func() {
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close feed subscription")
		}
	}
	return events, stop, nil
}

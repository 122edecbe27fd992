package couchbase

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
)

const historyCollection = "history"

// historyDoc is the row shape of the append-only history table.
type historyDoc struct {
	Unit  string               `json:"unit"`
	Entry *clinic.HistoryEntry `json:"entry"`
}

// HistoryStore is the unbounded shared copy of the call history. Entries
// are appended at call time and finalized exactly once when the call ends.
type HistoryStore struct {
	conn *Connection
	unit string
}

// NewHistoryStore returns a history store scoped to the clinic unit.
func NewHistoryStore(conn *Connection, unit string) *HistoryStore {
	return &HistoryStore{conn: conn, unit: unit}
}

func (hs *HistoryStore) docID(entryID string) string {
	return fmt.Sprintf("history::%s::%s", hs.unit, entryID)
}

// Append writes a new history entry.
func (hs *HistoryStore) Append(ctx context.Context, e *clinic.HistoryEntry) error {
	doc := historyDoc{Unit: hs.unit, Entry: e}
	_, err := hs.conn.Collection(historyCollection).Upsert(hs.docID(e.ID), doc, &gocb.UpsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("append history entry %s: %w", e.ID, err)
	}
	return nil
}

// Finalize moves an entry from pending to its terminal completion type.
// The pending guard keeps concurrent finalizers from rewriting an outcome.
func (hs *HistoryStore) Finalize(ctx context.Context, entryID string, c clinic.CompletionType, at time.Time) error {
	statement := fmt.Sprintf(
		"UPDATE %s AS d SET d.entry.completion = $1, d.entry.completedAt = $2 "+
			"WHERE META(d).id = $3 AND d.entry.completion = 'pending'",
		hs.conn.KeyspaceFor(historyCollection),
	)
	rows, err := hs.conn.Query(statement, &gocb.QueryOptions{
		Context: ctx,
		PositionalParameters: []interface{}{
			string(c), at.Format(time.RFC3339Nano), hs.docID(entryID),
		},
	})
	if err != nil {
		return fmt.Errorf("finalize history entry %s: %w", entryID, err)
	}
	return rows.Close()
}

// Window returns every entry of the unit called at or after since, ordered
// by call time. Feeds the wait-time estimator.
func (hs *HistoryStore) Window(ctx context.Context, since time.Time) ([]clinic.HistoryEntry, error) {
	statement := fmt.Sprintf(
		"SELECT d.entry FROM %s AS d WHERE d.unit = $1 AND d.entry.calledAt >= $2 ORDER BY d.entry.calledAt",
		hs.conn.KeyspaceFor(historyCollection),
	)
	rows, err := hs.conn.Query(statement, &gocb.QueryOptions{
		Context:              ctx,
		PositionalParameters: []interface{}{hs.unit, since.Format(time.RFC3339Nano)},
	})
	if err != nil {
		return nil, fmt.Errorf("query history window: %w", err)
	}
	defer rows.Close()

	var out []clinic.HistoryEntry
	for rows.Next() {
		var row struct {
			Entry *clinic.HistoryEntry `json:"entry"`
		}
		if err := rows.Row(&row); err != nil {
			log.Warn().Err(err).Msg("Failed to decode history row")
			continue
		}
		if row.Entry != nil {
			out = append(out, *row.Entry)
		}
	}
	return out, rows.Err()
}

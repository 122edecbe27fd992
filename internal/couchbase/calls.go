package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
)

const callsCollection = "calls"

// callDoc is the row shape of the active/waiting call table. Rows are
// keyed by patient id and scoped to a clinic unit for multi-unit buckets.
type callDoc struct {
	Unit      string          `json:"unit"`
	Patient   *clinic.Patient `json:"patient"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CallStore mirrors the active/waiting call rows of one clinic unit.
type CallStore struct {
	conn *Connection
	unit string
}

// NewCallStore returns a call store scoped to the clinic unit.
func NewCallStore(conn *Connection, unit string) *CallStore {
	return &CallStore{conn: conn, unit: unit}
}

func (cs *CallStore) docID(patientID string) string {
	return fmt.Sprintf("call::%s::%s", cs.unit, patientID)
}

// Upsert writes the patient's current row.
func (cs *CallStore) Upsert(ctx context.Context, p *clinic.Patient) error {
	doc := callDoc{Unit: cs.unit, Patient: p, UpdatedAt: time.Now().UTC()}

	start := time.Now()
	_, err := cs.conn.Collection(callsCollection).Upsert(cs.docID(p.ID), doc, &gocb.UpsertOptions{Context: ctx})
	duration := time.Since(start)

	if err != nil {
		return fmt.Errorf("upsert call row %s: %w", p.ID, err)
	}

	log.Debug().
		Str("patient_id", p.ID).
		Str("status", string(p.Status)).
		Dur("duration", duration).
		Msg("Upserted call row")
	return nil
}

// Remove deletes the patient's row. A row that is already gone is not an
// error: eviction runs on every client against the same table.
func (cs *CallStore) Remove(ctx context.Context, patientID string) error {
	_, err := cs.conn.Collection(callsCollection).Remove(cs.docID(patientID), &gocb.RemoveOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil
		}
		return fmt.Errorf("remove call row %s: %w", patientID, err)
	}
	return nil
}

// ListActive returns every call row of the unit, used by a starting client
// to reconcile its local store.
func (cs *CallStore) ListActive(ctx context.Context) ([]*clinic.Patient, error) {
	statement := fmt.Sprintf(
		"SELECT d.patient FROM %s AS d WHERE d.unit = $1",
		cs.conn.KeyspaceFor(callsCollection),
	)
	rows, err := cs.conn.Query(statement, &gocb.QueryOptions{
		Context:              ctx,
		PositionalParameters: []interface{}{cs.unit},
	})
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	defer rows.Close()

	var out []*clinic.Patient
	for rows.Next() {
		var row struct {
			Patient *clinic.Patient `json:"patient"`
		}
		if err := rows.Row(&row); err != nil {
			log.Warn().Err(err).Msg("Failed to decode call row")
			continue
		}
		if row.Patient != nil {
			out = append(out, row.Patient)
		}
	}
	return out, rows.Err()
}

// PurgeCreatedBefore deletes by filter every row of the unit whose patient
// was registered before the cutoff. Used by the eviction sweeper for the
// day-rollover purge; idempotent by construction.
func (cs *CallStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) error {
	statement := fmt.Sprintf(
		"DELETE FROM %s AS d WHERE d.unit = $1 AND d.patient.createdAt < $2",
		cs.conn.KeyspaceFor(callsCollection),
	)
	rows, err := cs.conn.Query(statement, &gocb.QueryOptions{
		Context:              ctx,
		PositionalParameters: []interface{}{cs.unit, cutoff.Format(time.RFC3339Nano)},
	})
	if err != nil {
		return fmt.Errorf("purge call rows: %w", err)
	}
	return rows.Close()
}

package store

import (
	"sort"

	"clinicware.com/callboard/internal/clinic"
)

// WaitingFor derives the ordered waiting list for a station from a set of
// patient records. It is a pure projection: priority rank ascending, then
// registration time ascending, stable for ties in both fields.
func WaitingFor(patients []*clinic.Patient, st clinic.Station) []*clinic.Patient {
	want := clinic.WaitingStatus(st)
	queue := make([]*clinic.Patient, 0, len(patients))
	for _, p := range patients {
		if p.Status == want {
			queue = append(queue, p)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := queue[i].Priority.Rank(), queue[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})
	return queue
}

// QueuePosition returns the patient's 1-based position in the station's
// waiting list, or 0 if the patient is not queued there.
func QueuePosition(patients []*clinic.Patient, st clinic.Station, patientID string) int {
	for i, p := range WaitingFor(patients, st) {
		if p.ID == patientID {
			return i + 1
		}
	}
	return 0
}

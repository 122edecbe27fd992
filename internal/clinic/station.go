package clinic

import "fmt"

// Station identifies a queue stage with its own waiting list and a
// single-occupancy call slot.
type Station string

const (
	StationTriage   Station = "triage"
	StationDoctor   Station = "doctor"
	StationECG      Station = "ecg"
	StationDressing Station = "dressing"
	StationXRay     Station = "xray"
	StationWard     Station = "ward"
)

// Stations lists every modeled station in routing order.
var Stations = []Station{
	StationTriage,
	StationDoctor,
	StationECG,
	StationDressing,
	StationXRay,
	StationWard,
}

// ParseStation validates a station name coming from the wire.
func ParseStation(s string) (Station, error) {
	for _, st := range Stations {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown station %q", s)
}

// Status is a patient's position in the clinic routing lifecycle. The
// terminal outcomes (attended, withdrawn) are removals, never stored.
type Status string

const (
	StatusWaiting         Status = "waiting"
	StatusInTriage        Status = "in-triage"
	StatusWaitingDoctor   Status = "waiting-doctor"
	StatusInConsultation  Status = "in-consultation"
	StatusWaitingECG      Status = "waiting-ecg"
	StatusInECG           Status = "in-ecg"
	StatusWaitingDressing Status = "waiting-dressing"
	StatusInDressing      Status = "in-dressing"
	StatusWaitingXRay     Status = "waiting-xray"
	StatusInXRay          Status = "in-xray"
	StatusWaitingWard     Status = "waiting-ward"
	StatusInWard          Status = "in-ward"
)

var waitingByStation = map[Station]Status{
	StationTriage:   StatusWaiting,
	StationDoctor:   StatusWaitingDoctor,
	StationECG:      StatusWaitingECG,
	StationDressing: StatusWaitingDressing,
	StationXRay:     StatusWaitingXRay,
	StationWard:     StatusWaitingWard,
}

var activeByStation = map[Station]Status{
	StationTriage:   StatusInTriage,
	StationDoctor:   StatusInConsultation,
	StationECG:      StatusInECG,
	StationDressing: StatusInDressing,
	StationXRay:     StatusInXRay,
	StationWard:     StatusInWard,
}

// WaitingStatus returns the status a patient holds while queued for st.
func WaitingStatus(st Station) Status {
	return waitingByStation[st]
}

// ActiveStatus returns the status a patient holds while being served at st.
func ActiveStatus(st Station) Status {
	return activeByStation[st]
}

// IsWaiting reports whether s is any of the queued statuses.
func (s Status) IsWaiting() bool {
	for _, ws := range waitingByStation {
		if s == ws {
			return true
		}
	}
	return false
}

// IsActive reports whether s is any of the in-progress statuses.
func (s Status) IsActive() bool {
	for _, as := range activeByStation {
		if s == as {
			return true
		}
	}
	return false
}

// StationFor returns the station a status belongs to, waiting or active.
func (s Status) StationFor() (Station, bool) {
	for st, ws := range waitingByStation {
		if s == ws {
			return st, true
		}
	}
	for st, as := range activeByStation {
		if s == as {
			return st, true
		}
	}
	return "", false
}

package clinic

import (
	"fmt"
	"time"
)

// Priority ranks patients inside a waiting list. Lower rank is served first.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityPriority  Priority = "priority"
	PriorityNormal    Priority = "normal"
)

// ParsePriority validates a priority label coming from the wire. An empty
// label defaults to normal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityEmergency, PriorityPriority, PriorityNormal:
		return Priority(s), nil
	case "":
		return PriorityNormal, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Rank returns the sort rank of the priority class.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityPriority:
		return 1
	default:
		return 2
	}
}

// Multiplier models how much faster a priority class moves through a queue
// position when estimating waits.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityEmergency:
		return 0.5
	case PriorityPriority:
		return 0.75
	default:
		return 1.0
	}
}

// Patient is the active record of one person moving through the clinic.
// It exists only between registration and a terminal transition; attended
// and withdrawn patients are removed, leaving a history trace only.
type Patient struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	CreatedAt    time.Time  `json:"createdAt"`
	CalledAt     *time.Time `json:"calledAt,omitempty"`
	CalledBy     Station    `json:"calledBy,omitempty"`
	Destination  string     `json:"destination,omitempty"`
	Observations string     `json:"observations,omitempty"`
}

// Clone returns an independent copy of the patient.
func (p *Patient) Clone() *Patient {
	cp := *p
	if p.CalledAt != nil {
		t := *p.CalledAt
		cp.CalledAt = &t
	}
	return &cp
}

// CallEvent is the ephemeral announcement of a routing decision. It is
// consumed by the public display and audio collaborators and carries no
// state of its own.
type CallEvent struct {
	PatientName string    `json:"patientName"`
	Station     Station   `json:"station"`
	Destination string    `json:"destination,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

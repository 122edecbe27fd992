package api

// Request payloads for the station dispatch API.

type registerRequest struct {
	Name         string `json:"name"`
	Priority     string `json:"priority"`
	Observations string `json:"observations"`
}

type callRequest struct {
	// PatientID is optional: when empty the head of the station's
	// waiting list is called.
	PatientID   string `json:"patientId"`
	Destination string `json:"destination"`
}

type forwardRequest struct {
	Target      string `json:"target"`
	Destination string `json:"destination"`
	Announce    bool   `json:"announce"`
}

type updatePatientRequest struct {
	Observations *string `json:"observations"`
	Priority     *string `json:"priority"`
}

type directRouteRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

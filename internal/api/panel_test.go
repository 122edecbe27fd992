package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

func panelGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestPanelDisplayShowsCurrentCalls(t *testing.T) {
	st := store.NewEntityStore()
	router := SetupPanelRoutes(NewPanelHandlers(st), metrics.GetInstance().Handler())

	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	st.Put(&clinic.Patient{ID: "p1", Name: "Ana", Status: clinic.StatusInTriage, CreatedAt: now, CalledBy: clinic.StationTriage})
	st.TakeSlot(clinic.StationTriage, "p1")

	rec := panelGet(t, router, "/display")
	require.Equal(t, http.StatusOK, rec.Code)

	var current map[clinic.Station]*clinic.Patient
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&current))
	require.Contains(t, current, clinic.StationTriage)
	assert.Equal(t, "Ana", current[clinic.StationTriage].Name)
	assert.NotContains(t, current, clinic.StationDoctor)
}

func TestPanelQueuesGroupedByStation(t *testing.T) {
	st := store.NewEntityStore()
	router := SetupPanelRoutes(NewPanelHandlers(st), metrics.GetInstance().Handler())

	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	st.Put(&clinic.Patient{ID: "t1", Name: "Triage wait", Status: clinic.StatusWaiting, Priority: clinic.PriorityNormal, CreatedAt: now})
	st.Put(&clinic.Patient{ID: "d1", Name: "Doctor wait", Status: clinic.StatusWaitingDoctor, Priority: clinic.PriorityNormal, CreatedAt: now})

	rec := panelGet(t, router, "/display/queues")
	require.Equal(t, http.StatusOK, rec.Code)

	var queues map[clinic.Station][]*clinic.Patient
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&queues))
	require.Len(t, queues[clinic.StationTriage], 1)
	assert.Equal(t, "t1", queues[clinic.StationTriage][0].ID)
	require.Len(t, queues[clinic.StationDoctor], 1)
	assert.Empty(t, queues[clinic.StationECG])
}

func TestPanelHealth(t *testing.T) {
	router := SetupPanelRoutes(NewPanelHandlers(store.NewEntityStore()), metrics.GetInstance().Handler())
	rec := panelGet(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

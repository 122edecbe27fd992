package clinic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationStatusMapping(t *testing.T) {
	tests := []struct {
		station Station
		waiting Status
		active  Status
	}{
		{StationTriage, StatusWaiting, StatusInTriage},
		{StationDoctor, StatusWaitingDoctor, StatusInConsultation},
		{StationECG, StatusWaitingECG, StatusInECG},
		{StationDressing, StatusWaitingDressing, StatusInDressing},
		{StationXRay, StatusWaitingXRay, StatusInXRay},
		{StationWard, StatusWaitingWard, StatusInWard},
	}

	for _, tt := range tests {
		t.Run(string(tt.station), func(t *testing.T) {
			assert.Equal(t, tt.waiting, WaitingStatus(tt.station))
			assert.Equal(t, tt.active, ActiveStatus(tt.station))

			assert.True(t, tt.waiting.IsWaiting())
			assert.False(t, tt.waiting.IsActive())
			assert.True(t, tt.active.IsActive())
			assert.False(t, tt.active.IsWaiting())

			st, ok := tt.waiting.StationFor()
			require.True(t, ok)
			assert.Equal(t, tt.station, st)
			st, ok = tt.active.StationFor()
			require.True(t, ok)
			assert.Equal(t, tt.station, st)
		})
	}
}

func TestParseStation(t *testing.T) {
	st, err := ParseStation("xray")
	require.NoError(t, err)
	assert.Equal(t, StationXRay, st)

	_, err = ParseStation("pharmacy")
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("emergency")
	require.NoError(t, err)
	assert.Equal(t, PriorityEmergency, p)

	p, err = ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, p)

	_, err = ParsePriority("vip")
	assert.Error(t, err)
}

func TestPriorityRankAndMultiplier(t *testing.T) {
	assert.Equal(t, 0, PriorityEmergency.Rank())
	assert.Equal(t, 1, PriorityPriority.Rank())
	assert.Equal(t, 2, PriorityNormal.Rank())

	assert.Equal(t, 0.5, PriorityEmergency.Multiplier())
	assert.Equal(t, 0.75, PriorityPriority.Multiplier())
	assert.Equal(t, 1.0, PriorityNormal.Multiplier())
}

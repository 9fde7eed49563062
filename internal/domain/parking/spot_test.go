package parking_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
)

func TestNewSpot_Defaults(t *testing.T) {
	spot, err := parking.NewSpot(uuid.New(), " A1 ", "", "")
	require.NoError(t, err)

	assert.Equal(t, "A1", spot.SpotNumber())
	assert.Equal(t, parking.SpotRegular, spot.SpotType())
	assert.Equal(t, parking.SpotAvailable, spot.Status())
}

func TestNewSpot_Validation(t *testing.T) {
	_, err := parking.NewSpot(uuid.Nil, "A1", "", "")
	assert.Error(t, err)

	_, err = parking.NewSpot(uuid.New(), "", "", "")
	assert.Error(t, err)

	_, err = parking.NewSpot(uuid.New(), "A1", "motorbike", "")
	assert.Error(t, err)

	_, err = parking.NewSpot(uuid.New(), "A1", "", "closed")
	assert.Error(t, err)
}

func TestSpot_Moves(t *testing.T) {
	tests := []struct {
		name        string
		from        parking.SpotStatus
		move        func(*parking.Spot) (parking.SpotStatus, bool)
		wantStatus  parking.SpotStatus
		wantChanged bool
	}{
		{name: "reserve available", from: parking.SpotAvailable, move: (*parking.Spot).Reserve, wantStatus: parking.SpotReserved, wantChanged: true},
		{name: "reserve occupied is a no-op", from: parking.SpotOccupied, move: (*parking.Spot).Reserve, wantStatus: parking.SpotOccupied},
		{name: "reserve maintenance is a no-op", from: parking.SpotMaintenance, move: (*parking.Spot).Reserve, wantStatus: parking.SpotMaintenance},
		{name: "occupy reserved", from: parking.SpotReserved, move: (*parking.Spot).Occupy, wantStatus: parking.SpotOccupied, wantChanged: true},
		{name: "occupy available", from: parking.SpotAvailable, move: (*parking.Spot).Occupy, wantStatus: parking.SpotOccupied, wantChanged: true},
		{name: "occupy maintenance is a no-op", from: parking.SpotMaintenance, move: (*parking.Spot).Occupy, wantStatus: parking.SpotMaintenance},
		{
			name:        "release occupied to available",
			from:        parking.SpotOccupied,
			move:        func(s *parking.Spot) (parking.SpotStatus, bool) { return s.Release(parking.SpotAvailable) },
			wantStatus:  parking.SpotAvailable,
			wantChanged: true,
		},
		{
			name:       "release leaves maintenance alone",
			from:       parking.SpotMaintenance,
			move:       func(s *parking.Spot) (parking.SpotStatus, bool) { return s.Release(parking.SpotAvailable) },
			wantStatus: parking.SpotMaintenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spot, err := parking.NewSpot(uuid.New(), "A1", parking.SpotRegular, tt.from)
			require.NoError(t, err)

			from, changed := tt.move(spot)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStatus, spot.Status())
		})
	}
}

func TestSpot_SetStatus(t *testing.T) {
	spot, err := parking.NewSpot(uuid.New(), "A1", "", "")
	require.NoError(t, err)

	from, err := spot.SetStatus(parking.SpotMaintenance)
	require.NoError(t, err)
	assert.Equal(t, parking.SpotAvailable, from)
	assert.Equal(t, parking.SpotMaintenance, spot.Status())

	_, err = spot.SetStatus("broken")
	assert.Error(t, err)
	assert.Equal(t, parking.SpotMaintenance, spot.Status())
}

func TestStatusParsing(t *testing.T) {
	_, err := parking.ParseLotStatus("open")
	assert.NoError(t, err)
	_, err = parking.ParseLotStatus("shut")
	assert.Error(t, err)

	_, err = parking.ParseSpotType("ev_charging")
	assert.NoError(t, err)
	_, err = parking.ParseSpotStatus("free")
	assert.Error(t, err)

	assert.True(t, parking.LotFull.AcceptsBookings())
	assert.False(t, parking.LotMaintenance.AcceptsBookings())
	assert.True(t, parking.SpotReserved.Bookable())
	assert.False(t, parking.SpotOccupied.Bookable())
}

package parking

import "fmt"

// LotStatus is the operating state of a parking lot.
type LotStatus string

const (
	LotOpen        LotStatus = "open"
	LotClosed      LotStatus = "closed"
	LotFull        LotStatus = "full"
	LotMaintenance LotStatus = "maintenance"
)

// IsValid returns true if the status is a recognized lot status.
func (s LotStatus) IsValid() bool {
	switch s {
	case LotOpen, LotClosed, LotFull, LotMaintenance:
		return true
	}
	return false
}

// AcceptsBookings returns false for lots that are shut to new reservations.
func (s LotStatus) AcceptsBookings() bool {
	return s == LotOpen || s == LotFull
}

// ParseLotStatus converts a string to a LotStatus.
func ParseLotStatus(s string) (LotStatus, error) {
	status := LotStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid lot status: %s", s)
	}
	return status, nil
}

// SpotStatus is the occupancy state of a parking spot.
type SpotStatus string

const (
	SpotAvailable   SpotStatus = "available"
	SpotOccupied    SpotStatus = "occupied"
	SpotReserved    SpotStatus = "reserved"
	SpotMaintenance SpotStatus = "maintenance"
)

// IsValid returns true if the status is a recognized spot status.
func (s SpotStatus) IsValid() bool {
	switch s {
	case SpotAvailable, SpotOccupied, SpotReserved, SpotMaintenance:
		return true
	}
	return false
}

// Bookable returns true if an explicit booking may target a spot in this status.
func (s SpotStatus) Bookable() bool {
	return s == SpotAvailable || s == SpotReserved
}

// ParseSpotStatus converts a string to a SpotStatus.
func ParseSpotStatus(s string) (SpotStatus, error) {
	status := SpotStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid spot status: %s", s)
	}
	return status, nil
}

// SpotType is the physical category of a spot.
type SpotType string

const (
	SpotCompact    SpotType = "compact"
	SpotRegular    SpotType = "regular"
	SpotLarge      SpotType = "large"
	SpotEVCharging SpotType = "ev_charging"
	SpotHandicap   SpotType = "handicap"
)

// IsValid returns true if the type is a recognized spot type.
func (t SpotType) IsValid() bool {
	switch t {
	case SpotCompact, SpotRegular, SpotLarge, SpotEVCharging, SpotHandicap:
		return true
	}
	return false
}

// ParseSpotType converts a string to a SpotType.
func ParseSpotType(s string) (SpotType, error) {
	t := SpotType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid spot type: %s", s)
	}
	return t, nil
}

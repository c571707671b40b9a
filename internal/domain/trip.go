package domain

import "time"

// TripPurpose is the closed set of reasons a crew plans a trip.
type TripPurpose string

const (
	TripPurposeFamily      TripPurpose = "FAMILY"
	TripPurposeAnniversary TripPurpose = "ANNIVERSARY"
	TripPurposeWork        TripPurpose = "WORK"
	TripPurposeRace        TripPurpose = "RACE"
	TripPurposeFriends     TripPurpose = "FRIENDS"
	TripPurposeCouples     TripPurpose = "COUPLES"
	TripPurposeGeneral     TripPurpose = "GENERAL"
)

func (p TripPurpose) Valid() bool {
	switch p {
	case TripPurposeFamily, TripPurposeAnniversary, TripPurposeWork, TripPurposeRace,
		TripPurposeFriends, TripPurposeCouples, TripPurposeGeneral:
		return true
	}
	return false
}

type Season string

const (
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonFall   Season = "Fall"
	SeasonWinter Season = "Winter"
)

// TripMetadata holds the fields derived from a trip's date range.
type TripMetadata struct {
	Season    Season
	DaysTotal int
	DateRange string
}

// Trip is the domain representation of a crew's trip.
type Trip struct {
	ID     TripID
	CrewID CrewID

	Name        string
	Destination *string
	Purpose     TripPurpose

	StartDate *time.Time // date-only semantics at the edges
	EndDate   *time.Time // date-only semantics at the edges

	// Metadata is nil unless both dates are set.
	Metadata *TripMetadata

	CreatedBy TravelerID
	CreatedAt time.Time
	UpdatedAt time.Time
}

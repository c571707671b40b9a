package domain

// SubjectID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type SubjectID string

// TravelerID is an internal identifier for a traveler record.
type TravelerID string

// CrewID is an internal identifier for a crew record.
type CrewID string

// TripID is an internal identifier for a trip record.
type TripID string

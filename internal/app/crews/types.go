package crews

import (
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

type CreateCrewInput struct {
	Name        string
	Description *string
}

// CrewCreated is returned by CreateCrew.
type CrewCreated struct {
	Crew      domain.Crew
	JoinCode  string
	InviteURL string
}

// InviteLink is the shareable link for a crew.
type InviteLink struct {
	URL string
	// Handle is set when the link uses the crew's handle.
	Handle *string
	// Code is the registry (or legacy) code backing the link when no handle exists.
	Code *string
}

type IssueInviteInput struct {
	// ExpiresAt is optional; nil means the code never expires.
	ExpiresAt *time.Time
}

// Invite is an issued join code together with its URL.
type Invite struct {
	domain.JoinCode
	URL string
}

// Joined is returned by JoinCrew.
type Joined struct {
	CrewID domain.CrewID
}

// BackfillResult summarizes a legacy code backfill run.
type BackfillResult struct {
	Scanned  int
	Inserted int
}

package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

// Requests.

type hydrateTravelerRequest struct {
	Email       *openapi_types.Email `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName *string              `json:"displayName,omitempty" validate:"omitempty,max=200"`
	PhotoURL    *string              `json:"photoUrl,omitempty" validate:"omitempty,url"`
}

type createCrewRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type addMemberRequest struct {
	Email openapi_types.Email `json:"email" validate:"required,email"`
}

type issueInviteRequest struct {
	ExpiresAt nullable.Nullable[time.Time] `json:"expiresAt,omitempty"`
}

type joinRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type createTripRequest struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Destination *string             `json:"destination,omitempty" validate:"omitempty,max=200"`
	Purpose     *string             `json:"purpose,omitempty"`
	StartDate   *openapi_types.Date `json:"startDate,omitempty"`
	EndDate     *openapi_types.Date `json:"endDate,omitempty"`
}

type updateTripRequest struct {
	Name        *string                               `json:"name,omitempty" validate:"omitempty,max=200"`
	Purpose     *string                               `json:"purpose,omitempty"`
	Destination nullable.Nullable[string]             `json:"destination,omitempty"`
	StartDate   nullable.Nullable[openapi_types.Date] `json:"startDate,omitempty"`
	EndDate     nullable.Nullable[openapi_types.Date] `json:"endDate,omitempty"`
}

// Responses.

type travelerDTO struct {
	ID        string               `json:"id"`
	Email     *openapi_types.Email `json:"email"`
	FirstName *string              `json:"firstName"`
	LastName  *string              `json:"lastName"`
	PhotoURL  *string              `json:"photoUrl"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type publicIdentityDTO struct {
	TravelerID string  `json:"travelerId"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	PhotoURL   *string `json:"photoUrl"`
}

type crewDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Handle      *string   `json:"handle"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type createCrewResponse struct {
	Crew      crewDTO `json:"crew"`
	JoinCode  string  `json:"joinCode"`
	InviteURL string  `json:"inviteUrl"`
}

type crewMemberDTO struct {
	publicIdentityDTO
	Email    *openapi_types.Email `json:"email"`
	Roles    []string             `json:"roles"`
	JoinedAt time.Time            `json:"joinedAt"`
}

type crewDetailsResponse struct {
	Crew      crewDTO         `json:"crew"`
	Members   []crewMemberDTO `json:"members"`
	TripCount int             `json:"tripCount"`
}

type crewSummaryDTO struct {
	crewDTO
	MemberCount int `json:"memberCount"`
	TripCount   int `json:"tripCount"`
}

type listCrewsResponse struct {
	Crews []crewSummaryDTO `json:"crews"`
}

type crewPreviewResponse struct {
	ID          string                               `json:"id"`
	Name        string                               `json:"name"`
	Description *string                              `json:"description"`
	MemberCount int                                  `json:"memberCount"`
	TripCount   int                                  `json:"tripCount"`
	Admin       nullable.Nullable[publicIdentityDTO] `json:"admin"`
}

type inviteLinkResponse struct {
	URL    string  `json:"url"`
	Handle *string `json:"handle"`
	Code   *string `json:"code"`
}

type inviteDTO struct {
	Code          string     `json:"code"`
	CrewID        string     `json:"crewId"`
	URL           string     `json:"url"`
	IsActive      bool       `json:"isActive"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt"`
}

type listInvitesResponse struct {
	Invites []inviteDTO `json:"invites"`
}

type joinResponse struct {
	TripCrewID string `json:"tripCrewId"`
}

type tripDTO struct {
	ID          string              `json:"id"`
	CrewID      string              `json:"crewId"`
	Name        string              `json:"name"`
	Destination *string             `json:"destination"`
	Purpose     string              `json:"purpose"`
	StartDate   *openapi_types.Date `json:"startDate"`
	EndDate     *openapi_types.Date `json:"endDate"`
	Season      *string             `json:"season"`
	DaysTotal   *int                `json:"daysTotal"`
	DateRange   *string             `json:"dateRange"`
	CreatedBy   string              `json:"createdBy"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type listTripsResponse struct {
	Trips []tripDTO `json:"trips"`
}

// Conversions.

func emailPtr(s *string) *openapi_types.Email {
	if s == nil {
		return nil
	}
	e := openapi_types.Email(*s)
	return &e
}

func datePtr(t *time.Time) *openapi_types.Date {
	if t == nil {
		return nil
	}
	return &openapi_types.Date{Time: *t}
}

func travelerFromDomain(t domain.Traveler) travelerDTO {
	return travelerDTO{
		ID:        string(t.ID),
		Email:     emailPtr(t.Email),
		FirstName: t.FirstName,
		LastName:  t.LastName,
		PhotoURL:  t.PhotoURL,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func publicIdentityFromDomain(p domain.PublicIdentity) publicIdentityDTO {
	return publicIdentityDTO{
		TravelerID: string(p.TravelerID),
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		PhotoURL:   p.PhotoURL,
	}
}

func crewFromDomain(c domain.Crew) crewDTO {
	return crewDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Handle:      c.Handle,
		CreatedBy:   string(c.CreatedBy),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func crewMemberFromDomain(m domain.CrewMember) crewMemberDTO {
	roles := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, string(r))
	}
	return crewMemberDTO{
		publicIdentityDTO: publicIdentityFromDomain(m.Identity),
		Email:             emailPtr(m.Email),
		Roles:             roles,
		JoinedAt:          m.JoinedAt,
	}
}

func crewPreviewFromDomain(p domain.CrewPreview) crewPreviewResponse {
	out := crewPreviewResponse{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		MemberCount: p.MemberCount,
		TripCount:   p.TripCount,
		Admin:       nullable.NewNullNullable[publicIdentityDTO](),
	}
	if p.Admin != nil {
		out.Admin = nullable.NewNullableWithValue(publicIdentityFromDomain(*p.Admin))
	}
	return out
}

func inviteFromApp(inv crews.Invite) inviteDTO {
	return inviteDTO{
		Code:          inv.Code,
		CrewID:        string(inv.CrewID),
		URL:           inv.URL,
		IsActive:      inv.IsActive,
		ExpiresAt:     inv.ExpiresAt,
		CreatedAt:     inv.CreatedAt,
		DeactivatedAt: inv.DeactivatedAt,
	}
}

func tripFromDomain(t domain.Trip) tripDTO {
	out := tripDTO{
		ID:          string(t.ID),
		CrewID:      string(t.CrewID),
		Name:        t.Name,
		Destination: t.Destination,
		Purpose:     string(t.Purpose),
		StartDate:   datePtr(t.StartDate),
		EndDate:     datePtr(t.EndDate),
		CreatedBy:   string(t.CreatedBy),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Metadata != nil {
		season := string(t.Metadata.Season)
		days := t.Metadata.DaysTotal
		rng := t.Metadata.DateRange
		out.Season = &season
		out.DaysTotal = &days
		out.DateRange = &rng
	}
	return out
}

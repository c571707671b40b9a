package crews

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Error codes returned by this package.
const (
	CodeInviteInvalid      = "INVITE_INVALID"
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeCrewCreateFailed   = "CREW_CREATE_FAILED"
	CodeJoinFailed         = "JOIN_FAILED"
	CodeInviteLookupFailed = "INVITE_LOOKUP_FAILED"
	CodeCrewNotFound       = "CREW_NOT_FOUND"
	CodeTravelerNotFound   = "TRAVELER_NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// errInviteInvalid is shared by every resolution failure so callers cannot tell a missing code
// from an inactive or expired one.
func errInviteInvalid() *Error {
	return &Error{Status: 404, Code: CodeInviteInvalid, Message: "invalid or expired invite"}
}

func errAlreadyMember() *Error {
	return &Error{Status: 409, Code: CodeAlreadyMember, Message: "already a member of this crew"}
}

func errNotAuthorized() *Error {
	return &Error{Status: 403, Code: CodeNotAuthorized, Message: "only crew admins can do this"}
}

func errCrewNotFound() *Error {
	return &Error{Status: 404, Code: CodeCrewNotFound, Message: "crew not found"}
}

func errValidation(field, msg string) *Error {
	return &Error{
		Status:  422,
		Code:    CodeValidation,
		Message: "invalid " + field,
		Details: map[string]any{field: msg},
	}
}

func errTravelerNotFound(field, msg string) *Error {
	return &Error{
		Status:  422,
		Code:    CodeTravelerNotFound,
		Message: "traveler not found",
		Details: map[string]any{field: msg},
	}
}

func errCrewCreateFailed() *Error {
	return &Error{Status: 500, Code: CodeCrewCreateFailed, Message: "could not create crew"}
}

func errJoinFailed() *Error {
	return &Error{Status: 500, Code: CodeJoinFailed, Message: "could not join crew"}
}

func errInviteLookupFailed() *Error {
	return &Error{Status: 500, Code: CodeInviteLookupFailed, Message: "could not look up invite"}
}

func errInternal() *Error {
	return &Error{Status: 500, Code: CodeInternal, Message: "internal error"}
}

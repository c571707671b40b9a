package travelers

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

func errNotProvisioned() *Error {
	return &Error{
		Status:  404,
		Code:    "TRAVELER_NOT_PROVISIONED",
		Message: "No traveler profile exists for the authenticated subject.",
	}
}

func errValidation(field, msg string) *Error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: msg},
	}
}

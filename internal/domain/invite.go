package domain

import (
	"net/url"
	"strings"
)

const (
	// JoinCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// JoinCodeLength is the length of randomly generated join codes.
	JoinCodeLength = 6
)

// NormalizeJoinCode trims and uppercases a user-entered code.
func NormalizeJoinCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// InviteURL builds the shareable invite link for a crew. The handle is preferred; the code
// (uppercased) is used only when no handle is set. It returns "" if neither is available.
func InviteURL(baseURL string, handle *string, code string) string {
	seg := ""
	switch {
	case handle != nil && strings.TrimSpace(*handle) != "":
		seg = strings.TrimSpace(*handle)
	case strings.TrimSpace(code) != "":
		seg = NormalizeJoinCode(code)
	default:
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/join/" + url.PathEscape(seg)
}

// LegacyInviteURL builds the query-string form issued before path-based links existed.
func LegacyInviteURL(baseURL string, code string) string {
	q := url.Values{}
	q.Set("code", NormalizeJoinCode(code))
	return strings.TrimRight(baseURL, "/") + "/join?" + q.Encode()
}

// InviteValueFromURL extracts the slug or code from either invite URL shape.
// It returns "" when rawURL is not an invite link.
func InviteValueFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if strings.HasSuffix(p, "/join") {
		return strings.TrimSpace(u.Query().Get("code"))
	}
	i := strings.LastIndex(p, "/join/")
	if i < 0 {
		return ""
	}
	return p[i+len("/join/"):]
}

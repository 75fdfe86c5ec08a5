package moodle

import "strings"

// Pure response classifiers. Keeping these independent of request execution
// lets the fingerprint logic be tested without a network stack.

type loginOutcome int

const (
	// loginUnknown means neither a rejection nor an acceptance fingerprint
	// matched; callers may consult a secondary signal.
	loginUnknown loginOutcome = iota
	loginRejected
	loginAccepted
)

// classifyLogin maps a login POST response to an outcome.
func classifyLogin(statusCode int, body, finalURL string) loginOutcome {
	if strings.Contains(body, "loginerrors") || strings.Contains(body, "Invalid login") {
		return loginRejected
	}
	if strings.Contains(finalURL, "/my/") ||
		strings.Contains(body, "Dashboard") ||
		strings.Contains(body, "My courses") {
		return loginAccepted
	}
	return loginUnknown
}

// isAdminPage reports whether a response is a rendered site-administration
// page, the fingerprint for privileged access.
func isAdminPage(statusCode int, body string) bool {
	return statusCode == 200 && strings.Contains(body, "Site administration")
}

type resetOutcome int

const (
	// resetSafe covers the generic "If the username and email address
	// match" phrasing and anything else that discloses nothing.
	resetSafe resetOutcome = iota
	resetTooManyUsers
	resetUnknownUsername
)

// classifyResetResponse maps a password-reset POST body to an outcome.
func classifyResetResponse(body string) resetOutcome {
	if strings.Contains(body, "We found too many users with this email address") {
		return resetTooManyUsers
	}
	if strings.Contains(body, "No users have that username") {
		return resetUnknownUsername
	}
	return resetSafe
}

// vulnerableOAuth2Version reports whether a Moodle version string falls in
// the CVE-2023-46806 range (< 4.2.2, < 4.1.5, < 4.0.11). The comparison is
// textual, not semantic: "4.1.10" compares below "4.1.5". That imprecision is
// carried over from the published detection logic on purpose.
func vulnerableOAuth2Version(version string) bool {
	switch {
	case strings.HasPrefix(version, "4.2") && version < "4.2.2":
		return true
	case strings.HasPrefix(version, "4.1") && version < "4.1.5":
		return true
	case strings.HasPrefix(version, "4.0") && version < "4.0.11":
		return true
	}
	return false
}

package moodle

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// minTokenLength is the shortest anti-forgery token value not flagged as weak.
const minTokenLength = 20

// testCSRFWeaknesses inspects the login form's anti-forgery token. The three
// outcomes are mutually exclusive and checked in order: missing field, short
// token, empty token accepted.
func (s *Scanner) testCSRFWeaknesses(ctx context.Context) *common.Finding {
	s.logger.Info("Testing for CSRF token weaknesses...")

	loginURL := s.target + "/login/index.php"

	resp := s.safeRequest(ctx, "GET", loginURL, requestOptions{})
	if resp == nil || resp.StatusCode != 200 {
		s.logger.Debug("Could not access login page")
		return nil
	}

	if !hasLoginTokenField(resp.Body) {
		s.logger.Warn("No CSRF token found in login form!")
		return &common.Finding{
			Title:       "Missing CSRF Protection",
			Description: "The Moodle login form doesn't include CSRF tokens, making it vulnerable to cross-site request forgery attacks.",
			Severity:    common.SeverityHigh,
			Evidence:    "No logintoken field found in the login form.",
			Remediation: "Update to the latest Moodle version which includes proper CSRF protection.",
		}
	}

	token := extractLoginToken(resp.Body)

	if len(token) < minTokenLength {
		s.logger.Warn("CSRF token appears to be weak", "length", len(token))
		return &common.Finding{
			Title:       "Weak CSRF Token",
			Description: "The Moodle CSRF tokens appear to be too short, potentially making them easier to guess or brute force.",
			Severity:    common.SeverityMedium,
			Evidence:    fmt.Sprintf("Login token length is only %d characters.", len(token)),
			Remediation: "Update to the latest Moodle version which includes stronger CSRF protection.",
		}
	}

	// A non-vulnerable target rejects an empty token with a token error.
	// Seeing the login form again without one means the request was
	// processed anyway.
	form := url.Values{}
	form.Set("username", "admin")
	form.Set("password", "wrongpassword")
	form.Set("logintoken", "")

	emptyTokenResp := s.safeRequest(ctx, "POST", loginURL, requestOptions{form: form})
	if emptyTokenResp != nil &&
		strings.Contains(emptyTokenResp.Body, "username") &&
		!strings.Contains(emptyTokenResp.Body, "Invalid token") {
		s.logger.Warn("Empty CSRF token accepted!")
		return &common.Finding{
			Title:       "CSRF Protection Bypass",
			Description: "The Moodle installation appears to accept empty CSRF tokens, making it vulnerable to cross-site request forgery attacks.",
			Severity:    common.SeverityHigh,
			Evidence:    "The system processed a login form with an empty token without reporting a token error.",
			Remediation: "Update to the latest Moodle version and ensure proper CSRF protection is configured.",
		}
	}

	s.logger.Info("No CSRF token weaknesses found")
	return nil
}

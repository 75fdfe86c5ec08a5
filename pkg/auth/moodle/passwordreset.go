package moodle

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// enumUsernames are the candidate accounts probed for enumeration through the
// password-reset form.
var enumUsernames = []string{"admin", "administrator", "root", "user", "student", "teacher"}

const resetHostHeaderDomain = "attacker.com"

// testPasswordReset probes the forgot-password flow for user enumeration and,
// failing that, for Host header injection in reset-link generation.
func (s *Scanner) testPasswordReset(ctx context.Context) *common.Finding {
	s.logger.Info("Testing for password reset vulnerabilities...")

	resetURL := s.target + "/login/forgot_password.php"

	resp := s.safeRequest(ctx, "GET", resetURL, requestOptions{})
	if resp == nil || resp.StatusCode != 200 || !strings.Contains(resp.Body, "Reset password") {
		s.logger.Debug("Password reset functionality not accessible")
		return nil
	}

	token := extractLoginToken(resp.Body)

	for _, username := range enumUsernames {
		form := url.Values{}
		form.Set("username", username)
		form.Set("logintoken", token)

		resetResp := s.safeRequest(ctx, "POST", resetURL, requestOptions{form: form})
		if resetResp == nil {
			continue
		}

		switch classifyResetResponse(resetResp.Body) {
		case resetTooManyUsers:
			return &common.Finding{
				Title:       "User Enumeration via Password Reset",
				Description: "The password reset functionality discloses information about existing usernames.",
				Severity:    common.SeverityMedium,
				Evidence:    fmt.Sprintf("The system indicated multiple users with the same email for username: %s", username),
				Remediation: "Modify the password reset functionality to use generic messages that don't disclose user information.",
			}
		case resetUnknownUsername:
			return &common.Finding{
				Title:       "User Enumeration via Password Reset",
				Description: "The password reset functionality allows enumeration of valid usernames.",
				Severity:    common.SeverityMedium,
				Evidence:    fmt.Sprintf("The system directly indicated that username '%s' doesn't exist.", username),
				Remediation: "Modify the password reset functionality to use generic messages that don't disclose user information.",
			}
		}
	}

	// No enumeration: try Host header manipulation in the reset request.
	// Passive and conservative - only the domain echoing back counts.
	form := url.Values{}
	form.Set("username", "admin")
	form.Set("logintoken", token)

	resetResp := s.safeRequest(ctx, "POST", resetURL, requestOptions{
		form: form,
		headers: map[string]string{
			"Host":             resetHostHeaderDomain,
			"X-Forwarded-Host": resetHostHeaderDomain,
		},
	})

	if resetResp != nil && strings.Contains(resetResp.Body, resetHostHeaderDomain) {
		return &common.Finding{
			Title: "Password Reset Host Header Injection",
			Description: "The password reset functionality may be vulnerable to Host header injection, " +
				"which could allow attackers to receive password reset links for other users.",
			Severity:    common.SeverityHigh,
			Evidence:    "The system accepted a modified Host header in the password reset request.",
			Remediation: "Modify the password reset functionality to use hardcoded URLs rather than ones " +
				"derived from the HTTP Host header.",
		}
	}

	s.logger.Info("No password reset vulnerabilities found")
	return nil
}

package moodle

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/twmb/murmur3"
)

// accountKey derives the opaque attempt-counter key for a username.
func accountKey(username string) uint64 {
	return murmur3.Sum64([]byte(username))
}

// allowAttempt records a login attempt for the account and reports whether it
// may proceed. Once an account reaches maxAttemptsPerAccount the answer stays
// false for the lifetime of the scanner.
func (s *Scanner) allowAttempt(username string) bool {
	key := accountKey(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loginAttempts[key] >= maxAttemptsPerAccount {
		return false
	}
	s.loginAttempts[key]++
	return true
}

// AttemptLogin tries to authenticate with the given credentials and reports
// whether the target accepted them. It is the single gate that consumes the
// per-account attempt budget; an empty username or an exhausted budget
// returns false without sending any request.
func (s *Scanner) AttemptLogin(ctx context.Context, username, password string) bool {
	if username == "" {
		return false
	}

	if !s.allowAttempt(username) {
		s.logger.Debug("Skipping login - maximum attempts reached", "username", username)
		return false
	}

	s.logger.Debug("Testing authentication", "username", username)

	loginURL := s.target + "/login/index.php"

	resp := s.safeRequest(ctx, "GET", loginURL, requestOptions{})
	if resp == nil || resp.StatusCode != 200 {
		s.logger.Debug("Could not access login page", "username", username)
		return false
	}

	// Missing token is submitted as "" on purpose: whether the target
	// requires it is itself under test.
	token := extractLoginToken(resp.Body)

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("logintoken", token)

	resp = s.safeRequest(ctx, "POST", loginURL, requestOptions{form: form})
	if resp == nil {
		return false
	}

	switch classifyLogin(resp.StatusCode, resp.Body, resp.FinalURL) {
	case loginRejected:
		s.logger.Debug("Login failed", "username", username)
		return false
	case loginAccepted:
		s.logger.Info("Login successful", "username", username)
		return true
	}

	// Secondary signal: some privileged logins land on neither the
	// dashboard nor an error page. Check the admin index directly.
	adminResp := s.safeRequest(ctx, "GET", s.target+"/admin/index.php", requestOptions{})
	if adminResp != nil && isAdminPage(adminResp.StatusCode, adminResp.Body) {
		s.logger.Warn("Login successful with ADMIN privileges", "username", username)
		return true
	}

	return false
}

// extractLoginToken pulls the anti-forgery token value out of a login or
// reset form. Returns "" when the field is absent or carries no value.
func extractLoginToken(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	value, _ := doc.Find(`input[name="logintoken"]`).First().Attr("value")
	return value
}

// hasLoginTokenField reports whether the form contains a logintoken field at
// all, with or without a value.
func hasLoginTokenField(body string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(`input[name="logintoken"]`).Length() > 0
}

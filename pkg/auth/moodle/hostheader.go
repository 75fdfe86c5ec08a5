package moodle

import (
	"context"
	"fmt"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// hostBypassHeaders is tried in order against the admin index page.
var hostBypassHeaders = []map[string]string{
	{"Host": "localhost"},
	{"Host": "127.0.0.1"},
	{"X-Forwarded-Host": "localhost"},
	{"X-Forwarded-Host": "127.0.0.1"},
	{"X-Original-URL": "/admin/index.php"},
	{"X-Rewrite-URL": "/admin/index.php"},
}

// testHostHeaderBypass requests the admin page with each header override and
// reports the first combination that yields a rendered administration page.
func (s *Scanner) testHostHeaderBypass(ctx context.Context) *common.Finding {
	s.logger.Info("Testing for Host header authentication bypass...")

	adminURL := s.target + "/admin/index.php"

	for _, headers := range hostBypassHeaders {
		resp := s.safeRequest(ctx, "GET", adminURL, requestOptions{headers: headers})
		if resp == nil {
			continue
		}

		if isAdminPage(resp.StatusCode, resp.Body) {
			s.logger.Warn("Host header authentication bypass successful", "headers", headers)
			return &common.Finding{
				Title:       "Host Header Authentication Bypass",
				Description: "The Moodle installation is vulnerable to authentication bypass via Host header manipulation.",
				Severity:    common.SeverityCritical,
				Evidence:    fmt.Sprintf("Successfully accessed admin area using modified headers: %v", headers),
				Remediation: "Configure the web server to validate Host headers and update Moodle to the latest version.",
			}
		}
	}

	s.logger.Info("No Host header authentication bypass vulnerabilities found")
	return nil
}

package moodle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

// pathRecorder tracks which paths a test server saw.
type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) record(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathRecorder) sawPathContaining(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, path := range p.paths {
		if strings.Contains(path, substr) {
			return true
		}
	}
	return false
}

func TestOAuth2Bypass_VersionShortCircuit(t *testing.T) {
	recorder := &pathRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder.record(r.URL.Path)
		if r.URL.Path == "/auth/oauth2/login.php" {
			fmt.Fprint(w, "<h1>OAuth 2 login</h1>")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})
	scanner.SetVersionInfo(&common.VersionInfo{Version: "4.1.3"})

	finding := scanner.testOAuth2Bypass(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "CVE-2023-46806", finding.CVE)
	assert.Equal(t, common.SeverityCritical, finding.Severity)
	assert.Contains(t, finding.Evidence, "4.1.3")

	// The vulnerable version must short-circuit before any exploitation.
	assert.False(t, recorder.sawPathContaining("callback"))
	assert.False(t, recorder.sawPathContaining("/admin/tool/oauth2"))
}

func TestOAuth2Bypass_NotExposedNoFinding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})
	scanner.SetVersionInfo(&common.VersionInfo{Version: "4.2.5"})

	assert.Nil(t, scanner.testOAuth2Bypass(context.Background()))
}

func TestOAuth2Bypass_PatchedVersionNoShortCircuit(t *testing.T) {
	// Exposed OAuth2 on a patched version falls through to the live
	// attempt; with no state parameter in the redirect nothing happens.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/oauth2/login.php" {
			fmt.Fprint(w, "<h1>OAuth 2 login</h1>")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})
	scanner.SetVersionInfo(&common.VersionInfo{Version: "4.2.2"})

	assert.Nil(t, scanner.testOAuth2Bypass(context.Background()))
}

func TestOAuth2Bypass_LiveExploitation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/oauth2/login.php":
			if r.URL.Query().Get("wantsurl") != "" {
				// Simulate the provider redirect carrying a state value
				http.Redirect(w, r, "/redirected?state=original-state", http.StatusFound)
				return
			}
			fmt.Fprint(w, "<h1>OAuth 2 login</h1>")
		case "/redirected":
			fmt.Fprint(w, "provider login")
		case "/auth/oauth2/callback.php":
			// Vulnerable callback: accepts the forged state
			w.WriteHeader(http.StatusOK)
		case "/admin/index.php":
			fmt.Fprint(w, "<h1>Site administration</h1>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testOAuth2Bypass(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "CVE-2023-46806", finding.CVE)
	assert.Contains(t, finding.Evidence, "state parameter manipulation")
}

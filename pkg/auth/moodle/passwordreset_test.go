package moodle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlesec/moodlescan/pkg/auth/common"
)

func resetPage() string {
	return "Reset password" + loginPage(strongToken)
}

func TestPasswordReset_UnknownUsernameEnumeration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/forgot_password.php" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == "POST" {
			fmt.Fprint(w, "No users have that username")
			return
		}
		fmt.Fprint(w, resetPage())
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testPasswordReset(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "User Enumeration via Password Reset", finding.Title)
	assert.Equal(t, common.SeverityMedium, finding.Severity)
	// First probed username is reported
	assert.Contains(t, finding.Evidence, "'admin'")
}

func TestPasswordReset_TooManyUsersEnumeration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			fmt.Fprint(w, "We found too many users with this email address")
			return
		}
		fmt.Fprint(w, resetPage())
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testPasswordReset(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "User Enumeration via Password Reset", finding.Title)
	assert.Contains(t, finding.Evidence, "multiple users")
}

func TestPasswordReset_HostHeaderInjection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			// Reflects the forwarded host into the confirmation page, the
			// way a reset link built from the Host header would.
			host := r.Header.Get("X-Forwarded-Host")
			if host == "" {
				host = r.Host
			}
			fmt.Fprintf(w, "If the details match, an email was sent with a link to https://%s/login/forgot_password.php", host)
			return
		}
		fmt.Fprint(w, resetPage())
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testPasswordReset(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "Password Reset Host Header Injection", finding.Title)
	assert.Equal(t, common.SeverityHigh, finding.Severity)
}

func TestPasswordReset_GenericMessagesNoFinding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			fmt.Fprint(w, "If you supplied a correct username or email address then an email should have been sent to you.")
			return
		}
		fmt.Fprint(w, resetPage())
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	assert.Nil(t, scanner.testPasswordReset(context.Background()))
}

func TestPasswordReset_FormNotAccessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<h1>Log in</h1>")
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	assert.Nil(t, scanner.testPasswordReset(context.Background()))
}

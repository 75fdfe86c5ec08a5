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

func TestCSRFWeaknesses_MissingTokenField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form><input name="username"><input name="password"></form>`)
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testCSRFWeaknesses(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "Missing CSRF Protection", finding.Title)
	assert.Equal(t, common.SeverityHigh, finding.Severity)
}

func TestCSRFWeaknesses_ShortToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage("short12345"))
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testCSRFWeaknesses(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "Weak CSRF Token", finding.Title)
	assert.Equal(t, common.SeverityMedium, finding.Severity)
	assert.Contains(t, finding.Evidence, "10 characters")
}

func TestCSRFWeaknesses_EmptyTokenAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			// Processes the login regardless of the missing token
			fmt.Fprint(w, loginPage(strongToken)+`<div class="loginerrors">Invalid login</div>`)
			return
		}
		fmt.Fprint(w, loginPage(strongToken))
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	finding := scanner.testCSRFWeaknesses(context.Background())

	require.NotNil(t, finding)
	assert.Equal(t, "CSRF Protection Bypass", finding.Title)
	assert.Equal(t, common.SeverityHigh, finding.Severity)
}

func TestCSRFWeaknesses_ProperProtectionNoFinding(t *testing.T) {
	var gotEmptyTokenPost bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			require.NoError(t, r.ParseForm())
			if r.PostForm.Get("logintoken") == "" {
				gotEmptyTokenPost = true
				fmt.Fprint(w, "Invalid token error, please retry")
				return
			}
			fmt.Fprint(w, `<div class="loginerrors">Invalid login</div>`)
			return
		}
		fmt.Fprint(w, loginPage(strongToken))
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	assert.Nil(t, scanner.testCSRFWeaknesses(context.Background()))
	assert.True(t, gotEmptyTokenPost)
}

func TestCSRFWeaknesses_LoginPageUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scanner := newTestScanner(t, server.URL, Config{})

	assert.Nil(t, scanner.testCSRFWeaknesses(context.Background()))
}

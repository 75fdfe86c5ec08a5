// Package httpclient builds the HTTP sessions the probes run over.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionConfig configures a probe session client.
type SessionConfig struct {
	Timeout   time.Duration
	Proxy     string
	VerifySSL bool
	// Cookies are seeded into the jar for the target URL before the first request.
	Cookies map[string]string
}

// DefaultConfig returns the session defaults used when nothing is overridden.
func DefaultConfig() SessionConfig {
	return SessionConfig{
		Timeout:   30 * time.Second,
		VerifySSL: true,
	}
}

// NewSession creates an HTTP client that behaves like a browser session:
// cookies persist across requests in a public-suffix-aware jar, redirects are
// followed, and the proxy/TLS settings apply to every request.
func NewSession(target string, cfg SessionConfig) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}

	if len(cfg.Cookies) > 0 {
		targetURL, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target URL %q: %w", target, err)
		}
		cookies := make([]*http.Cookie, 0, len(cfg.Cookies))
		for name, value := range cfg.Cookies {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
		jar.SetCookies(targetURL, cookies)
	}

	return client, nil
}

// CloseBody drains and closes a response body so the underlying connection
// can return to the pool.
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

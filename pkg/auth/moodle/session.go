package moodle

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// response is the view of an HTTP exchange the checks classify on: status,
// headers, full body and the URL the session ended up at after redirects.
type response struct {
	StatusCode int
	Header     http.Header
	Body       string
	FinalURL   string
}

// requestOptions carries the per-request extras a check may need.
type requestOptions struct {
	headers map[string]string
	form    url.Values
	query   url.Values
}

// safeRequest sends one paced request through the session and returns nil on
// any transport failure. Callers must treat nil as "could not determine" and
// never as a vulnerability signal.
func (s *Scanner) safeRequest(ctx context.Context, method, rawURL string, opts requestOptions) *response {
	if err := s.pacer.Wait(ctx); err != nil {
		s.logger.Debug("Request pacing interrupted", "url", rawURL, "error", err)
		return nil
	}

	if len(opts.query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + opts.query.Encode()
	}

	var bodyReader io.Reader
	if opts.form != nil {
		bodyReader = strings.NewReader(opts.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		s.logger.Debug("Failed to build request", "url", rawURL, "error", err)
		return nil
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "max-age=0")
	if opts.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range opts.headers {
		if strings.EqualFold(name, "Host") {
			// Host is a request field in net/http, not a plain header
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("Request failed", "url", rawURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Debug("Failed to read response body", "url", rawURL, "error", err)
		return nil
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	s.logger.Debug("HTTP request completed",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
		FinalURL:   finalURL,
	}
}

// sessionCookie returns the current value of the Moodle session cookie held
// by the jar, or "" when none is set.
func (s *Scanner) sessionCookie() string {
	if s.client.Jar == nil {
		return ""
	}
	target, err := url.Parse(s.target + "/")
	if err != nil {
		return ""
	}
	for _, c := range s.client.Jar.Cookies(target) {
		if c.Name == sessionCookieName {
			return c.Value
		}
	}
	return ""
}

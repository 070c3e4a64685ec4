package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 512

// StatusError is returned for non-2xx provider responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func isRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return isRetryableStatus(se.StatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Requester performs JSON GETs against providers with a shared client,
// user agent and retry policy.
type Requester struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	// Backoff is the first retry delay; it doubles on each attempt
	Backoff time.Duration
}

// NewRequester builds a Requester. The http client carries no timeout of its
// own: every lookup is bounded by the context the resolver hands in.
func NewRequester(client *http.Client, userAgent string, maxRetries int) *Requester {
	if client == nil {
		client = &http.Client{}
	}
	return &Requester{
		Client:     client,
		UserAgent:  userAgent,
		MaxRetries: maxRetries,
		Backoff:    250 * time.Millisecond,
	}
}

// GetJSON fetches reqURL and decodes the body into out. Credentials carried
// in the query string are redacted from returned transport errors.
func (r *Requester) GetJSON(ctx context.Context, reqURL string, header http.Header, out any) error {
	backoff := r.Backoff
	for attempt := 0; ; attempt++ {
		resp, raw, err := r.doOnce(ctx, reqURL, header)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("decode response: %w", uErr)
			}
			return nil
		}
		if attempt >= r.MaxRetries || !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		wait := jitter(retryAfter(resp, backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func (r *Requester) doOnce(ctx context.Context, reqURL string, header http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, nil, redactURLError(err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, nil, redactURLError(err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return resp, raw, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp, raw, nil
}

// Query parameters the providers use for credentials
var secretParams = map[string]bool{
	"api_key":       true,
	"app_key":       true,
	"app_id":        true,
	"key":           true,
	"client_secret": true,
	"access_token":  true,
}

// redactURLError masks credential query values in the URL that net/http
// embeds in *url.Error. The error keeps its type so retry and timeout
// checks still see it.
func redactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	urlErr.URL = redactURL(urlErr.URL)
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		// Unparseable, keep the path only
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	q := u.Query()
	changed := false
	for k := range q {
		if secretParams[strings.ToLower(k)] {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	const max = 5 * time.Second
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	return time.Duration(float64(base) - delta + rand.Float64()*2*delta)
}

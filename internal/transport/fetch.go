// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transport performs best-effort HTTP fetches with bounded retries.
// It is deliberately dumb: it knows nothing about key material, it just turns
// a URL into bytes or a failure.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/toeirei/keyfetch/internal/logging"
)

// ErrFetchFailed is wrapped by all errors returned from Fetch once every
// attempt has been exhausted.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher retrieves raw bytes from a URL. Implementations must treat an
// empty body as a failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the production Fetcher. The zero value is not usable;
// construct it with New.
type HTTPFetcher struct {
	client     *http.Client
	retryCount int
	retryDelay time.Duration
	maxTime    time.Duration
}

// New returns an HTTPFetcher that attempts each fetch up to retryCount times
// with a fixed retryDelay between attempts. connectTimeout bounds connection
// establishment, maxTime bounds a whole attempt.
func New(connectTimeout, maxTime time.Duration, retryCount int, retryDelay time.Duration) *HTTPFetcher {
	if retryCount < 1 {
		retryCount = 1
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
		retryCount: retryCount,
		retryDelay: retryDelay,
		maxTime:    maxTime,
	}
}

// Fetch GETs the URL. A fetch is successful only if the server responds with
// a 2xx status and a non-empty body; anything else counts as a failed attempt.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retryCount; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(f.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		logging.Debugf("fetch attempt %d/%d for %s failed: %v", attempt, f.retryCount, url, err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, f.retryCount, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.maxTime)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package notify sends the completion summary to an ntfy-style endpoint.
// Delivery is strictly best-effort: the caller logs a failure and moves on,
// and nothing here may influence the run's outcome.
package notify

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/toeirei/keyfetch/internal/model"
)

// RedactedIP is the default placeholder for the public IP field. Keyfetch
// never looks up the real address on its own.
const RedactedIP = "redacted"

// closingRemarks is the pool the summary's sign-off line is drawn from.
var closingRemarks = []string{
	"Keys are in. Carry on.",
	"Another host, another handshake.",
	"Locks changed, same door.",
	"Access granted. Use it wisely.",
	"The keyring grows.",
}

// Notifier posts a completion summary. Implementations must be safe to call
// exactly once per run.
type Notifier interface {
	Send(ctx context.Context, account string, result model.MergeResult) error
}

// NtfyNotifier publishes to POST <baseURL>/<topic> with ntfy metadata
// headers.
type NtfyNotifier struct {
	client  *http.Client
	baseURL string
	topic   string

	// overridable in tests
	hostname func() (string, error)
	now      func() time.Time
	remark   func() string
}

// New returns a notifier publishing to the given ntfy base URL and topic.
func New(baseURL, topic string, timeout time.Duration) *NtfyNotifier {
	return &NtfyNotifier{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		topic:    topic,
		hostname: os.Hostname,
		now:      time.Now,
		remark: func() string {
			return closingRemarks[rand.Intn(len(closingRemarks))]
		},
	}
}

// Send posts the summary. The response body is not inspected; any non-2xx
// status is reported as an error for the caller to log.
func (n *NtfyNotifier) Send(ctx context.Context, account string, result model.MergeResult) error {
	body := n.formatSummary(account, result)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/"+n.topic, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not build notification request: %w", err)
	}
	req.Header.Set("Title", fmt.Sprintf("SSH keys provisioned for %s", account))
	req.Header.Set("Priority", "default")
	req.Header.Set("Tags", "key,lock")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %s", resp.Status)
	}
	return nil
}

// formatSummary builds the human-readable multi-line notification body.
func (n *NtfyNotifier) formatSummary(account string, result model.MergeResult) string {
	host, err := n.hostname()
	if err != nil {
		host = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s\n", account)
	fmt.Fprintf(&b, "New keys: %d (skipped %d, total %d)\n", result.Added, result.Skipped, result.Total)
	fmt.Fprintf(&b, "Host: %s\n", host)
	fmt.Fprintf(&b, "Public IP: %s\n", RedactedIP)
	fmt.Fprintf(&b, "System: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Time: %s\n", n.now().UTC().Format(time.RFC3339))
	b.WriteString(n.remark())
	return b.String()
}

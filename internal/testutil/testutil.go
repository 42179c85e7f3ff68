// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil provides in-memory fakes and fixture keys used by tests
// to avoid real network operations.
package testutil

import (
	"context"
	"errors"

	"github.com/toeirei/keyfetch/internal/model"
)

// Valid public keys for use across test files.
const (
	// ValidRSAKey is a well-formed RSA public key.
	ValidRSAKey = "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQDQJlMbPPckn2OGPx+z7rkrQF1nHB1BfmmHecBCYr7sL6ozZPZZnRrCNvyu5CL1JmE6Hm4t9K3hGauvgDw0hOzwz5/5OCD6R8ttKoAhekSs2kaLN3Q8pAIWknKKE6dlCJcqJo8mdOcgYUf4SQ3tafGmHXzvWMfWsMKdhH8A6R+RaYOn6KaxU7F9bPKg8QpNhKDQcw5ZgcKkjL9dYoTosXMxJ9ks9zPD3P2LLvV8rV3CdRnO0w3sboaVGmMEYPCU0Rzl1CVFLb/cOJmPNxK1xXfrDKTGDpIMAcr+xNnJwe7ClbADJxVtcBYrKKg3i1s5LZ7RE3pfmLfAOIhXMXJyVXsn user1@example.com"

	// ValidED25519Key is a well-formed ED25519 public key.
	ValidED25519Key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl user2@example.com"

	// InvalidKey fails the recognized-prefix check.
	InvalidKey = "not-a-valid-ssh-key"
)

// FakeFetcher returns canned bytes (or a canned error) and records the URLs
// it was asked for.
type FakeFetcher struct {
	Body []byte
	Err  error
	URLs []string
}

func (f *FakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.URLs = append(f.URLs, url)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Body, nil
}

// FakeNotifier records the summaries it was asked to send.
type FakeNotifier struct {
	Err      error
	Accounts []string
	Results  []model.MergeResult
}

func (n *FakeNotifier) Send(ctx context.Context, account string, result model.MergeResult) error {
	n.Accounts = append(n.Accounts, account)
	n.Results = append(n.Results, result)
	if n.Err != nil {
		return n.Err
	}
	return nil
}

// ErrUnreachable is a reusable transport-style failure for tests.
var ErrUnreachable = errors.New("host unreachable")

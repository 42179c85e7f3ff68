// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the core data types shared across Keyfetch.
package model

import "fmt"

// KeyRecord is a single public key string as retrieved from the remote key
// host, before any local validation. It has no identity beyond its exact
// content; callers are expected to supply trimmed input.
type KeyRecord string

// MergeResult is the outcome of one merge run against the store.
type MergeResult struct {
	Added   int // keys appended to the store in this run
	Skipped int // keys already present (including in-batch duplicates)
	Total   int // recognized key lines in the store after the run
}

// String returns a compact added/skipped/total summary.
func (r MergeResult) String() string {
	return fmt.Sprintf("added=%d skipped=%d total=%d", r.Added, r.Skipped, r.Total)
}

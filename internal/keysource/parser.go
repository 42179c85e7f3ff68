// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keysource turns a key-host API response into a sequence of raw
// public key strings. The primary path decodes the documented JSON shape; a
// pattern-matching fallback handles responses the decoder cannot make sense
// of. Both paths validate every extracted key against the recognized
// algorithm prefixes, so a confused endpoint can never smuggle garbage into
// the merge.
package keysource

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/toeirei/keyfetch/internal/logging"
	"github.com/toeirei/keyfetch/internal/model"
	"github.com/toeirei/keyfetch/internal/sshkey"
)

// ErrParseFailed is wrapped by all fatal parser errors.
var ErrParseFailed = errors.New("parse failed")

// ErrNoKeys indicates the response was readable but contained no usable keys.
// It wraps ErrParseFailed.
var ErrNoKeys = fmt.Errorf("%w: no keys found", ErrParseFailed)

// keyRecord mirrors one entry of the key-host API response. Extra fields
// (id, title, ...) are ignored.
type keyRecord struct {
	Key string `json:"key"`
}

// keyFieldPattern extracts the quoted value of a "key" field from raw text.
// Used only on the fallback path.
var keyFieldPattern = regexp.MustCompile(`"key"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Parse extracts the public keys from a key-host API response, in the order
// received. It returns ErrNoKeys (via errors.Is(err, ErrParseFailed)) when
// the response yields no valid key material.
func Parse(raw []byte) ([]model.KeyRecord, error) {
	if len(raw) == 0 {
		return nil, ErrNoKeys
	}

	keys, err := parseStructured(raw)
	if err != nil {
		logging.Debugf("structured parse failed (%v), falling back to pattern scan", err)
		keys = parsePattern(raw)
	}

	out := make([]model.KeyRecord, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !sshkey.HasRecognizedPrefix(k) {
			logging.Debugf("dropping entry with unrecognized key type: %.24s...", k)
			continue
		}
		out = append(out, model.KeyRecord(k))
	}
	if len(out) == 0 {
		return nil, ErrNoKeys
	}
	return out, nil
}

// parseStructured decodes the documented response shape: a JSON array of
// objects carrying at least a "key" string field.
func parseStructured(raw []byte) ([]string, error) {
	var records []keyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// parsePattern scans the raw bytes for "key": "..." occurrences. It exists
// for responses that are almost-JSON (truncated, concatenated, or wrapped in
// noise) where the structured decoder gives up entirely.
func parsePattern(raw []byte) []string {
	matches := keyFieldPattern.FindAllStringSubmatch(string(raw), -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, unescape(m[1]))
	}
	return keys
}

// unescape undoes the JSON string escapes the pattern may have captured.
func unescape(s string) string {
	var decoded string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &decoded); err != nil {
		return s
	}
	return decoded
}

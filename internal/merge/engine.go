// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package merge orchestrates one provisioning run: prepare the store, back it
// up, fetch and parse the remote keys, merge them in order, notify. The
// ordering is load-bearing: backup precedes any mutation, and fetch/parse
// precede any mutation, so a network or data failure leaves the store
// untouched.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/toeirei/keyfetch/internal/i18n"
	"github.com/toeirei/keyfetch/internal/keysource"
	"github.com/toeirei/keyfetch/internal/logging"
	"github.com/toeirei/keyfetch/internal/model"
	"github.com/toeirei/keyfetch/internal/notify"
	"github.com/toeirei/keyfetch/internal/store"
	"github.com/toeirei/keyfetch/internal/transport"
)

// state tracks the engine's progress through a run. Used for diagnostics;
// the transitions themselves are the sequential statements in Run.
type state int

const (
	stateInit state = iota
	stateDirectoryReady
	stateBackedUp
	stateFetched
	stateParsed
	stateMerged
	stateNotified
	stateDone
	stateFailed
)

var stateNames = map[state]string{
	stateInit:           "init",
	stateDirectoryReady: "directory-ready",
	stateBackedUp:       "backed-up",
	stateFetched:        "fetched",
	stateParsed:         "parsed",
	stateMerged:         "merged",
	stateNotified:       "notified",
	stateDone:           "done",
	stateFailed:         "failed",
}

// Engine runs the fetch-parse-merge-notify sequence against one store.
type Engine struct {
	fetcher  transport.Fetcher
	store    *store.Store
	notifier notify.Notifier

	account string
	keyURL  string
	topic   string

	state state
}

// NewEngine wires a merge engine. keyURL is the key host base URL
// (e.g. https://github.com); the per-account endpoint is derived from it.
func NewEngine(fetcher transport.Fetcher, st *store.Store, notifier notify.Notifier, account, keyURL, topic string) *Engine {
	return &Engine{
		fetcher:  fetcher,
		store:    st,
		notifier: notifier,
		account:  account,
		keyURL:   strings.TrimRight(keyURL, "/"),
		topic:    topic,
		state:    stateInit,
	}
}

// KeysURL returns the endpoint the engine fetches from.
func (e *Engine) KeysURL() string {
	return fmt.Sprintf("%s/users/%s/keys", e.keyURL, e.account)
}

func (e *Engine) transition(next state) {
	logging.Debugf("merge engine: %s -> %s", stateNames[e.state], stateNames[next])
	e.state = next
}

// Run executes one provisioning run to completion. Fetch and parse failures
// are fatal and returned; notification failures are logged and swallowed.
// On a fatal failure the store content is exactly as it was before the run,
// aside from the idempotent permission normalization and the backup.
func (e *Engine) Run(ctx context.Context) (model.MergeResult, error) {
	var result model.MergeResult

	// Init -> DirectoryReady
	if err := e.store.EnsureDir(); err != nil {
		e.transition(stateFailed)
		return result, err
	}
	if err := e.store.EnsureFile(); err != nil {
		e.transition(stateFailed)
		return result, err
	}
	e.transition(stateDirectoryReady)

	// The advisory lock spans everything that reads or mutates the store.
	if err := e.store.Lock(); err != nil {
		e.transition(stateFailed)
		return result, err
	}
	defer e.store.Unlock()

	// DirectoryReady -> BackedUp
	backupPath, err := e.store.Backup()
	if err != nil {
		e.transition(stateFailed)
		return result, err
	}
	if backupPath != "" {
		logging.Info(i18n.T("store.backup_created", backupPath))
	}
	e.transition(stateBackedUp)

	// BackedUp -> Fetched
	raw, err := e.fetcher.Fetch(ctx, e.KeysURL())
	if err != nil {
		e.transition(stateFailed)
		return result, err
	}
	e.transition(stateFetched)

	// Fetched -> Parsed
	keys, err := keysource.Parse(raw)
	if err != nil {
		e.transition(stateFailed)
		return result, err
	}
	e.transition(stateParsed)

	// Parsed -> Merged. Strictly sequential and order-preserving: each
	// Contains check observes the appends already made in this run, so
	// in-batch duplicates are deduplicated too.
	for _, key := range keys {
		line := strings.TrimSpace(string(key))
		if line == "" {
			continue
		}
		exists, err := e.store.Contains(line)
		if err != nil {
			e.transition(stateFailed)
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}
		if err := e.store.Append(line); err != nil {
			e.transition(stateFailed)
			return result, err
		}
		result.Added++
	}
	total, err := e.store.CountKeysByPrefix()
	if err != nil {
		e.transition(stateFailed)
		return result, err
	}
	result.Total = total
	e.transition(stateMerged)

	// Merged -> Notified. Best-effort by contract.
	if e.notifier != nil {
		if err := e.notifier.Send(ctx, e.account, result); err != nil {
			logging.Warn(i18n.T("run.notify_failed", err))
		} else {
			logging.Info(i18n.T("run.notify_sent", e.topic))
		}
	}
	e.transition(stateNotified)

	e.transition(stateDone)
	return result, nil
}

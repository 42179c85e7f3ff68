// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package store owns the on-disk authorized_keys file: its existence, its
// permission modes, its backups, and every mutation made to it. Nothing else
// in Keyfetch writes to the file.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/toeirei/keyfetch/internal/logging"
	"github.com/toeirei/keyfetch/internal/sshkey"
)

const (
	// FileName is the authorized_keys file managed by the store.
	FileName = "authorized_keys"

	dirMode  = os.FileMode(0700)
	fileMode = os.FileMode(0600)

	// backupTimeLayout yields UTC timestamps at second granularity. A
	// collision between two runs within the same second is accepted; the
	// first backup wins and is never overwritten.
	backupTimeLayout = "20060102_150405"
)

// Store manages a single authorized_keys file and its containing directory.
// It assumes at most one Keyfetch instance operates on the target at a time
// and enforces that with an advisory lock.
type Store struct {
	dir  string
	lock *flock.Flock

	// now is swappable for backup timestamp tests.
	now func() time.Time
}

// New returns a Store rooted at dir (typically ~/.ssh). No filesystem
// activity happens until EnsureDir is called.
func New(dir string) *Store {
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, FileName+".lock")),
		now:  time.Now,
	}
}

// Path returns the full path of the managed authorized_keys file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Dir returns the containing directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the containing directory if absent and normalizes its
// permission mode to owner-only rwx. Idempotent.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("could not create %s: %w", s.dir, err)
	}
	// MkdirAll does not touch the mode of a pre-existing directory.
	if err := os.Chmod(s.dir, dirMode); err != nil {
		return fmt.Errorf("could not set mode on %s: %w", s.dir, err)
	}
	return nil
}

// EnsureFile creates the authorized_keys file if absent (empty) and
// normalizes its permission mode to owner-only rw. Idempotent.
func (s *Store) EnsureFile() error {
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", s.Path(), err)
	}
	f.Close()
	if err := os.Chmod(s.Path(), fileMode); err != nil {
		return fmt.Errorf("could not set mode on %s: %w", s.Path(), err)
	}
	return nil
}

// Lock takes the advisory lock guarding the store. It must be held across
// the whole setup..merge span.
func (s *Store) Lock() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock %s: %w", s.lock.Path(), err)
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *Store) Unlock() {
	if err := s.lock.Unlock(); err != nil {
		logging.Warnf("could not release lock %s: %v", s.lock.Path(), err)
	}
}

// Backup copies a non-empty authorized_keys file to a sibling suffixed with
// a UTC timestamp, mode 0600. It is a silent no-op when the file is absent
// or empty, and never overwrites an existing backup. Returns the backup path
// ("" when skipped).
func (s *Store) Backup() (string, error) {
	content, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("could not read %s for backup: %w", s.Path(), err)
	}
	if len(content) == 0 {
		return "", nil
	}

	backupPath := s.Path() + ".backup_" + s.now().UTC().Format(backupTimeLayout)
	if _, err := os.Stat(backupPath); err == nil {
		logging.Debugf("backup %s already exists, keeping it", backupPath)
		return backupPath, nil
	}
	if err := os.WriteFile(backupPath, content, fileMode); err != nil {
		return "", fmt.Errorf("could not write backup %s: %w", backupPath, err)
	}
	return backupPath, nil
}

// Lines returns the trimmed lines currently in the file, in order.
func (s *Store) Lines() ([]string, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", s.Path(), err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", s.Path(), err)
	}
	return lines, nil
}

// Contains reports whether the exact key already exists in the file as a
// whole line. Matching is line-exact on trimmed content; substring matching
// would false-positive on keys that appear inside another line's comment.
func (s *Store) Contains(key string) (bool, error) {
	lines, err := s.Lines()
	if err != nil {
		return false, err
	}
	key = strings.TrimSpace(key)
	for _, line := range lines {
		if line == key {
			return true, nil
		}
	}
	return false, nil
}

// Append adds one key as a new line at the end of the file. Existing lines
// are never reordered or rewritten; the write is a single append-mode call
// so a killed run can not leave a partial line behind beyond what the
// filesystem itself allows.
func (s *Store) Append(key string) error {
	entry := strings.TrimSpace(key) + "\n"
	if missing, err := s.missingTrailingNewline(); err != nil {
		return err
	} else if missing {
		// Do not glue the new key onto an unterminated last line.
		entry = "\n" + entry
	}

	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("could not open %s for append: %w", s.Path(), err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("could not append to %s: %w", s.Path(), err)
	}
	return nil
}

// missingTrailingNewline reports whether the file is non-empty and its last
// byte is not a newline.
func (s *Store) missingTrailingNewline() (bool, error) {
	content, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("could not read %s: %w", s.Path(), err)
	}
	return len(content) > 0 && content[len(content)-1] != '\n', nil
}

// CountKeysByPrefix counts the lines that look like public keys. This is
// informational only; it never drives merge decisions.
func (s *Store) CountKeysByPrefix() (int, error) {
	lines, err := s.Lines()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range lines {
		if sshkey.HasRecognizedPrefix(line) {
			count++
		}
	}
	return count, nil
}

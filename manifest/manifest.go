// Copyright 2022-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package manifest tracks per-security download status across runs. The
// manifest is persisted as a flat CSV table so an interrupted run can
// resume where it left off, losing at most one checkpoint interval of
// progress.
package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/penny-vault/import-eod/artifact"
	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/rs/zerolog/log"
)

// Status is the download state of a single security
type Status string

const (
	Pending Status = "pending"
	Done    Status = "done"
	Empty   Status = "empty"
	Failed  Status = "failed"
)

// Terminal reports whether the status is a final job outcome
func (s Status) Terminal() bool {
	return s == Done || s == Empty || s == Failed
}

// Entry is the manifest row for one security
type Entry struct {
	Security    eod.Security
	Status      Status
	Checksum    string
	LastAttempt time.Time
}

// Manifest is the ordered collection of entries for one market. Update
// is the only mutation path; Checkpoint snapshots under the lock and
// writes outside it so persistence never races in-memory updates.
type Manifest struct {
	cfg *market.Config

	mu      sync.Mutex
	entries []*Entry
	index   map[string]*Entry
}

var csvHeader = []string{"id", "name", "status", "checksum", "last_attempt"}

// Path returns the manifest file location for a market
func Path(cfg *market.Config) string {
	short := strings.TrimSuffix(string(cfg.Market), "-share")
	return filepath.Join(cfg.ListDir, fmt.Sprintf("%s_manifest.csv", short))
}

// Build creates the manifest for a run. When a persisted manifest
// exists it is loaded verbatim so the run resumes exactly where the
// prior one stopped; set rebuild to discard it and start from the
// freshly resolved list. On a fresh build every security starts Pending
// and any security whose artifact already passes the size check is
// flipped to Done without a network request.
func Build(cfg *market.Config, list *eod.SecurityList, store *artifact.Store, rebuild bool) (*Manifest, error) {
	if !rebuild {
		if m, err := Load(cfg); err == nil {
			log.Info().
				Str("Market", string(cfg.Market)).
				Int("NumEntries", m.Len()).
				Msg("resuming from persisted manifest")
			return m, nil
		}
	}

	m := &Manifest{
		cfg:   cfg,
		index: make(map[string]*Entry, len(list.Securities)),
	}
	for _, sec := range list.Securities {
		if _, ok := m.index[sec.ID]; ok {
			continue
		}
		entry := &Entry{Security: sec, Status: Pending}
		m.entries = append(m.entries, entry)
		m.index[sec.ID] = entry
	}

	// artifacts left by a prior (possibly interrupted) run count as done
	existing := store.Scan()
	recovered := 0
	for id := range existing {
		if entry, ok := m.index[id]; ok && entry.Status == Pending {
			entry.Status = Done
			recovered++
		}
	}
	if recovered > 0 {
		log.Info().
			Str("Market", string(cfg.Market)).
			Int("NumRecovered", recovered).
			Msg("marked existing artifacts done")
	}

	if err := m.Checkpoint(); err != nil {
		// persistence failure is not fatal; the run proceeds in memory
		log.Warn().Err(err).Msg("could not write initial manifest checkpoint")
	}

	return m, nil
}

// Load reads a persisted manifest verbatim
func Load(cfg *market.Config) (*Manifest, error) {
	fh, err := os.Open(Path(cfg))
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("corrupt manifest %s: %w", Path(cfg), err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("manifest %s is empty", Path(cfg))
	}

	m := &Manifest{
		cfg:   cfg,
		index: make(map[string]*Entry, len(rows)),
	}
	for _, row := range rows[1:] {
		if len(row) < len(csvHeader) {
			continue
		}
		entry := &Entry{
			Security: eod.Security{ID: row[0], Name: row[1], Market: cfg.Market},
			Status:   Status(row[2]),
			Checksum: row[3],
		}
		if row[4] != "" {
			if ts, err := time.Parse(time.RFC3339, row[4]); err == nil {
				entry.LastAttempt = ts
			}
		}
		if _, ok := m.index[entry.Security.ID]; ok {
			continue
		}
		m.entries = append(m.entries, entry)
		m.index[entry.Security.ID] = entry
	}

	return m, nil
}

// Update records the terminal outcome for a security. It is called
// exactly once per completed job.
func (m *Manifest) Update(id string, status Status, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.index[id]
	if !ok {
		log.Warn().Str("ID", id).Msg("update for unknown manifest entry")
		return
	}
	entry.Status = status
	entry.Checksum = checksum
	entry.LastAttempt = time.Now()
}

// Pending returns the securities that still need processing, in
// manifest order
func (m *Manifest) Pending() []eod.Security {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]eod.Security, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.Status == Pending {
			pending = append(pending, entry.Security)
		}
	}
	return pending
}

// Len returns the total number of entries
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Counts tallies entries by status
func (m *Manifest) Counts() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[Status]int, 4)
	for _, entry := range m.entries {
		counts[entry.Status]++
	}
	return counts
}

// Status returns the current status of a security id
func (m *Manifest) Status(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.index[id]
	if !ok {
		return "", false
	}
	return entry.Status, true
}

// Checkpoint persists the manifest atomically. A snapshot is taken
// under the lock; the file write happens outside it.
func (m *Manifest) Checkpoint() error {
	m.mu.Lock()
	rows := make([][]string, 0, len(m.entries))
	for _, entry := range m.entries {
		lastAttempt := ""
		if !entry.LastAttempt.IsZero() {
			lastAttempt = entry.LastAttempt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			entry.Security.ID,
			entry.Security.Name,
			string(entry.Status),
			entry.Checksum,
			lastAttempt,
		})
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.cfg.ListDir, 0755); err != nil {
		return fmt.Errorf("could not create list dir: %w", err)
	}

	tmp, err := os.CreateTemp(m.cfg.ListDir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvHeader); err != nil {
		tmp.Close()
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, Path(m.cfg))
}

// Summarize aggregates final entry statuses into run statistics:
// success counts done entries, fail counts empty and failed ones
func (m *Manifest) Summarize() eod.RunStats {
	counts := m.Counts()
	return eod.RunStats{
		Market:  m.cfg.Market,
		Total:   m.Len(),
		Success: counts[Done],
		Fail:    counts[Empty] + counts[Failed],
		Empty:   counts[Empty],
		Failed:  counts[Failed],
	}
}

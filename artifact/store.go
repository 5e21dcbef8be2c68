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

// Package artifact manages the per-security CSV files that hold daily
// price history. Writes are atomic (temp file then rename) so a partial
// download can never satisfy a later size check.
package artifact

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// Store reads and writes price history artifacts for one market
type Store struct {
	cfg *market.Config
}

// NewStore creates a Store and ensures the data directory exists
func NewStore(cfg *market.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}
	return &Store{cfg: cfg}, nil
}

// Filename encodes a security into its artifact filename. Markets that
// share a numeric id namespace carry the display name next to the id so
// the file remains identifiable; the rest use id plus a market suffix.
func (s *Store) Filename(sec eod.Security) string {
	if s.cfg.NameInFilename {
		return fmt.Sprintf("%s_%s.csv", sec.ID, sanitizeName(sec.Name))
	}
	return sec.ID + s.cfg.FileSuffix + ".csv"
}

// DecodeFilename recovers the security id from an artifact filename; ok
// is false when the filename does not follow this market's encoding
func (s *Store) DecodeFilename(name string) (string, bool) {
	if !strings.HasSuffix(name, ".csv") {
		return "", false
	}
	name = strings.TrimSuffix(name, ".csv")
	if s.cfg.NameInFilename {
		idx := strings.Index(name, "_")
		if idx <= 0 {
			return "", false
		}
		return name[:idx], true
	}
	if s.cfg.FileSuffix != "" {
		if !strings.HasSuffix(name, s.cfg.FileSuffix) {
			return "", false
		}
		name = strings.TrimSuffix(name, s.cfg.FileSuffix)
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// Path returns the absolute artifact path for a security
func (s *Store) Path(sec eod.Security) string {
	return filepath.Join(s.cfg.DataDir, s.Filename(sec))
}

// Fresh reports whether the on-disk artifact satisfies this market's
// freshness policy and no new request is needed
func (s *Store) Fresh(sec eod.Security) bool {
	fi, err := os.Stat(s.Path(sec))
	if err != nil {
		return false
	}
	if fi.Size() < s.cfg.MinArtifactBytes {
		return false
	}
	if s.cfg.Freshness == market.SizeAndAge {
		return time.Since(fi.ModTime()) < s.cfg.ArtifactExpiry
	}
	return true
}

// Valid reports whether the artifact exists and passes the minimum size
// sanity check; unlike Fresh it ignores age, so it is the check used
// when rebuilding a manifest from disk
func (s *Store) Valid(sec eod.Security) bool {
	fi, err := os.Stat(s.Path(sec))
	return err == nil && fi.Size() >= s.cfg.MinArtifactBytes
}

// Write persists a price series atomically and returns the blake3
// checksum of the written file
func (s *Store) Write(sec eod.Security, bars []eod.Bar) (string, error) {
	outPath := s.Path(sec)

	tmp, err := os.CreateTemp(s.cfg.DataDir, "."+sec.ID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("could not create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := blake3.New()
	w := csv.NewWriter(io.MultiWriter(tmp, hasher))

	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return "", err
	}
	for _, bar := range bars {
		row := []string{
			bar.Date.Format("2006-01-02"),
			strconv.FormatFloat(bar.Open, 'f', -1, 64),
			strconv.FormatFloat(bar.High, 'f', -1, 64),
			strconv.FormatFloat(bar.Low, 'f', -1, 64),
			strconv.FormatFloat(bar.Close, 'f', -1, 64),
			strconv.FormatInt(bar.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpName, outPath); err != nil {
		return "", fmt.Errorf("could not rename artifact into place: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Scan walks the data directory and returns the set of security ids
// whose artifacts pass the minimum size check
func (s *Store) Scan() map[string]struct{} {
	found := make(map[string]struct{})

	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		log.Warn().Err(err).Str("Dir", s.cfg.DataDir).Msg("could not scan data dir")
		return found
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := s.DecodeFilename(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil || fi.Size() < s.cfg.MinArtifactBytes {
			continue
		}
		found[id] = struct{}{}
	}

	return found
}

// sanitizeName keeps only characters that are safe in a filename,
// mirroring how the artifacts have historically been named
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			sb.WriteRune(r)
		case r > 127:
			// keep CJK display names intact
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

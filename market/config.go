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

// Package market holds the per-market tuning of the download engine:
// directories, list thresholds, worker counts, pacing intervals, and
// freshness policy. Every component receives an immutable Config value;
// nothing in the engine reads global state.
package market

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/penny-vault/import-eod/eod"
)

// FreshnessPolicy decides whether an existing artifact is still usable
// without a new request
type FreshnessPolicy int

const (
	// SizeOnly treats any artifact above the minimum size as permanently
	// valid
	SizeOnly FreshnessPolicy = iota

	// SizeAndAge additionally requires the artifact to be younger than
	// ArtifactExpiry; stale artifacts are re-fetched once
	SizeAndAge
)

// Config is the complete tuning for a single market
type Config struct {
	Market eod.Market

	// directories
	DataDir string // per-security CSV artifacts
	ListDir string // list cache and manifest

	// list resolution
	Threshold      int // minimum size for a list to be accepted as authoritative
	ListAttempts   int // registry query attempts before falling back
	ListRetryPause time.Duration

	// worker pool
	Workers       int
	JitterMin     time.Duration // pre-request delay, applied unconditionally
	JitterMax     time.Duration
	ThrottleMin   time.Duration // backoff after a provider rate-limit signal
	ThrottleMax   time.Duration
	TransientMin  time.Duration // backoff after an ordinary transient error
	TransientMax  time.Duration
	FetchAttempts int // attempts per security before giving up

	// pacing across the whole pool
	RestEvery int // pause after this many cumulative successes
	RestMin   time.Duration
	RestMax   time.Duration

	// checkpointing
	CheckpointEvery int

	// artifact freshness
	Freshness        FreshnessPolicy
	ArtifactExpiry   time.Duration
	MinArtifactBytes int64

	// history window: either a rolling number of years or, when
	// HistoryEpoch is set, everything since that date
	HistoryYears int
	HistoryEpoch time.Time

	// filename encoding: when true the artifact filename carries the
	// display name next to the id (us / cn convention); otherwise the
	// filename is id plus FileSuffix
	NameInFilename bool
	FileSuffix     string

	// classification: securities whose upper-cased name contains any of
	// these keywords are excluded from the universe
	ExcludeKeywords []string

	// absolute last-resort universe when every list source fails
	Seeds []eod.Security
}

// ProviderSymbol maps a security to the symbol understood by the
// historical price provider
func (c *Config) ProviderSymbol(sec eod.Security) string {
	switch c.Market {
	case eod.US, eod.KR:
		// us tickers are already provider form; kr ids carry their board
		// suffix (.KS / .KQ)
		return sec.ID
	case eod.HK:
		// 5-digit listing codes collapse to 4 digits for the provider
		id := sec.ID
		if len(id) > 4 {
			id = id[len(id)-4:]
		}
		return id + ".HK"
	case eod.CN:
		if strings.HasPrefix(sec.ID, "6") {
			return sec.ID + ".SS"
		}
		return sec.ID + ".SZ"
	case eod.JP:
		return sec.ID + ".T"
	case eod.TW:
		return sec.ID + ".TW"
	}
	return sec.ID
}

// Excluded reports whether the named security should be dropped from the
// universe (derivatives, funds, trusts, and similar non-common-stock
// listings)
func (c *Config) Excluded(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range c.ExcludeKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// HistoryWindow returns the [start, end] range of daily bars to request
func (c *Config) HistoryWindow(now time.Time) (time.Time, time.Time) {
	if !c.HistoryEpoch.IsZero() {
		return c.HistoryEpoch, now
	}
	years := c.HistoryYears
	if years == 0 {
		years = 2
	}
	return now.AddDate(-years, 0, 0), now
}

// New returns the built-in configuration for a market, rooted at
// baseDir (artifacts under <baseDir>/<market>/dayK, lists and manifest
// under <baseDir>/<market>/lists)
func New(m eod.Market, baseDir string) *Config {
	cfg := &Config{
		Market:           m,
		DataDir:          filepath.Join(baseDir, string(m), "dayK"),
		ListDir:          filepath.Join(baseDir, string(m), "lists"),
		ListAttempts:     3,
		ListRetryPause:   5 * time.Second,
		Workers:          4,
		JitterMin:        400 * time.Millisecond,
		JitterMax:        1200 * time.Millisecond,
		ThrottleMin:      20 * time.Second,
		ThrottleMax:      40 * time.Second,
		TransientMin:     2 * time.Second,
		TransientMax:     5 * time.Second,
		FetchAttempts:    2,
		RestEvery:        100,
		RestMin:          1 * time.Second,
		RestMax:          3 * time.Second,
		CheckpointEvery:  50,
		Freshness:        SizeOnly,
		MinArtifactBytes: 1000,
		HistoryYears:     2,
	}

	switch m {
	case eod.US:
		cfg.Threshold = 3000
		cfg.Workers = 5
		cfg.Freshness = SizeAndAge
		cfg.ArtifactExpiry = time.Hour
		cfg.NameInFilename = true
		cfg.ExcludeKeywords = []string{
			"WARRANT", "RIGHTS", "UNIT", "PREFERRED", "DEPOSITARY",
			"ADR", "FOREIGN", "DEBENTURE",
		}
		cfg.Seeds = seeds(m, "AAPL&Apple Inc. Common Stock",
			"MSFT&Microsoft Corporation Common Stock",
			"NVDA&NVIDIA Corporation Common Stock")
	case eod.HK:
		cfg.Threshold = 2000
		cfg.JitterMax = 1000 * time.Millisecond
		cfg.FileSuffix = ".HK"
		cfg.ExcludeKeywords = []string{
			"CBBC", "WARRANT", "RIGHTS", "ETF", "ETN", "REIT", "BOND",
			"TRUST", "FUND", "牛熊", "權證", "輪證",
		}
		cfg.Seeds = seeds(m, "00005&HSBC HOLDINGS", "00700&TENCENT")
	case eod.CN:
		cfg.Threshold = 4500
		cfg.NameInFilename = true
		cfg.ExcludeKeywords = []string{"ETF", "REIT", "ST"}
		cfg.Seeds = seeds(m, "600519&貴州茅台", "000001&平安銀行",
			"300750&寧德時代")
	case eod.KR:
		cfg.Threshold = 2000
		cfg.JitterMin = 500 * time.Millisecond
		cfg.HistoryEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		cfg.ExcludeKeywords = []string{"ETF", "ETN", "REIT", "SPAC"}
		cfg.Seeds = seeds(m, "005930.KS&三星電子")
	case eod.TW:
		cfg.Threshold = 1500
		cfg.FileSuffix = ".TW"
		cfg.ExcludeKeywords = []string{"ETF", "ETN", "REIT", "DR", "特別股"}
		cfg.Seeds = seeds(m, "2330&台積電", "2317&鴻海")
	case eod.JP:
		cfg.Threshold = 2500
		cfg.FileSuffix = ".T"
		cfg.ExcludeKeywords = []string{"ETF", "ETN", "REIT", "FUND"}
		cfg.Seeds = seeds(m, "7203&トヨタ自動車", "6758&ソニーグループ")
	}

	return cfg
}

func seeds(m eod.Market, items ...string) []eod.Security {
	out := make([]eod.Security, 0, len(items))
	for _, it := range items {
		parts := strings.SplitN(it, "&", 2)
		out = append(out, eod.Security{ID: parts[0], Name: parts[1], Market: m})
	}
	return out
}

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

// Package eod defines the shared types that flow between the list
// resolver, the download manifest, and the fetch pool.
package eod

import (
	"fmt"
	"strings"
	"time"
)

// Market identifies one of the supported national equity markets
type Market string

const (
	TW Market = "tw-share"
	US Market = "us-share"
	HK Market = "hk-share"
	CN Market = "cn-share"
	JP Market = "jp-share"
	KR Market = "kr-share"
)

// AllMarkets returns every supported market in the order they are
// processed by a full run
func AllMarkets() []Market {
	return []Market{TW, US, HK, CN, JP, KR}
}

// ParseMarket converts a market code like "us-share" (or the short form
// "us") into a Market
func ParseMarket(s string) (Market, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, "-share") {
		s += "-share"
	}
	for _, m := range AllMarkets() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown market: %s", s)
}

func (m Market) String() string {
	return string(m)
}

// Security is one tradable instrument within a market. Identity is
// (Market, ID); Name is the display name used for reporting and, on some
// markets, for the artifact filename.
type Security struct {
	ID     string
	Name   string
	Market Market
}

// ListSource records which tier of the resolver fallback chain produced
// a security list
type ListSource string

const (
	SourcePrimary    ListSource = "primary"
	SourceCache      ListSource = "cache"
	SourceHistorical ListSource = "cache-historical"
	SourceSeed       ListSource = "seed"
)

// SecurityList is the resolved security universe for a single market
type SecurityList struct {
	Securities []Security
	ResolvedAt time.Time
	Source     ListSource
}

func (l *SecurityList) Len() int {
	return len(l.Securities)
}

// Bar is a single daily price observation. Date is a naive date; any
// provider timezone has already been stripped.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// RunStats summarizes a completed download run for one market. Success
// counts securities with a valid artifact on disk (downloaded this run
// or already fresh); Fail counts empty results and hard failures.
type RunStats struct {
	RunID   string
	Market  Market
	Total   int
	Success int
	Fail    int

	// split of Fail by terminal status
	Empty  int
	Failed int

	// split of Success for this run
	Downloaded int
	Existing   int

	Duration time.Duration
}

// Completeness returns the fraction of the universe with a valid
// artifact. An empty universe reports zero rather than dividing by zero.
func (s *RunStats) Completeness() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total)
}

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

package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var nasdaqTraderURL = "https://www.nasdaqtrader.com/dynamic/symdir"

// symbol directory segments; both must be concatenated to cover the
// full US universe
var nasdaqSegments = []string{"nasdaqlisted.txt", "otherlisted.txt"}

// Nasdaq lists US securities from the Nasdaq Trader symbol directory,
// a pair of pipe-delimited files covering Nasdaq and NYSE/AMEX listings
type Nasdaq struct {
	cfg    *market.Config
	client *resty.Client
}

func NewNasdaq(cfg *market.Config) *Nasdaq {
	return &Nasdaq{cfg: cfg, client: newClient()}
}

func (n *Nasdaq) Companies(ctx context.Context) ([]eod.Security, error) {
	securities := make([]eod.Security, 0, 8000)

	for _, segment := range nasdaqSegments {
		resp, err := n.client.R().
			SetContext(ctx).
			Get(fmt.Sprintf("%s/%s", nasdaqTraderURL, segment))
		if err != nil {
			return nil, fmt.Errorf("symbol directory request failed: %w", err)
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("symbol directory returned status %d", resp.StatusCode())
		}

		parsed, err := n.parseSegment(segment, resp.String())
		if err != nil {
			return nil, err
		}
		securities = append(securities, parsed...)
	}

	log.Debug().Int("NumSecurities", len(securities)).Msg("fetched nasdaq symbol directory")
	return securities, nil
}

// parseSegment reads one pipe-delimited symbol directory file. The
// first line is a header and the last a "File Creation Time" trailer.
func (n *Nasdaq) parseSegment(segment, body string) ([]eod.Security, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("symbol directory %s is empty", segment)
	}

	header := strings.Split(lines[0], "|")
	symbolCol := "Symbol"
	if segment == "otherlisted.txt" {
		symbolCol = "NASDAQ Symbol"
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range []string{symbolCol, "Security Name", "Test Issue", "ETF"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("symbol directory %s is missing column %q", segment, col)
		}
	}

	securities := make([]eod.Security, 0, len(lines))
	for _, line := range lines[1:] {
		if line == "" || strings.HasPrefix(line, "File Creation Time") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < len(header) {
			continue
		}
		if fields[idx["Test Issue"]] != "N" || fields[idx["ETF"]] == "Y" {
			continue
		}

		name := strings.TrimSpace(fields[idx["Security Name"]])
		if n.cfg.Excluded(name) {
			continue
		}

		// NQ symbol directory encodes share classes with '$'; the
		// price provider wants '-'
		ticker := strings.ReplaceAll(strings.TrimSpace(fields[idx[symbolCol]]), "$", "-")
		if ticker == "" {
			continue
		}

		securities = append(securities, eod.Security{
			ID:     ticker,
			Name:   name,
			Market: n.cfg.Market,
		})
	}

	return securities, nil
}

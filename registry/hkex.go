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
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/go-resty/resty/v2"
)

var hkexListURL = "https://www.hkex.com.hk/eng/services/trading/securities/securitieslists/ListOfSecurities.csv"

// HKEX lists Hong Kong securities from the exchange's list-of-securities
// download. The file carries several preamble rows before the header, so
// the header row is located by its column names rather than by position.
type HKEX struct {
	cfg    *market.Config
	client *resty.Client
}

func NewHKEX(cfg *market.Config) *HKEX {
	return &HKEX{cfg: cfg, client: newClient()}
}

func (h *HKEX) Companies(ctx context.Context) ([]eod.Security, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(hkexListURL)
	if err != nil {
		return nil, fmt.Errorf("hkex request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("hkex returned status %d", resp.StatusCode())
	}

	reader := csv.NewReader(strings.NewReader(resp.String()))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse hkex securities list: %w", err)
	}

	codeCol, nameCol := -1, -1
	start := 0
	for i, row := range rows {
		for j, col := range row {
			lower := strings.ToLower(col)
			if strings.Contains(lower, "stock code") {
				codeCol = j
			}
			if strings.Contains(lower, "short name") || strings.Contains(lower, "name of securities") {
				nameCol = j
			}
		}
		if codeCol >= 0 && nameCol >= 0 {
			start = i + 1
			break
		}
	}
	if codeCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("hkex securities list is missing expected header")
	}

	securities := make([]eod.Security, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if len(row) <= codeCol || len(row) <= nameCol {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if h.cfg.Excluded(name) {
			continue
		}
		code := normalizeCode5(row[codeCol])
		if code == "" {
			continue
		}
		securities = append(securities, eod.Security{
			ID:     code,
			Name:   name,
			Market: h.cfg.Market,
		})
	}

	return securities, nil
}

// normalizeCode5 strips non-digits and zero-pads to the 5-digit HKEX
// listing code used in artifact filenames
func normalizeCode5(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}
	if len(d) > 5 {
		d = d[len(d)-5:]
	}
	return zfill(d, 5)
}

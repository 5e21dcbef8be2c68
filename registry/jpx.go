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

var jpxListURL = "https://www.jpx.co.jp/markets/statistics-equities/misc/data_j.csv"

// JPX lists Tokyo-exchange issues from the exchange's listed-issues CSV.
// Column names appear in Japanese or English depending on the export, so
// both are matched.
type JPX struct {
	cfg    *market.Config
	client *resty.Client
}

func NewJPX(cfg *market.Config) *JPX {
	return &JPX{cfg: cfg, client: newClient()}
}

func (j *JPX) Companies(ctx context.Context) ([]eod.Security, error) {
	resp, err := j.client.R().
		SetContext(ctx).
		Get(jpxListURL)
	if err != nil {
		return nil, fmt.Errorf("jpx request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("jpx returned status %d", resp.StatusCode())
	}

	reader := csv.NewReader(strings.NewReader(resp.String()))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse jpx issue list: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("jpx issue list is empty")
	}

	codeCol, nameCol, divisionCol := -1, -1, -1
	for i, col := range rows[0] {
		switch {
		case col == "コード" || strings.EqualFold(col, "code"):
			codeCol = i
		case col == "銘柄名" || strings.EqualFold(col, "name"):
			nameCol = i
		case strings.Contains(col, "市場・商品区分") || strings.Contains(strings.ToLower(col), "market"):
			divisionCol = i
		}
	}
	if codeCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("jpx issue list is missing expected header")
	}

	securities := make([]eod.Security, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= codeCol || len(row) <= nameCol {
			continue
		}
		// the market/product division flags funds and REITs even when
		// the issue name does not
		if divisionCol >= 0 && len(row) > divisionCol && j.cfg.Excluded(row[divisionCol]) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if j.cfg.Excluded(name) {
			continue
		}
		code := strings.TrimSpace(row[codeCol])
		if code == "" {
			continue
		}
		securities = append(securities, eod.Security{
			ID:     code,
			Name:   name,
			Market: j.cfg.Market,
		})
	}

	return securities, nil
}

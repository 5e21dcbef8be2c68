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
	"github.com/goccy/go-json"
)

var eastMoneyURL = "https://82.push2.eastmoney.com/api/qt/clist/get"

// A-share code prefixes that denote common stock on the SSE / SZSE main,
// ChiNext, and STAR boards
var cnCodePrefixes = []string{
	"000", "001", "002", "003", "300", "301", "600", "601", "603", "605", "688",
}

type eastMoneyResponse struct {
	Data struct {
		Total int `json:"total"`
		Diff  []struct {
			Code string `json:"f12"`
			Name string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// EastMoney lists China A-shares from the EastMoney spot quote API,
// one query per exchange segment (Shanghai, Shenzhen)
type EastMoney struct {
	cfg    *market.Config
	client *resty.Client
}

func NewEastMoney(cfg *market.Config) *EastMoney {
	return &EastMoney{cfg: cfg, client: newClient()}
}

func (e *EastMoney) Companies(ctx context.Context) ([]eod.Security, error) {
	securities := make([]eod.Security, 0, 6000)

	// fs selects the exchange segment: m:1 Shanghai, m:0 Shenzhen
	for _, segment := range []string{"m:1+t:2,m:1+t:23", "m:0+t:6,m:0+t:80"} {
		resp, err := e.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"pn":     "1",
				"pz":     "10000",
				"fs":     segment,
				"fields": "f12,f14",
			}).
			Get(eastMoneyURL)
		if err != nil {
			return nil, fmt.Errorf("eastmoney request failed: %w", err)
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("eastmoney returned status %d", resp.StatusCode())
		}

		var parsed eastMoneyResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, fmt.Errorf("could not unmarshal eastmoney response: %w", err)
		}

		for _, row := range parsed.Data.Diff {
			code := zfill(row.Code, 6)
			if !validCNPrefix(code) {
				continue
			}
			if e.cfg.Excluded(row.Name) {
				continue
			}
			securities = append(securities, eod.Security{
				ID:     code,
				Name:   strings.TrimSpace(row.Name),
				Market: e.cfg.Market,
			})
		}
	}

	return securities, nil
}

func validCNPrefix(code string) bool {
	for _, prefix := range cnCodePrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

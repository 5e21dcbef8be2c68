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

var twseOpenAPIURL = "https://openapi.twse.com.tw/v1/opendata/t187ap03_L"

type twseCompany struct {
	Code string `json:"公司代號"`
	Name string `json:"公司簡稱"`
}

// TWSE lists Taiwan securities from the exchange's open data API
type TWSE struct {
	cfg    *market.Config
	client *resty.Client
}

func NewTWSE(cfg *market.Config) *TWSE {
	return &TWSE{cfg: cfg, client: newClient()}
}

func (t *TWSE) Companies(ctx context.Context) ([]eod.Security, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(twseOpenAPIURL)
	if err != nil {
		return nil, fmt.Errorf("twse request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("twse returned status %d", resp.StatusCode())
	}

	var companies []twseCompany
	if err := json.Unmarshal(resp.Body(), &companies); err != nil {
		return nil, fmt.Errorf("could not unmarshal twse response: %w", err)
	}

	securities := make([]eod.Security, 0, len(companies))
	for _, company := range companies {
		code := strings.TrimSpace(company.Code)
		name := strings.TrimSpace(company.Name)
		if code == "" || t.cfg.Excluded(name) {
			continue
		}
		securities = append(securities, eod.Security{
			ID:     code,
			Name:   name,
			Market: t.cfg.Market,
		})
	}

	return securities, nil
}

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
	"time"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

var krxDataURL = "https://data.krx.co.kr/comm/bldAttendant/getJsonData.cmd"

// KRX boards and the Yahoo-style suffix appended to their issue codes
var krxBoards = []struct {
	mktID  string
	suffix string
}{
	{"STK", ".KS"}, // KOSPI
	{"KSQ", ".KQ"}, // KOSDAQ
}

type krxResponse struct {
	Issues []struct {
		Code string `json:"ISU_SRT_CD"`
		Name string `json:"ISU_ABBRV"`
	} `json:"OutBlock_1"`
}

// KRX lists Korean securities from the exchange's open data endpoint,
// one query per board (KOSPI, KOSDAQ). The board is encoded into the
// security id as a suffix because issue codes repeat across boards.
type KRX struct {
	cfg    *market.Config
	client *resty.Client
	now    func() time.Time
}

func NewKRX(cfg *market.Config) *KRX {
	return &KRX{cfg: cfg, client: newClient(), now: time.Now}
}

func (k *KRX) Companies(ctx context.Context) ([]eod.Security, error) {
	securities := make([]eod.Security, 0, 3000)

	for _, board := range krxBoards {
		resp, err := k.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"bld":    "dbms/MDC/STAT/standard/MDCSTAT01901",
				"mktId":  board.mktID,
				"trdDd":  k.now().Format("20060102"),
				"share":  "1",
				"csvxls": "false",
			}).
			Post(krxDataURL)
		if err != nil {
			return nil, fmt.Errorf("krx request failed: %w", err)
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("krx returned status %d", resp.StatusCode())
		}

		var parsed krxResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, fmt.Errorf("could not unmarshal krx response: %w", err)
		}

		for _, issue := range parsed.Issues {
			name := strings.TrimSpace(issue.Name)
			if k.cfg.Excluded(name) {
				continue
			}
			code := strings.TrimSpace(issue.Code)
			if code == "" {
				continue
			}
			securities = append(securities, eod.Security{
				ID:     zfill(code, 6) + board.suffix,
				Name:   name,
				Market: k.cfg.Market,
			})
		}
	}

	return securities, nil
}

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

// Package registry queries the per-market listing sources for the set
// of currently tradable securities. Each client normalizes its source's
// schema into eod.Security values and applies the market's exclusion
// rules so only common-stock-equivalent listings survive.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultTimeout = 30 * time.Second

// Client fetches the raw security universe from a market's listing
// source
type Client interface {
	Companies(ctx context.Context) ([]eod.Security, error)
}

func newClient() *resty.Client {
	return resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("User-Agent", userAgent)
}

// ForMarket returns the listing client for a market
func ForMarket(cfg *market.Config) (Client, error) {
	switch cfg.Market {
	case eod.US:
		return NewNasdaq(cfg), nil
	case eod.TW:
		return NewTWSE(cfg), nil
	case eod.HK:
		return NewHKEX(cfg), nil
	case eod.CN:
		return NewEastMoney(cfg), nil
	case eod.JP:
		return NewJPX(cfg), nil
	case eod.KR:
		return NewKRX(cfg), nil
	}
	return nil, fmt.Errorf("no listing source for market %s", cfg.Market)
}

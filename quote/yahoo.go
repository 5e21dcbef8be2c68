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

// Package quote fetches daily price history from the quote provider.
// Three outcomes are first-class: data, an empty-but-successful result
// (nil bars, nil error), and ErrThrottled when the provider signals
// rate limiting.
package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/penny-vault/import-eod/eod"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// ErrThrottled indicates the provider rejected the request because of
// rate limiting; callers should back off substantially before retrying
var ErrThrottled = errors.New("provider rate limited request")

var yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Window bounds the requested history range
type Window struct {
	Start time.Time
	End   time.Time
}

// Provider returns daily bars for a symbol; an empty series with a nil
// error means the symbol exists but has no data in the window
type Provider interface {
	History(ctx context.Context, symbol string, w Window) ([]eod.Bar, error)
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo fetches daily history from the v8 chart API
type Yahoo struct {
	client *resty.Client
}

func NewYahoo() *Yahoo {
	return &Yahoo{
		client: resty.New().
			SetTimeout(20 * time.Second).
			SetHeaders(map[string]string{
				"Accept":     "application/json",
				"User-Agent": userAgent,
			}),
	}
}

func (y *Yahoo) History(ctx context.Context, symbol string, w Window) ([]eod.Bar, error) {
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":  fmt.Sprintf("%d", w.Start.Unix()),
			"period2":  fmt.Sprintf("%d", w.End.Unix()),
			"interval": "1d",
			"events":   "history",
		}).
		Get(fmt.Sprintf("%s/%s", yahooChartURL, symbol))
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}

	if throttled(resp) {
		return nil, ErrThrottled
	}
	if resp.StatusCode() == http.StatusNotFound {
		// unknown or delisted symbol; not an error
		return nil, nil
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("chart request returned status %d", resp.StatusCode())
	}

	var parsed yahooChartResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("could not unmarshal chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", parsed.Chart.Error.Code,
			parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	q := result.Indicators.Quote[0]
	bars := make([]eod.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) ||
			i >= len(q.Close) || i >= len(q.Volume) {
			break
		}
		// the provider pads halted sessions with nulls
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil ||
			q.Close[i] == nil || q.Volume[i] == nil {
			continue
		}

		// normalize the provider timestamp to a naive date
		dt := time.Unix(ts, 0).UTC()
		bars = append(bars, eod.Bar{
			Date:   time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Volume: *q.Volume[i],
		})
	}

	return bars, nil
}

// throttled detects a rate-limit response. The structured status code is
// authoritative; the body text match covers providers that bury the
// signal in an HTML error page.
func throttled(resp *resty.Response) bool {
	if resp.StatusCode() == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode() >= 400 {
		body := strings.ToLower(resp.String())
		return strings.Contains(body, "rate limited") ||
			strings.Contains(body, "too many requests")
	}
	return false
}

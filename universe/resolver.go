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

// Package universe resolves the current security universe for a market.
// Resolution falls through four tiers: today's cached list, the primary
// registry, any historical cache, and finally a hardcoded seed set --
// so a run always has something to schedule. The size threshold guards
// against a truncated or malformed upstream response being mistaken for
// a valid universe.
package universe

import (
	"context"
	"time"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

// Registry is the primary external listing source for a market
type Registry interface {
	Companies(ctx context.Context) ([]eod.Security, error)
}

// memo caches resolved lists within a single process so a scheduler
// that fires multiple markets repeatedly does not re-read disk; keyed
// by market and day
var memo, _ = lru.New(16)

// Resolver produces the security universe for one market
type Resolver struct {
	cfg      *market.Config
	cache    *Cache
	registry Registry
	now      func() time.Time
}

func NewResolver(cfg *market.Config, registry Registry) *Resolver {
	return &Resolver{
		cfg:      cfg,
		cache:    NewCache(cfg),
		registry: registry,
		now:      time.Now,
	}
}

// Resolve returns the current universe. It never returns an error; when
// every source fails it degrades to the market's seed list.
func (r *Resolver) Resolve(ctx context.Context) eod.SecurityList {
	subLog := log.With().Str("Market", string(r.cfg.Market)).Logger()
	now := r.now()
	memoKey := r.cfg.ListDir + "|" + string(r.cfg.Market) + "|" + now.Format("2006-01-02")

	if cached, ok := memo.Get(memoKey); ok {
		return cached.(eod.SecurityList)
	}

	// 1. today's cache, if it meets the threshold
	cached, writtenAt, cacheErr := r.cache.Load()
	if cacheErr == nil && sameDay(writtenAt, now) && len(cached) >= r.cfg.Threshold {
		subLog.Info().Int("NumSecurities", len(cached)).Msg("loaded today's list cache")
		list := eod.SecurityList{Securities: cached, ResolvedAt: now, Source: eod.SourceCache}
		memo.Add(memoKey, list)
		return list
	}

	// 2. primary registry
	for attempt := 1; attempt <= r.cfg.ListAttempts; attempt++ {
		securities, err := r.registry.Companies(ctx)
		if err != nil {
			subLog.Warn().Err(err).Int("Attempt", attempt).Msg("registry query failed")
		} else {
			securities = dedupe(securities)
			if len(securities) >= r.cfg.Threshold {
				if err := r.cache.Save(securities); err != nil {
					// a failed cache write is not fatal; the run proceeds
					// with the in-memory list
					subLog.Warn().Err(err).Msg("could not persist list cache")
				}
				subLog.Info().Int("NumSecurities", len(securities)).Msg("resolved universe from registry")
				list := eod.SecurityList{Securities: securities, ResolvedAt: now, Source: eod.SourcePrimary}
				memo.Add(memoKey, list)
				return list
			}
			subLog.Warn().
				Int("NumSecurities", len(securities)).
				Int("Threshold", r.cfg.Threshold).
				Int("Attempt", attempt).
				Msg("registry returned fewer securities than threshold")
		}

		if attempt < r.cfg.ListAttempts {
			select {
			case <-ctx.Done():
				attempt = r.cfg.ListAttempts
			case <-time.After(r.cfg.ListRetryPause):
			}
		}
	}

	// 3. any cache, even stale
	if cacheErr == nil && len(cached) > 0 {
		subLog.Warn().
			Time("WrittenAt", writtenAt).
			Int("NumSecurities", len(cached)).
			Msg("falling back to historical list cache")
		return eod.SecurityList{Securities: cached, ResolvedAt: now, Source: eod.SourceHistorical}
	}

	// 4. seed list
	subLog.Error().Int("NumSeeds", len(r.cfg.Seeds)).Msg("all list sources failed; using seed list")
	return eod.SecurityList{Securities: r.cfg.Seeds, ResolvedAt: now, Source: eod.SourceSeed}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dedupe(securities []eod.Security) []eod.Security {
	seen := make(map[string]struct{}, len(securities))
	out := make([]eod.Security, 0, len(securities))
	for _, sec := range securities {
		if _, ok := seen[sec.ID]; ok {
			continue
		}
		seen[sec.ID] = struct{}{}
		out = append(out, sec)
	}
	return out
}

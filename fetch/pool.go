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

// Package fetch drains a manifest's pending securities through a small
// pool of concurrent workers. The pool is deliberately sized for
// provider politeness rather than throughput: every request is preceded
// by a jittered delay, throttling triggers a long backoff, and the
// dispatcher rests after bursts of successes. One job's failure never
// aborts the pool; every job ends in exactly one terminal status.
package fetch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penny-vault/import-eod/artifact"
	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/manifest"
	"github.com/penny-vault/import-eod/market"
	"github.com/penny-vault/import-eod/quote"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// Pool downloads price history for every pending manifest entry
type Pool struct {
	cfg      *market.Config
	store    *artifact.Store
	provider quote.Provider
}

func NewPool(cfg *market.Config, store *artifact.Store, provider quote.Provider) *Pool {
	return &Pool{cfg: cfg, store: store, provider: provider}
}

// outcome is the result of one job; status stays Pending only when the
// job was abandoned by cancellation
type outcome struct {
	status   manifest.Status
	checksum string
	fetched  bool // true when the artifact was written this run
}

// Run processes all pending entries and returns aggregated statistics.
// The returned error is non-nil only when the context was cancelled;
// per-job failures are reported through the statistics.
func (p *Pool) Run(ctx context.Context, mf *manifest.Manifest) (eod.RunStats, error) {
	runID := uuid.NewString()
	subLog := log.With().Str("Market", string(p.cfg.Market)).Str("RunID", runID).Logger()
	start := time.Now()

	pending := mf.Pending()
	subLog.Info().
		Int("NumPending", len(pending)).
		Int("NumEntries", mf.Len()).
		Int("Workers", p.cfg.Workers).
		Msg("starting download run")

	var downloaded, existing, successes, completed int64

	jobs := make(chan eod.Security)
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sec := range jobs {
				out := p.processOne(ctx, &subLog, sec)
				if !out.status.Terminal() {
					// job abandoned mid-flight by cancellation; the entry
					// stays pending so the next run picks it up
					continue
				}
				mf.Update(sec.ID, out.status, out.checksum)

				if out.status == manifest.Done {
					atomic.AddInt64(&successes, 1)
					if out.fetched {
						atomic.AddInt64(&downloaded, 1)
					} else {
						atomic.AddInt64(&existing, 1)
					}
				}

				n := atomic.AddInt64(&completed, 1)
				if p.cfg.CheckpointEvery > 0 && n%int64(p.cfg.CheckpointEvery) == 0 {
					if err := mf.Checkpoint(); err != nil {
						subLog.Warn().Err(err).Msg("could not checkpoint manifest")
					}
				}
			}
		}()
	}

	// dispatch in manifest order; rest briefly after every burst of
	// successes to smooth load on the provider
	var lastRest int64
dispatch:
	for _, sec := range pending {
		if ctx.Err() != nil {
			subLog.Warn().Msg("run cancelled; abandoning remaining jobs")
			break dispatch
		}

		if p.cfg.RestEvery > 0 {
			if burst := atomic.LoadInt64(&successes) / int64(p.cfg.RestEvery); burst > lastRest {
				lastRest = burst
				sleepRange(ctx, p.cfg.RestMin, p.cfg.RestMax)
			}
		}

		select {
		case jobs <- sec:
		case <-ctx.Done():
			subLog.Warn().Msg("run cancelled; abandoning remaining jobs")
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	// final checkpoint bounds progress lost on the next crash to zero
	if err := mf.Checkpoint(); err != nil {
		subLog.Warn().Err(err).Msg("could not write final manifest checkpoint")
	}

	stats := mf.Summarize()
	stats.RunID = runID
	stats.Downloaded = int(atomic.LoadInt64(&downloaded))
	stats.Existing = int(atomic.LoadInt64(&existing))
	stats.Duration = time.Since(start)

	subLog.Info().
		Int("Total", stats.Total).
		Int("Success", stats.Success).
		Int("Fail", stats.Fail).
		Int("Downloaded", stats.Downloaded).
		Int("Existing", stats.Existing).
		Dur("Duration", stats.Duration).
		Float64("Completeness", stats.Completeness()).
		Msg("download run finished")

	return stats, ctx.Err()
}

// processOne executes a single job through to a terminal status, except
// when the run is cancelled mid-flight: then the entry is left Pending
// for the next run rather than misrecorded as Failed. Any panic is
// recovered at this boundary and converted to Failed so a bad job
// cannot take down the pool.
func (p *Pool) processOne(ctx context.Context, subLog *zerolog.Logger, sec eod.Security) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			subLog.Error().Str("ID", sec.ID).Interface("Panic", r).Msg("job panicked")
			out = outcome{status: manifest.Failed}
		}
	}()

	// an artifact written by a prior or concurrent process may already
	// satisfy the freshness policy
	if p.store.Fresh(sec) {
		return outcome{status: manifest.Done}
	}

	// jittered pre-request delay, applied unconditionally
	sleepRange(ctx, p.cfg.JitterMin, p.cfg.JitterMax)

	symbol := p.cfg.ProviderSymbol(sec)
	wStart, wEnd := p.cfg.HistoryWindow(time.Now())
	window := quote.Window{Start: wStart, End: wEnd}

	sawError := false
	for attempt := 1; attempt <= p.cfg.FetchAttempts; attempt++ {
		bars, err := p.provider.History(ctx, symbol, window)

		switch {
		case errors.Is(err, quote.ErrThrottled):
			sawError = true
			subLog.Warn().Str("Symbol", symbol).Int("Attempt", attempt).Msg("provider throttled request")
			sleepRange(ctx, p.cfg.ThrottleMin, p.cfg.ThrottleMax)
		case err != nil:
			if ctx.Err() != nil {
				// not a provider failure: the run was cancelled while the
				// request was in flight
				return outcome{status: manifest.Pending}
			}
			sawError = true
			subLog.Debug().Err(err).Str("Symbol", symbol).Int("Attempt", attempt).Msg("fetch failed")
			sleepRange(ctx, p.cfg.TransientMin, p.cfg.TransientMax)
		case len(bars) == 0:
			// possibly delisted or halted; pause and retry before
			// recording an empty result
			sleepRange(ctx, p.cfg.TransientMin, p.cfg.TransientMax)
		default:
			checksum, werr := p.store.Write(sec, bars)
			if werr != nil {
				subLog.Error().Err(werr).Str("ID", sec.ID).Msg("could not write artifact")
				return outcome{status: manifest.Failed}
			}
			return outcome{status: manifest.Done, checksum: checksum, fetched: true}
		}

		if ctx.Err() != nil {
			return outcome{status: manifest.Pending}
		}
	}

	if sawError {
		return outcome{status: manifest.Failed}
	}
	return outcome{status: manifest.Empty}
}

// sleepRange sleeps a random duration in [min, max], returning early if
// the context is cancelled
func sleepRange(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

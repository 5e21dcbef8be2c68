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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/penny-vault/import-eod/artifact"
	"github.com/penny-vault/import-eod/common"
	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/fetch"
	"github.com/penny-vault/import-eod/manifest"
	"github.com/penny-vault/import-eod/market"
	"github.com/penny-vault/import-eod/quote"
	"github.com/penny-vault/import-eod/registry"
	"github.com/penny-vault/import-eod/universe"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadMarket string
var rebuildManifest bool

func init() {
	downloadCmd.Flags().StringVar(&downloadMarket, "market", "all", "Market to download (tw-share, us-share, hk-share, cn-share, jp-share, kr-share, or all)")
	downloadCmd.Flags().BoolVar(&rebuildManifest, "rebuild", false, "Discard any persisted manifest and rebuild from today's resolved list")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Refresh daily price history for one or all markets",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		markets, err := selectedMarkets(downloadMarket)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, m := range markets {
			stats, err := runMarket(ctx, m)
			if err != nil {
				log.Error().Err(err).Str("Market", string(m)).Msg("market run did not complete")
			}
			reportStats(stats)

			if ctx.Err() != nil {
				break
			}
		}
	},
}

func selectedMarkets(arg string) ([]eod.Market, error) {
	if arg == "all" {
		return eod.AllMarkets(), nil
	}
	m, err := eod.ParseMarket(arg)
	if err != nil {
		return nil, err
	}
	return []eod.Market{m}, nil
}

// marketConfig builds the immutable per-market configuration, applying
// any overrides from the config file (market.<code>.workers and
// market.<code>.threshold)
func marketConfig(m eod.Market) *market.Config {
	cfg := market.New(m, viper.GetString("data.dir"))

	if key := fmt.Sprintf("market.%s.workers", m); viper.IsSet(key) {
		cfg.Workers = viper.GetInt(key)
	}
	if key := fmt.Sprintf("market.%s.threshold", m); viper.IsSet(key) {
		cfg.Threshold = viper.GetInt(key)
	}

	return cfg
}

// runMarket sequences list resolution, manifest build, and the fetch
// pool for one market. The returned RunStats is what a downstream
// reporter consumes; this command only logs it.
func runMarket(ctx context.Context, m eod.Market) (eod.RunStats, error) {
	cfg := marketConfig(m)
	subLog := log.With().Str("Market", string(m)).Logger()

	reg, err := registry.ForMarket(cfg)
	if err != nil {
		return eod.RunStats{Market: m}, err
	}

	list := universe.NewResolver(cfg, reg).Resolve(ctx)
	if list.Len() == 0 {
		// nothing to schedule; the only case the pipeline stops early
		subLog.Error().Msg("resolved security list is empty; aborting market run")
		return eod.RunStats{Market: m}, fmt.Errorf("empty security list for %s", m)
	}
	subLog.Info().
		Int("NumSecurities", list.Len()).
		Str("Source", string(list.Source)).
		Msg("resolved security universe")

	store, err := artifact.NewStore(cfg)
	if err != nil {
		return eod.RunStats{Market: m}, err
	}

	mf, err := manifest.Build(cfg, &list, store, rebuildManifest)
	if err != nil {
		return eod.RunStats{Market: m}, err
	}

	pool := fetch.NewPool(cfg, store, quote.NewYahoo())
	return pool.Run(ctx, mf)
}

func reportStats(stats eod.RunStats) {
	log.Info().
		Str("Market", string(stats.Market)).
		Str("RunID", stats.RunID).
		Int("Total", stats.Total).
		Int("Success", stats.Success).
		Int("Fail", stats.Fail).
		Int("Empty", stats.Empty).
		Int("Failed", stats.Failed).
		Str("Completeness", fmt.Sprintf("%.2f%%", stats.Completeness()*100)).
		Dur("Duration", stats.Duration).
		Msg("market summary")
}

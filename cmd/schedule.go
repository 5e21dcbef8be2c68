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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penny-vault/import-eod/common"
	"github.com/penny-vault/import-eod/eod"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	scheduleCmd.Flags().String("daily-at", "21:30", "Time of day (HH:MM, UTC) to refresh all markets")
	if err := viper.BindPFlag("schedule.daily_at", scheduleCmd.Flags().Lookup("daily-at")); err != nil {
		log.Error().Err(err).Msg("could not bind schedule.daily_at")
	}
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the downloader daily for all markets",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		at := viper.GetString("schedule.daily_at")
		scheduler := gocron.NewScheduler(time.UTC)

		_, err := scheduler.Every(1).Day().At(at).Do(func() {
			for _, m := range eod.AllMarkets() {
				stats, err := runMarket(ctx, m)
				if err != nil {
					log.Error().Err(err).Str("Market", string(m)).Msg("scheduled run did not complete")
				}
				reportStats(stats)

				if ctx.Err() != nil {
					return
				}
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("At", at).Msg("could not schedule daily refresh")
		}

		log.Info().Str("At", at).Msg("scheduler started")
		scheduler.StartAsync()

		<-ctx.Done()
		scheduler.Stop()
		log.Info().Msg("scheduler stopped")
	},
}

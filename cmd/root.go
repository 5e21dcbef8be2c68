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
	"fmt"
	"os"

	"github.com/penny-vault/import-eod/pkginfo"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Data directory
	if err := viper.BindEnv("data.dir", "EOD_DATA_DIR"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	rootCmd.PersistentFlags().String("data-dir", "data", "Base directory for artifacts, list caches, and manifests")
	if err := viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir")); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	viper.SetDefault("data.dir", "data")

	// Logging configuration
	if err := viper.BindEnv("log.level", "EOD_LOG_LEVEL"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if err := viper.BindEnv("log.output", "EOD_LOG_OUTPUT"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	if err := viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output")); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print logs in a human friendly format")
	if err := viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty")); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	if err := viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller")); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

var rootCmd = &cobra.Command{
	Use:     pkginfo.ProgramName,
	Version: pkginfo.Version,
	Short:   "Download daily price history for six national equity markets",
	Long: `import-eod refreshes per-security daily price history for the Taiwan,
US, Hong Kong, China, Japan, and Korea equity markets. Each market's
universe is resolved from its listing source with cache and seed
fallbacks, and histories are fetched through a resumable, rate-limit
aware worker pool.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

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
	"runtime"
	"strings"

	"github.com/penny-vault/import-eod/common"
	"github.com/penny-vault/import-eod/pkginfo"

	"github.com/spf13/cobra"
)

var deps bool

func init() {
	versionCmd.Flags().BoolVar(&deps, "deps", false, "print dependencies")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersionString())
		if deps {
			fmt.Println()
			fmt.Println("Dependencies:\n\n" + strings.Join(common.GetDependencyList(), "\n"))
		}
	},
}

// buildVersionString creates the version string shown by
// "import-eod version"
func buildVersionString() string {
	version := "v" + pkginfo.Version

	osArch := runtime.GOOS + "/" + runtime.GOARCH
	goVersion := runtime.Version()

	date := pkginfo.BuildDate
	if date == "" {
		date = "unknown"
	}

	return fmt.Sprintf(`%s %s %s

Build Date: %s
Commit: %s
Built with: %s`,
		pkginfo.ProgramName, version, osArch, date, pkginfo.CommitHash, goVersion)
}

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

package main

import (
	"github.com/penny-vault/import-eod/cmd"

	"github.com/spf13/viper"
)

func configureViper() {
	// the config file is optional -- every setting has a default or an
	// environment binding
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/import-eod/")
	viper.AddConfigPath("$HOME/.config/import-eod")
	viper.AddConfigPath(".")

	//nolint:errcheck
	viper.ReadInConfig()
}

func main() {
	configureViper()
	cmd.Execute()
}

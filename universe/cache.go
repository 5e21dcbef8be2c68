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

package universe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"

	"github.com/goccy/go-json"
)

// Cache persists a resolved security list as a JSON array of "id&name"
// strings. The file is human-diffable and rewritten in full; its mtime
// records when the list was resolved.
type Cache struct {
	cfg *market.Config
}

func NewCache(cfg *market.Config) *Cache {
	return &Cache{cfg: cfg}
}

// Path returns the cache file location for this market
func (c *Cache) Path() string {
	short := strings.TrimSuffix(string(c.cfg.Market), "-share")
	return filepath.Join(c.cfg.ListDir, fmt.Sprintf("%s_stock_list_cache.json", short))
}

// Load reads the cached list and the time it was written. A missing or
// unreadable cache returns an error; callers decide whether a stale
// cache is acceptable.
func (c *Cache) Load() ([]eod.Security, time.Time, error) {
	path := c.Path()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, time.Time{}, fmt.Errorf("corrupt list cache %s: %w", path, err)
	}

	securities := make([]eod.Security, 0, len(items))
	for _, item := range items {
		parts := strings.SplitN(item, "&", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		securities = append(securities, eod.Security{
			ID:     parts[0],
			Name:   parts[1],
			Market: c.cfg.Market,
		})
	}

	return securities, fi.ModTime(), nil
}

// Save overwrites the cache with a new list. Callers must only save
// lists that meet the market threshold; the cache never stores a
// truncated universe.
func (c *Cache) Save(securities []eod.Security) error {
	if err := os.MkdirAll(c.cfg.ListDir, 0755); err != nil {
		return fmt.Errorf("could not create list dir: %w", err)
	}

	items := make([]string, 0, len(securities))
	for _, sec := range securities {
		items = append(items, sec.ID+"&"+sec.Name)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path(), raw, 0644)
}

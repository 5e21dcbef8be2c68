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

package artifact_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/import-eod/artifact"
	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"
)

func testBars(n int) []eod.Bar {
	bars := make([]eod.Bar, 0, n)
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars = append(bars, eod.Bar{
			Date:   day.AddDate(0, 0, i),
			Open:   100.5,
			High:   101.25,
			Low:    99.75,
			Close:  100.875,
			Volume: 1234567,
		})
	}
	return bars
}

var _ = Describe("Store", func() {
	var (
		cfg   *market.Config
		store *artifact.Store
	)

	BeforeEach(func() {
		cfg = market.New(eod.US, GinkgoT().TempDir())
		cfg.MinArtifactBytes = 100

		var err error
		store, err = artifact.NewStore(cfg)
		Expect(err).To(BeNil())
	})

	Describe("filename encoding", func() {
		It("carries the display name for markets with a shared id namespace", func() {
			sec := eod.Security{ID: "AAPL", Name: "Apple Inc. Common Stock", Market: eod.US}
			Expect(store.Filename(sec)).To(Equal("AAPL_Apple Inc Common Stock.csv"))
		})

		It("round-trips the id through encode and decode", func() {
			sec := eod.Security{ID: "BRK-A", Name: "Berkshire Hathaway Inc.", Market: eod.US}
			id, ok := store.DecodeFilename(store.Filename(sec))
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal("BRK-A"))
		})

		It("uses the market suffix when the id is unambiguous", func() {
			hkCfg := market.New(eod.HK, GinkgoT().TempDir())
			hkStore, err := artifact.NewStore(hkCfg)
			Expect(err).To(BeNil())

			sec := eod.Security{ID: "00005", Name: "HSBC HOLDINGS", Market: eod.HK}
			Expect(hkStore.Filename(sec)).To(Equal("00005.HK.csv"))

			id, ok := hkStore.DecodeFilename("00005.HK.csv")
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal("00005"))
		})

		It("rejects filenames from another encoding", func() {
			_, ok := store.DecodeFilename("no-separator.csv")
			Expect(ok).To(BeFalse())

			_, ok = store.DecodeFilename("AAPL_Apple.txt")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("when writing an artifact", func() {
		It("writes date-ascending rows with the canonical header", func() {
			sec := eod.Security{ID: "AAPL", Name: "Apple Inc", Market: eod.US}
			checksum, err := store.Write(sec, testBars(5))
			Expect(err).To(BeNil())
			Expect(checksum).NotTo(BeEmpty())

			raw, err := os.ReadFile(store.Path(sec))
			Expect(err).To(BeNil())

			lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
			Expect(lines).To(HaveLen(6))
			Expect(lines[0]).To(Equal("date,open,high,low,close,volume"))
			Expect(lines[1]).To(HavePrefix("2023-01-02,"))
			Expect(lines[5]).To(HavePrefix("2023-01-06,"))
		})

		It("leaves no temp files behind", func() {
			sec := eod.Security{ID: "AAPL", Name: "Apple Inc", Market: eod.US}
			_, err := store.Write(sec, testBars(5))
			Expect(err).To(BeNil())

			entries, err := os.ReadDir(cfg.DataDir)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(1))
		})
	})

	Describe("freshness", func() {
		var sec eod.Security

		BeforeEach(func() {
			sec = eod.Security{ID: "AAPL", Name: "Apple Inc", Market: eod.US}
		})

		It("is false when no artifact exists", func() {
			Expect(store.Fresh(sec)).To(BeFalse())
		})

		It("is false when the artifact is below the minimum size", func() {
			err := os.WriteFile(store.Path(sec), []byte("tiny"), 0644)
			Expect(err).To(BeNil())
			Expect(store.Fresh(sec)).To(BeFalse())
			Expect(store.Valid(sec)).To(BeFalse())
		})

		It("is true for a large recent artifact under the age policy", func() {
			_, err := store.Write(sec, testBars(10))
			Expect(err).To(BeNil())
			Expect(store.Fresh(sec)).To(BeTrue())
		})

		It("expires under the size-and-age policy but stays valid for manifest rebuild", func() {
			_, err := store.Write(sec, testBars(10))
			Expect(err).To(BeNil())

			stale := time.Now().Add(-2 * cfg.ArtifactExpiry)
			Expect(os.Chtimes(store.Path(sec), stale, stale)).To(Succeed())

			Expect(store.Fresh(sec)).To(BeFalse())
			Expect(store.Valid(sec)).To(BeTrue())
		})

		It("never expires under the size-only policy", func() {
			sizeCfg := market.New(eod.HK, GinkgoT().TempDir())
			sizeCfg.MinArtifactBytes = 100
			sizeStore, err := artifact.NewStore(sizeCfg)
			Expect(err).To(BeNil())

			hkSec := eod.Security{ID: "00005", Name: "HSBC HOLDINGS", Market: eod.HK}
			_, err = sizeStore.Write(hkSec, testBars(10))
			Expect(err).To(BeNil())

			stale := time.Now().Add(-24 * 30 * time.Hour)
			Expect(os.Chtimes(sizeStore.Path(hkSec), stale, stale)).To(Succeed())
			Expect(sizeStore.Fresh(hkSec)).To(BeTrue())
		})
	})

	Describe("scanning the data directory", func() {
		It("returns only ids whose artifacts pass the size check", func() {
			big := eod.Security{ID: "AAPL", Name: "Apple Inc", Market: eod.US}
			_, err := store.Write(big, testBars(10))
			Expect(err).To(BeNil())

			Expect(os.WriteFile(filepath.Join(cfg.DataDir, "MSFT_Microsoft.csv"), []byte("x"), 0644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(cfg.DataDir, "notes.txt"), []byte("ignore me"), 0644)).To(Succeed())

			found := store.Scan()
			Expect(found).To(HaveKey("AAPL"))
			Expect(found).NotTo(HaveKey("MSFT"))
			Expect(found).To(HaveLen(1))
		})
	})
})

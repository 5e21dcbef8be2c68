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

package registry

import (
	"context"
	"net/http"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"
)

const nasdaqListedFixture = `Symbol|Security Name|Market Category|Test Issue|Financial Status|Round Lot Size|ETF|NextShares
AAPL|Apple Inc. Common Stock|Q|N|N|100|N|N
MSFT|Microsoft Corporation Common Stock|Q|N|N|100|N|N
QQQ|Invesco QQQ Trust, Series 1|G|N|N|100|Y|N
ZAZZT|Tick Pilot Test Stock Class A|Q|Y|N|100|N|N
ACMEW|Acme Holdings Warrant|Q|N|N|100|N|N
File Creation Time: 0601202318:01|||||||
`

const otherListedFixture = `ACT Symbol|Security Name|Exchange|CUSIP|ETF|Round Lot Size|Test Issue|NASDAQ Symbol
BRK.A|Berkshire Hathaway Inc. Class A Common Stock|N|084670108|N|1|N|BRK$A
IBM|International Business Machines Corporation Common Stock|N|459200101|N|100|N|IBM
SPY|SPDR S&P 500 ETF Trust|P|78462F103|Y|100|N|SPY
File Creation Time: 0601202318:01|||||||
`

var _ = Describe("Nasdaq", func() {
	var client *Nasdaq

	BeforeEach(func() {
		client = NewNasdaq(market.New(eod.US, GinkgoT().TempDir()))
		httpmock.ActivateNonDefault(client.client.GetClient())

		httpmock.RegisterResponder(http.MethodGet, nasdaqTraderURL+"/nasdaqlisted.txt",
			httpmock.NewStringResponder(http.StatusOK, nasdaqListedFixture))
		httpmock.RegisterResponder(http.MethodGet, nasdaqTraderURL+"/otherlisted.txt",
			httpmock.NewStringResponder(http.StatusOK, otherListedFixture))
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("merges both symbol directory segments", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())

		ids := make([]string, 0, len(securities))
		for _, sec := range securities {
			ids = append(ids, sec.ID)
		}
		Expect(ids).To(ConsistOf("AAPL", "MSFT", "BRK-A", "IBM"))
	})

	It("rewrites the share class separator for the price provider", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		Expect(securities).To(ContainElement(eod.Security{
			ID:     "BRK-A",
			Name:   "Berkshire Hathaway Inc. Class A Common Stock",
			Market: eod.US,
		}))
	})

	It("drops test issues, ETFs, and excluded security types", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		for _, sec := range securities {
			Expect(sec.ID).ToNot(Or(Equal("QQQ"), Equal("SPY"), Equal("ZAZZT"), Equal("ACMEW")))
		}
	})

	It("propagates an upstream failure", func() {
		httpmock.RegisterResponder(http.MethodGet, nasdaqTraderURL+"/nasdaqlisted.txt",
			httpmock.NewStringResponder(http.StatusBadGateway, ""))

		_, err := client.Companies(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

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

const hkexFixture = `List of Securities,,,
Updated as at 01/06/2023,,,
,,,
Stock Code,Name of Securities,Category,Board Lot
00005,HSBC HOLDINGS,Equity,400
00700,TENCENT,Equity,100
5,DUPLICATE SHORT CODE,Equity,400
60001,ABC CBBC 2312A,Derivative,10000
09988,BABA-SW,Equity,100
`

var _ = Describe("HKEX", func() {
	var client *HKEX

	BeforeEach(func() {
		client = NewHKEX(market.New(eod.HK, GinkgoT().TempDir()))
		httpmock.ActivateNonDefault(client.client.GetClient())

		httpmock.RegisterResponder(http.MethodGet, hkexListURL,
			httpmock.NewStringResponder(http.StatusOK, hkexFixture))
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("locates the header past the preamble and normalizes listing codes", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())

		ids := make([]string, 0, len(securities))
		for _, sec := range securities {
			ids = append(ids, sec.ID)
		}
		Expect(ids).To(ConsistOf("00005", "00700", "00005", "09988"))
		Expect(securities[0].Market).To(Equal(eod.HK))
	})

	It("drops derivative listings by name", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		for _, sec := range securities {
			Expect(sec.Name).ToNot(ContainSubstring("CBBC"))
		}
	})

	It("errors when the expected header never appears", func() {
		httpmock.RegisterResponder(http.MethodGet, hkexListURL,
			httpmock.NewStringResponder(http.StatusOK, "a,b,c\n1,2,3\n"))

		_, err := client.Companies(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("normalizeCode5", func() {
	It("zero-pads short codes", func() {
		Expect(normalizeCode5("5")).To(Equal("00005"))
		Expect(normalizeCode5("700")).To(Equal("00700"))
	})

	It("keeps the trailing five digits of long codes", func() {
		Expect(normalizeCode5("860001")).To(Equal("60001"))
	})

	It("strips non-digit characters", func() {
		Expect(normalizeCode5(" 00700 ")).To(Equal("00700"))
		Expect(normalizeCode5("x")).To(Equal(""))
	})
})

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
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/import-eod/eod"
	"github.com/penny-vault/import-eod/market"
)

const kospiFixture = `{"OutBlock_1": [
  {"ISU_SRT_CD": "005930", "ISU_ABBRV": "삼성전자"},
  {"ISU_SRT_CD": "000660", "ISU_ABBRV": "SK하이닉스"},
  {"ISU_SRT_CD": "069500", "ISU_ABBRV": "KODEX 200 ETF"}
]}`

const kosdaqFixture = `{"OutBlock_1": [
  {"ISU_SRT_CD": "247540", "ISU_ABBRV": "에코프로비엠"}
]}`

var _ = Describe("KRX", func() {
	var client *KRX

	BeforeEach(func() {
		client = NewKRX(market.New(eod.KR, GinkgoT().TempDir()))
		client.now = func() time.Time {
			return time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
		}
		httpmock.ActivateNonDefault(client.client.GetClient())

		httpmock.RegisterResponder(http.MethodPost, krxDataURL,
			func(req *http.Request) (*http.Response, error) {
				if err := req.ParseForm(); err != nil {
					return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
				}
				Expect(req.FormValue("trdDd")).To(Equal("20230601"))
				if req.FormValue("mktId") == "STK" {
					return httpmock.NewStringResponse(http.StatusOK, kospiFixture), nil
				}
				return httpmock.NewStringResponse(http.StatusOK, kosdaqFixture), nil
			})
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("suffixes issue codes with their board so ids stay unique", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		Expect(securities).To(ConsistOf(
			eod.Security{ID: "005930.KS", Name: "삼성전자", Market: eod.KR},
			eod.Security{ID: "000660.KS", Name: "SK하이닉스", Market: eod.KR},
			eod.Security{ID: "247540.KQ", Name: "에코프로비엠", Market: eod.KR},
		))
	})

	It("drops fund products by name", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		for _, sec := range securities {
			Expect(sec.Name).ToNot(ContainSubstring("ETF"))
		}
	})
})

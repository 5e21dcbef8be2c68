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

const twseFixture = `[
  {"出表日期": "1120601", "公司代號": "2330", "公司名稱": "台灣積體電路製造股份有限公司", "公司簡稱": "台積電"},
  {"出表日期": "1120601", "公司代號": "2317", "公司名稱": "鴻海精密工業股份有限公司", "公司簡稱": "鴻海"},
  {"出表日期": "1120601", "公司代號": "", "公司名稱": "", "公司簡稱": "無代號"}
]`

var _ = Describe("TWSE", func() {
	var client *TWSE

	BeforeEach(func() {
		client = NewTWSE(market.New(eod.TW, GinkgoT().TempDir()))
		httpmock.ActivateNonDefault(client.client.GetClient())

		httpmock.RegisterResponder(http.MethodGet, twseOpenAPIURL,
			httpmock.NewStringResponder(http.StatusOK, twseFixture))
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("decodes the open data payload and skips rows without a code", func() {
		securities, err := client.Companies(context.Background())
		Expect(err).To(BeNil())
		Expect(securities).To(ConsistOf(
			eod.Security{ID: "2330", Name: "台積電", Market: eod.TW},
			eod.Security{ID: "2317", Name: "鴻海", Market: eod.TW},
		))
	})

	It("errors on a malformed payload", func() {
		httpmock.RegisterResponder(http.MethodGet, twseOpenAPIURL,
			httpmock.NewStringResponder(http.StatusOK, "<html>maintenance</html>"))

		_, err := client.Companies(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

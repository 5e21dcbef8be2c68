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

package eod_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/import-eod/eod"
)

var _ = Describe("ParseMarket", func() {
	It("accepts the full market code", func() {
		m, err := eod.ParseMarket("us-share")
		Expect(err).To(BeNil())
		Expect(m).To(Equal(eod.US))
	})

	It("accepts the short form", func() {
		m, err := eod.ParseMarket("HK")
		Expect(err).To(BeNil())
		Expect(m).To(Equal(eod.HK))
	})

	It("rejects unknown codes", func() {
		_, err := eod.ParseMarket("mars")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RunStats", func() {
	It("reports completeness as the valid fraction of the universe", func() {
		stats := eod.RunStats{Total: 4, Success: 3, Fail: 1}
		Expect(stats.Completeness()).To(Equal(0.75))
	})

	It("reports zero for an empty universe", func() {
		stats := eod.RunStats{}
		Expect(stats.Completeness()).To(Equal(0.0))
	})
})

// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stringseq_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/gx-org/graphc/base/stringseq"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{in: nil, want: ""},
		{in: []int{1}, want: "%1"},
		{in: []int{1, 2, 3}, want: "%1, %2, %3"},
	}
	for _, test := range tests {
		seq := stringseq.Map(slices.Values(test.in), func(i int) string { return fmt.Sprintf("%%%d", i) })
		if got := stringseq.Join(seq, ", "); got != test.want {
			t.Errorf("Join(%v) = %q but want %q", test.in, got, test.want)
		}
	}
}

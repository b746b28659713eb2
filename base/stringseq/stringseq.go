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

// Package stringseq builds strings from iterator sequences.
package stringseq

import (
	"iter"
	"strings"
)

// Map returns a sequence formatting every element of seq with f.
func Map[T any](seq iter.Seq[T], f func(T) string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for v := range seq {
			if !yield(f(v)) {
				return
			}
		}
	}
}

// Join concatenates the elements of a sequence with sep between them.
func Join(seq iter.Seq[string], sep string) string {
	var b strings.Builder
	first := true
	for s := range seq {
		if !first {
			b.WriteString(sep)
		}
		b.WriteString(s)
		first = false
	}
	return b.String()
}

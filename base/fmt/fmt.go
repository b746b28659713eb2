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

// Package fmt formats multi-line representations of programs.
package fmt

import (
	"fmt"
	"strings"
)

// Number prefixes every line with its line number.
// Numbers are padded with zeros to have the same width.
func Number(x string) string {
	lines := strings.Split(strings.TrimSuffix(x, "\n"), "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%0*d %s\n", width, i+1, line)
	}
	if !strings.HasSuffix(x, "\n") {
		return strings.TrimSuffix(b.String(), "\n")
	}
	return b.String()
}

// Indent prefixes every non-empty line with a tabulation.
func Indent(x string) string {
	var b strings.Builder
	for line := range strings.Lines(x) {
		if strings.TrimSpace(line) != "" {
			b.WriteString("\t")
		}
		b.WriteString(line)
	}
	return b.String()
}

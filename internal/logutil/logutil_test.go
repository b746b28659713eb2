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

package logutil_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gx-org/graphc/internal/logutil"
)

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := logutil.NewLogger(&buf, logutil.LevelTrace)
	logger.Log(t.Context(), logutil.LevelTrace, "matched", "rule", "find_sum")
	got := buf.String()
	if !strings.Contains(got, "level=TRACE") {
		t.Errorf("trace level not renamed in %q", got)
	}
	if !strings.Contains(got, "source=logutil_test.go") {
		t.Errorf("source not shortened in %q", got)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := logutil.NewLogger(&buf, 0)
	logger.Log(t.Context(), logutil.LevelTrace, "hidden")
	if buf.Len() != 0 {
		t.Errorf("trace record written at info level: %q", buf.String())
	}
}

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

package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTraceWithInfoLogger(t *testing.T) {
	defaultLogger, defaultOutput := slog.Default(), traceOutput
	t.Cleanup(func() {
		slog.SetDefault(defaultLogger)
		traceOutput = defaultOutput
	})
	var info, trace bytes.Buffer
	slog.SetDefault(NewLogger(&info, slog.LevelInfo))
	traceOutput = &trace
	Trace("matched", "rule", "find_sum")
	if info.Len() != 0 {
		t.Errorf("trace record written by the info logger: %q", info.String())
	}
	if got := trace.String(); !strings.Contains(got, "level=TRACE") || !strings.Contains(got, "rule=find_sum") {
		t.Errorf("trace record not written: %q", got)
	}
}

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

// Package logutil builds the structured loggers used by the compiler.
package logutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LevelTrace is more verbose than slog.LevelDebug.
const LevelTrace slog.Level = -8

// NewLogger returns a text logger writing records at level or above.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level < slog.LevelInfo,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// traceOutput receives the trace records dropped by the default logger.
var traceOutput io.Writer = os.Stderr

// Trace logs a message at the trace level with the default logger.
// Callers only trace when a trace switch is set, so if the default logger
// drops trace records, the record is written to stderr instead.
func Trace(msg string, args ...any) {
	logger := slog.Default()
	if !logger.Enabled(context.TODO(), LevelTrace) {
		logger = NewLogger(traceOutput, LevelTrace)
	}
	logger.Log(context.TODO(), LevelTrace, msg, args...)
}

// TraceEnabled returns true if the default logger records trace messages.
func TraceEnabled() bool {
	return slog.Default().Enabled(context.TODO(), LevelTrace)
}

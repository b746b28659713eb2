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

// Package envconfig reads the configuration of the compiler from
// environment variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gx-org/graphc/internal/logutil"
)

// Var returns an environment variable stripped of leading and trailing quotes or spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a function reading a boolean from the environment.
// Any value which cannot be parsed enables the flag.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a function reading a boolean from the environment, false by default.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns a function reading an unsigned integer from the environment.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// TraceMatches logs every rule applied by the matcher.
	TraceMatches = Bool("GRAPHC_TRACE_MATCHES")
	// TracePasses logs the module after every compilation pass.
	TracePasses = Bool("GRAPHC_TRACE_COMPILE")
	// TraceEval logs every instruction evaluated by the reference target.
	TraceEval = Bool("GRAPHC_TRACE_EVAL")
	// Parallelism is the maximum number of goroutines used by a kernel.
	// Zero means GOMAXPROCS.
	Parallelism = Uint("GRAPHC_PARALLELISM", 0)
)

// LogLevel returns the log level set by GRAPHC_DEBUG.
// 1 enables debug logs, 2 enables trace logs.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("GRAPHC_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	if TraceMatches() || TracePasses() || TraceEval() {
		level = min(level, logutil.LevelTrace)
	}
	return level
}

// EnvVar describes an environment variable read by the compiler.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns all the environment variables with their current values.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GRAPHC_DEBUG":         {"GRAPHC_DEBUG", LogLevel(), "Show additional debug information (e.g. GRAPHC_DEBUG=1)"},
		"GRAPHC_TRACE_MATCHES": {"GRAPHC_TRACE_MATCHES", TraceMatches(), "Log every rewrite rule applied"},
		"GRAPHC_TRACE_COMPILE": {"GRAPHC_TRACE_COMPILE", TracePasses(), "Log the module after each compilation pass"},
		"GRAPHC_TRACE_EVAL":    {"GRAPHC_TRACE_EVAL", TraceEval(), "Log every evaluated instruction"},
		"GRAPHC_PARALLELISM":   {"GRAPHC_PARALLELISM", Parallelism(), "Maximum number of goroutines per kernel (0: GOMAXPROCS)"},
	}
}

// Values returns the environment variables as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

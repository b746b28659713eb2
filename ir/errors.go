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

package ir

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when an operator rejects the shapes of its inputs.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeMismatchError reports the inputs rejected by an operator.
type ShapeMismatchError struct {
	Op     string
	Inputs []Shape
	Err    error
}

func (e *ShapeMismatchError) Error() string {
	ss := make([]string, len(e.Inputs))
	for i, s := range e.Inputs {
		ss[i] = "{" + s.String() + "}"
	}
	return fmt.Sprintf("%s: shape mismatch for inputs [%s]: %v", e.Op, strings.Join(ss, " "), e.Err)
}

// Unwrap returns the error returned by the operator.
func (e *ShapeMismatchError) Unwrap() error {
	return e.Err
}

// Is returns true if target is ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// InternalError is a contract violation: a bug in a pass or in the code
// calling the compiler rather than a problem with the input graph.
type InternalError struct {
	err error
}

// Internal marks an error as internal.
func Internal(err error) *InternalError {
	return &InternalError{err: err}
}

// Internalf returns a new formatted internal error.
func Internalf(format string, a ...any) *InternalError {
	return Internal(errors.Errorf(format, a...))
}

func (e *InternalError) Error() string {
	return "internal error: " + e.err.Error()
}

// Unwrap returns the error wrapped by the internal error.
func (e *InternalError) Unwrap() error {
	return e.err
}

// panicf raises a contract violation.
func panicf(format string, a ...any) {
	panic(Internalf(format, a...))
}

// Recover converts a panic raised by a contract violation into an error.
// Other panics are propagated.
//
// Recover must be called directly by a deferred function:
//
//	defer ir.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	internal, ok := r.(*InternalError)
	if !ok {
		panic(r)
	}
	*err = internal
}

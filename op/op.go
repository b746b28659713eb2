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

// Package op defines the operators of the graph IR.
//
// Every operator implements shape inference. Most operators also
// compute their result on the host for the reference evaluator.
package op

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
)

// pointwise is the attribute of operators computing each element of
// their result from the elements of their inputs at the same position.
var pointwise = map[string]any{"pointwise": true}

// attrs formats an operator with its attributes: name[key=value,...].
func attrs(name string, kvs ...any) string {
	if len(kvs) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("[")
	for i := 0; i+1 < len(kvs); i += 2 {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%v=%v", kvs[i], kvs[i+1])
	}
	b.WriteString("]")
	return b.String()
}

func checkArity(name string, inputs []ir.Shape, n int) error {
	if len(inputs) != n {
		return errors.Errorf("%s requires %d inputs but got %d", name, n, len(inputs))
	}
	return nil
}

func checkMinArity(name string, inputs []ir.Shape, n int) error {
	if len(inputs) < n {
		return errors.Errorf("%s requires at least %d inputs but got %d", name, n, len(inputs))
	}
	return nil
}

// NormalizeAxis converts a negative axis into a positive one given a rank.
func NormalizeAxis(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return 0, errors.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}

// NormalizeAxes converts negative axes into positive ones given a rank.
func NormalizeAxes(axes []int, rank int) ([]int, error) {
	out := make([]int, len(axes))
	for i, axis := range axes {
		var err error
		if out[i], err = NormalizeAxis(axis, rank); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Direction of a recurrent operator.
type Direction int

const (
	// Forward processes the sequence from the first to the last element.
	Forward Direction = iota
	// Reverse processes the sequence from the last to the first element.
	Reverse
	// Bidirectional processes the sequence in both directions.
	Bidirectional
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Bidirectional:
		return "bidirectional"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// NumDirections returns 2 for bidirectional operators, 1 otherwise.
func (d Direction) NumDirections() int {
	if d == Bidirectional {
		return 2
	}
	return 1
}

// ParseDirection returns a direction given its name.
func ParseDirection(s string) (Direction, error) {
	for _, d := range []Direction{Forward, Reverse, Bidirectional} {
		if d.String() == s {
			return d, nil
		}
	}
	return Forward, errors.Errorf("unknown direction %q", s)
}

type makeOptions struct {
	allowUnknown bool
}

// Option of Make.
type Option func(*makeOptions)

// AllowUnknown makes Make return an Unknown placeholder for
// operator names it does not know.
func AllowUnknown() Option {
	return func(o *makeOptions) {
		o.allowUnknown = true
	}
}

var makers = map[string]func() ir.Operation{
	ir.IdentityName:             func() ir.Operation { return ir.IdentityOp{} },
	"undefined":                 func() ir.Operation { return Undefined{} },
	"dot":                       func() ir.Operation { return Dot{} },
	"contiguous":                func() ir.Operation { return Contiguous{} },
	"rnn_last_hs_output":        func() ir.Operation { return RNNLastHSOutput{} },
	"rnn_last_cell_output":      func() ir.Operation { return RNNLastCellOutput{} },
	"rnn_var_sl_shift_sequence": func() ir.Operation { return RNNVarSLShiftSequence{} },
	"rnn_var_sl_shift_output": func() ir.Operation {
		return RNNVarSLShiftOutput{OutputName: "hidden_states"}
	},
	"rnn_var_sl_last_output": func() ir.Operation { return RNNVarSLLastOutput{} },
	"rnn":                    func() ir.Operation { return RNN{} },
	"gru":                    func() ir.Operation { return GRU{} },
	"lstm":                   func() ir.Operation { return LSTM{} },
	"concat":                 func() ir.Operation { return Concat{} },
	"slice":                  func() ir.Operation { return Slice{} },
	"squeeze":                func() ir.Operation { return Squeeze{} },
	"unsqueeze":              func() ir.Operation { return Unsqueeze{} },
	"transpose":              func() ir.Operation { return Transpose{} },
	"broadcast":              func() ir.Operation { return Broadcast{} },
	"multibroadcast":         func() ir.Operation { return MultiBroadcast{} },
	"reshape":                func() ir.Operation { return Reshape{} },
	"pad":                    func() ir.Operation { return Pad{} },
	"convolution":            func() ir.Operation { return Convolution{Group: 1} },
	"im2col":                 func() ir.Operation { return Im2Col{} },
	"pooling":                func() ir.Operation { return Pooling{Mode: "average"} },
	"multinomial":            func() ir.Operation { return Multinomial{} },
	"if":                     func() ir.Operation { return If{} },
}

func init() {
	for _, kind := range unaryKinds {
		makers[kind] = func() ir.Operation { return Unary{Kind: kind} }
	}
	for _, kind := range binaryKinds {
		makers[kind] = func() ir.Operation { return Binary{Kind: kind} }
	}
}

// Make returns an operator with default attributes given its name.
func Make(name string, opts ...Option) (ir.Operation, error) {
	var o makeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if mk, ok := makers[name]; ok {
		return mk(), nil
	}
	if o.allowUnknown {
		return Unknown{OpName: name}, nil
	}
	return nil, errors.Errorf("unknown operator %q", name)
}

// Names returns the names of all the operators Make can create.
func Names() []string {
	names := make([]string, 0, len(makers))
	for name := range makers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

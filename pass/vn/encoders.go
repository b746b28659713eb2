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

// Package vn numbers the values computed by the instructions of a module.
//
// Two instructions get the same value if they apply the same operator to the
// same input values. Impure operators always get a fresh value.
package vn

import (
	"fmt"
	"strings"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
)

// Encoding of an instruction.
// Instructions with the same valid encoding compute the same value.
type Encoding struct {
	Key   string
	Valid bool
}

// Encoder computes the encoding of an instruction given the values of its inputs.
type Encoder func(t *Table, r ir.Ref) Encoding

// Registry maps operator names to encoders.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry returns a registry with the encoders of literals, parameters and
// spatial operators.
func NewRegistry() *Registry {
	reg := &Registry{encoders: make(map[string]Encoder)}
	reg.Register(ir.LiteralName, EncodeLiteral)
	reg.Register(ir.ParamName, EncodeParameter)
	reg.Register("convolution", EncodeConvolution)
	return reg
}

// Register an encoder for an operator name.
func (reg *Registry) Register(name string, enc Encoder) {
	reg.encoders[name] = enc
}

// Encoder returns the encoder of an operator or the default encoder.
func (reg *Registry) Encoder(name string) Encoder {
	if enc, ok := reg.encoders[name]; ok {
		return enc
	}
	return EncodeDefault
}

func inputsKey(t *Table, r ir.Ref) string {
	var b strings.Builder
	b.WriteString("(")
	for i, in := range r.Inputs() {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%d", t.mustValue(in))
	}
	b.WriteString(")")
	for _, mod := range r.Modules() {
		fmt.Fprintf(&b, "[%s]", mod.Name())
	}
	return b.String()
}

// EncodeDefault encodes the opcode of the operator and the values of the inputs.
func EncodeDefault(t *Table, r ir.Ref) Encoding {
	return Encoding{
		Key:   fmt.Sprintf("%d%s", t.Opcode(r.Op()), inputsKey(t, r)),
		Valid: !ir.IsImpure(r.Op()),
	}
}

// EncodeLiteral encodes the content of a literal.
func EncodeLiteral(_ *Table, r ir.Ref) Encoding {
	lit, ok := r.Literal()
	if !ok {
		return Encoding{}
	}
	return Encoding{
		Key:   fmt.Sprintf("%s%v%v", ir.LiteralName, lit.Shape(), lit.Data()),
		Valid: true,
	}
}

// EncodeParameter encodes the name of a parameter.
func EncodeParameter(_ *Table, r ir.Ref) Encoding {
	param, ok := r.Op().(ir.ParamOp)
	if !ok {
		return Encoding{}
	}
	return Encoding{
		Key:   ir.ParamName + ":" + param.Param,
		Valid: true,
	}
}

// EncodeConvolution encodes convolutions with canonical padding, strides and
// dilations so that equivalent attribute spellings share a value.
func EncodeConvolution(t *Table, r ir.Ref) Encoding {
	conv, ok := r.Op().(op.Convolution)
	if !ok {
		return EncodeDefault(t, r)
	}
	win, err := conv.Window.Canonical()
	if err != nil {
		return Encoding{}
	}
	canonical := op.Convolution{Window: win, Group: max(conv.Group, 1)}
	return Encoding{
		Key:   fmt.Sprintf("%d%s", t.Opcode(canonical), inputsKey(t, r)),
		Valid: true,
	}
}

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

package kernels_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/backend/kernels"
)

func iota(n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return vals
}

func TestShapeKernels(t *testing.T) {
	tests := []struct {
		name string
		got  func() ([]float64, error)
		want []float64
	}{
		{
			name: "transpose",
			got: func() ([]float64, error) {
				return kernels.Transpose(iota(6), []int{2, 3}, []int{1, 0})
			},
			want: []float64{0, 3, 1, 4, 2, 5},
		},
		{
			name: "slice",
			got: func() ([]float64, error) {
				return kernels.Slice(iota(6), []int{2, 3}, []int{1}, []int{1}, []int{3})
			},
			want: []float64{1, 2, 4, 5},
		},
		{
			name: "broadcast",
			got: func() ([]float64, error) {
				return kernels.Broadcast([]float64{1, 2}, []int{3, 2}, []int{0, 1})
			},
			want: []float64{1, 2, 1, 2, 1, 2},
		},
		{
			name: "concat axis 0",
			got: func() ([]float64, error) {
				return kernels.Concat([][]float64{{0, 1}, {2, 3, 4, 5}}, [][]int{{1, 2}, {2, 2}}, 0)
			},
			want: []float64{0, 1, 2, 3, 4, 5},
		},
		{
			name: "concat axis 1",
			got: func() ([]float64, error) {
				return kernels.Concat([][]float64{{0, 1}, {2, 3, 4, 5}}, [][]int{{2, 1}, {2, 2}}, 1)
			},
			want: []float64{0, 2, 3, 1, 4, 5},
		},
		{
			name: "pad",
			got: func() ([]float64, error) {
				return kernels.Pad([]float64{1, 2}, []int{1, 2}, []int{0, 1, 1, 0}, -1)
			},
			want: []float64{-1, 1, 2, -1, -1, -1},
		},
		{
			name: "dot",
			got: func() ([]float64, error) {
				return kernels.Dot([]float64{1, 2, 3, 4}, []float64{5, 6, 7, 8}, []int{2, 2}, []int{2, 2})
			},
			want: []float64{19, 22, 43, 50},
		},
		{
			name: "batched dot",
			got: func() ([]float64, error) {
				return kernels.Dot([]float64{1, 2, 3, 4}, []float64{1, 1, 2, 2}, []int{2, 1, 2}, []int{2, 2, 1})
			},
			want: []float64{3, 14},
		},
		{
			name: "convert int32",
			got: func() ([]float64, error) {
				return kernels.Convert([]float64{1.7, -2.5}, dtype.Int32), nil
			},
			want: []float64{1, -2},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.got()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvolution(t *testing.T) {
	win := kernels.Window{Stride: [2]int{1, 1}, Dilation: [2]int{1, 1}}
	got, lens, err := kernels.Convolution(iota(9), []float64{1, 1, 1, 1}, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, win, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 1, 2, 2}, lens); diff != "" {
		t.Errorf("unexpected lengths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{8, 12, 20, 24}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}

	win.Padding = [4]int{0, 0, 1, 1}
	_, lens, err = kernels.Convolution(iota(9), []float64{1, 1, 1, 1}, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, win, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 1, 3, 3}, lens); diff != "" {
		t.Errorf("unexpected padded lengths (-want +got):\n%s", diff)
	}
}

func TestPooling(t *testing.T) {
	win := kernels.Window{Stride: [2]int{2, 2}}
	tests := []struct {
		mode string
		want []float64
	}{
		{mode: "max", want: []float64{5, 7, 13, 15}},
		{mode: "average", want: []float64{2.5, 4.5, 10.5, 12.5}},
	}
	for _, test := range tests {
		t.Run(test.mode, func(t *testing.T) {
			got, _, err := kernels.Pooling(iota(16), []int{1, 1, 4, 4}, test.mode, 2, 2, win)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGatherOutOfRange(t *testing.T) {
	if _, err := kernels.Broadcast([]float64{1, 2}, []int{3, 2}, []int{2, 1}); err == nil {
		t.Errorf("expected an error when reading outside of the input")
	}
}

func TestIm2Col(t *testing.T) {
	win := kernels.Window{Stride: [2]int{1, 1}, Dilation: [2]int{1, 1}}
	got, lens, err := kernels.Im2Col(iota(9), []int{1, 1, 3, 3}, 2, 2, win)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{4, 4}, lens); diff != "" {
		t.Errorf("unexpected lengths (-want +got):\n%s", diff)
	}
	want := []float64{
		0, 1, 3, 4,
		1, 2, 4, 5,
		3, 4, 6, 7,
		4, 5, 7, 8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestParFor(t *testing.T) {
	t.Setenv("GRAPHC_PARALLELISM", "4")
	const n = 10000
	out := make([]int, n)
	if err := kernels.ParFor(n, func(i int) error {
		out[i] = i
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != i {
			t.Fatalf("index %d not visited", i)
		}
	}
	errBad := errors.New("bad index")
	err := kernels.ParFor(n, func(i int) error {
		if i == n/2 {
			return errors.Wrap(errBad, fmt.Sprint(i))
		}
		return nil
	})
	if !errors.Is(err, errBad) {
		t.Errorf("expected error %v but got %v", errBad, err)
	}
}

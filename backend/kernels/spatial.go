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

package kernels

import (
	"math"

	"github.com/pkg/errors"
)

// Window describes a 2D sliding window over an NCHW image.
// Padding is [top, left, bottom, right].
type Window struct {
	Padding  [4]int
	Stride   [2]int
	Dilation [2]int
}

// OutputSize returns the number of positions of a window of size k along
// an axis of length l.
func (w Window) OutputSize(axis, l, k int) int {
	dilation := max(w.Dilation[axis], 1)
	padded := l + w.Padding[axis] + w.Padding[axis+2]
	n := (padded-dilation*(k-1)-1)/max(w.Stride[axis], 1) + 1
	return max(n, 0)
}

// at returns the input coordinate of the tap t at the output position o along an axis.
func (w Window) at(axis, o, t int) int {
	return o*max(w.Stride[axis], 1) + t*max(w.Dilation[axis], 1) - w.Padding[axis]
}

// Convolution computes a grouped 2D convolution.
// x has lengths [n, c, h, w] and weights [k, c/group, kh, kw].
func Convolution(x, weights []float64, xLens, wLens []int, win Window, group int) ([]float64, []int, error) {
	if len(xLens) != 4 || len(wLens) != 4 {
		return nil, nil, errors.Errorf("convolution: only 2D images are supported")
	}
	group = max(group, 1)
	n, c, h, w := xLens[0], xLens[1], xLens[2], xLens[3]
	k, cg, kh, kw := wLens[0], wLens[1], wLens[2], wLens[3]
	if c != cg*group || k%group != 0 {
		return nil, nil, errors.Errorf("convolution: %d channels and %d filters cannot be split in %d groups", c, k, group)
	}
	oh, ow := win.OutputSize(0, h, kh), win.OutputSize(1, w, kw)
	outLens := []int{n, k, oh, ow}
	out := make([]float64, Size(outLens))
	kPerGroup := k / group
	err := ParFor(len(out), func(i int) error {
		idx := make([]int, 4)
		Multi(i, outLens, idx)
		b, f, y, xx := idx[0], idx[1], idx[2], idx[3]
		g := f / kPerGroup
		var acc float64
		for ci := range cg {
			channel := g*cg + ci
			for ty := range kh {
				iy := win.at(0, y, ty)
				if iy < 0 || iy >= h {
					continue
				}
				for tx := range kw {
					ix := win.at(1, xx, tx)
					if ix < 0 || ix >= w {
						continue
					}
					acc += x[((b*c+channel)*h+iy)*w+ix] * weights[((f*cg+ci)*kh+ty)*kw+tx]
				}
			}
		}
		out[i] = acc
		return nil
	})
	return out, outLens, err
}

// Im2Col unrolls the windows of the first image of x into rows.
// The result has lengths [oh*ow, c*kh*kw].
func Im2Col(x []float64, xLens []int, kh, kw int, win Window) ([]float64, []int, error) {
	c, h, w := xLens[1], xLens[2], xLens[3]
	oh, ow := win.OutputSize(0, h, kh), win.OutputSize(1, w, kw)
	outLens := []int{oh * ow, c * kh * kw}
	out := make([]float64, Size(outLens))
	err := ParFor(oh*ow, func(row int) error {
		y, xx := row/ow, row%ow
		col := 0
		for ci := range c {
			for ty := range kh {
				for tx := range kw {
					iy, ix := win.at(0, y, ty), win.at(1, xx, tx)
					if iy >= 0 && iy < h && ix >= 0 && ix < w {
						out[row*outLens[1]+col] = x[(ci*h+iy)*w+ix]
					}
					col++
				}
			}
		}
		return nil
	})
	return out, outLens, err
}

// Pooling computes a 2D max or average pooling.
// Average pooling divides by the number of taps inside the image.
func Pooling(x []float64, xLens []int, mode string, kh, kw int, win Window) ([]float64, []int, error) {
	if mode != "max" && mode != "average" {
		return nil, nil, errors.Errorf("pooling: unknown mode %q", mode)
	}
	n, c, h, w := xLens[0], xLens[1], xLens[2], xLens[3]
	oh, ow := win.OutputSize(0, h, kh), win.OutputSize(1, w, kw)
	outLens := []int{n, c, oh, ow}
	out := make([]float64, Size(outLens))
	err := ParFor(len(out), func(i int) error {
		idx := make([]int, 4)
		Multi(i, outLens, idx)
		plane := (idx[0]*c + idx[1]) * h * w
		acc, count := 0.0, 0
		if mode == "max" {
			acc = math.Inf(-1)
		}
		for ty := range kh {
			iy := win.at(0, idx[2], ty)
			if iy < 0 || iy >= h {
				continue
			}
			for tx := range kw {
				ix := win.at(1, idx[3], tx)
				if ix < 0 || ix >= w {
					continue
				}
				v := x[plane+iy*w+ix]
				if mode == "max" {
					acc = math.Max(acc, v)
				} else {
					acc += v
				}
				count++
			}
		}
		if mode == "average" && count > 0 {
			acc /= float64(count)
		}
		out[i] = acc
		return nil
	})
	return out, outLens, err
}

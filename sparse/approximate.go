// Copyright 2024 rsparse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import (
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/snoweye/rsparse/base/parallel"
)

// grainSize bounds how many primary indices one scheduling unit covers.
// Primary slices have irregular degrees, so chunks stay small enough for
// load balancing while amortizing channel overhead.
const grainSize = 128

// Approximate evaluates the product of two dense factor matrices at the
// stored positions of a sparse matrix. x holds one column per row entity
// (rank × pattern.Rows) and y one column per column entity
// (rank × pattern.Cols). Only the structure of pattern is consulted; its
// values are ignored.
//
// The output slice is parallel to pattern.Indices:
//
//	out[pp] = dot(x[:,i], y[:,Indices[pp]])   for CSR
//	out[pp] = dot(y[:,i], x[:,Indices[pp]])   for CSC
//
// Disjoint offset ranges make the outer loop embarrassingly parallel, so the
// result is deterministic and independent of nJobs.
func Approximate(pattern *Matrix, x, y *mat.Dense, nJobs int) ([]float64, error) {
	if nJobs < 1 {
		return nil, errors.NotValidf("thread count %d", nJobs)
	}
	xRank, xCols := x.Dims()
	yRank, yCols := y.Dims()
	if xRank != yRank {
		return nil, errors.NotValidf("factor ranks %d and %d", xRank, yRank)
	}
	if xCols != pattern.Rows || yCols != pattern.Cols {
		return nil, errors.NotValidf("factors %dx%d and %dx%d for pattern %dx%d",
			xRank, xCols, yRank, yCols, pattern.Rows, pattern.Cols)
	}
	var n int
	switch pattern.layout {
	case CSR:
		n = pattern.Rows
	case CSC:
		n = pattern.Cols
	default:
		return nil, errors.NotSupportedf("sparse matrix layout %d", pattern.layout)
	}
	values := make([]float64, pattern.NNZ())
	err := parallel.BatchParallel(n, nJobs, grainSize, func(_, begin, end int) error {
		for i := begin; i < end; i++ {
			var xc, other *mat.Dense
			if pattern.layout == CSR {
				xc, other = x, y
			} else {
				xc, other = y, x
			}
			column := xc.ColView(i)
			for pp := pattern.Offsets[i]; pp < pattern.Offsets[i+1]; pp++ {
				values[pp] = mat.Dot(column, other.ColView(int(pattern.Indices[pp])))
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return values, nil
}

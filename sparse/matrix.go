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

// Package sparse provides compressed sparse matrix views and the masked
// dot-product kernel shared by the factorization models.
package sparse

import (
	"math"

	"github.com/juju/errors"
)

// Layout selects the compressed orientation of a sparse matrix. The numeric
// codes are part of the external interface and must not change.
type Layout int

const (
	// CSC stores offsets per column and row ids in the index array.
	CSC Layout = 1
	// CSR stores offsets per row and column ids in the index array.
	CSR Layout = 2
)

func (l Layout) String() string {
	switch l {
	case CSC:
		return "CSC"
	case CSR:
		return "CSR"
	default:
		return "unknown"
	}
}

// Matrix is an immutable, non-owning view over a compressed sparse matrix.
// Offsets partitions Indices and Values into slices per primary dimension
// (rows for CSR, columns for CSC). Values may be nil for pattern-only views.
type Matrix struct {
	Rows    int
	Cols    int
	Offsets []int
	Indices []uint32
	Values  []float64
	layout  Layout
}

// NewCSR creates a row-major compressed view and validates its structure.
func NewCSR(rows, cols int, offsets []int, indices []uint32, values []float64) (*Matrix, error) {
	return newMatrix(CSR, rows, cols, offsets, indices, values)
}

// NewCSC creates a column-major compressed view and validates its structure.
func NewCSC(rows, cols int, offsets []int, indices []uint32, values []float64) (*Matrix, error) {
	return newMatrix(CSC, rows, cols, offsets, indices, values)
}

func newMatrix(layout Layout, rows, cols int, offsets []int, indices []uint32, values []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.NotValidf("matrix shape %dx%d", rows, cols)
	}
	primary, secondary := rows, cols
	if layout == CSC {
		primary, secondary = cols, rows
	}
	if len(offsets) != primary+1 {
		return nil, errors.NotValidf("offsets length %d for primary dimension %d", len(offsets), primary)
	}
	if offsets[0] != 0 {
		return nil, errors.NotValidf("offsets starting at %d", offsets[0])
	}
	if offsets[primary] != len(indices) {
		return nil, errors.NotValidf("offsets ending at %d with %d stored indices", offsets[primary], len(indices))
	}
	for i := 0; i < primary; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, errors.NotValidf("decreasing offsets at position %d", i)
		}
	}
	for _, index := range indices {
		if int(index) >= secondary {
			return nil, errors.NotValidf("index %d beyond secondary dimension %d", index, secondary)
		}
	}
	if values != nil && len(values) != len(indices) {
		return nil, errors.NotValidf("%d values for %d stored indices", len(values), len(indices))
	}
	return &Matrix{
		Rows:    rows,
		Cols:    cols,
		Offsets: offsets,
		Indices: indices,
		Values:  values,
		layout:  layout,
	}, nil
}

// Layout returns the compressed orientation of the matrix.
func (m *Matrix) Layout() Layout {
	return m.layout
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.Indices)
}

// PrimaryCount returns the size of the compressed dimension.
func (m *Matrix) PrimaryCount() int {
	if m.layout == CSC {
		return m.Cols
	}
	return m.Rows
}

// Range returns the stored indices and values of primary slice i. The value
// slice is nil for pattern-only views.
func (m *Matrix) Range(i int) ([]uint32, []float64) {
	begin, end := m.Offsets[i], m.Offsets[i+1]
	if m.Values == nil {
		return m.Indices[begin:end], nil
	}
	return m.Indices[begin:end], m.Values[begin:end]
}

// HasMissing reports whether any stored value is NaN.
func (m *Matrix) HasMissing() bool {
	for _, v := range m.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

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

package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/snoweye/rsparse/base"
	"github.com/snoweye/rsparse/model"
	"github.com/snoweye/rsparse/sparse"
)

const testDelta = 1e-10

// newTrainSet builds a small 6x5 interaction matrix.
func newTrainSet(t *testing.T) *sparse.Matrix {
	t.Helper()
	train, err := sparse.NewCSR(6, 5,
		[]int{0, 3, 5, 8, 10, 12, 15},
		[]uint32{0, 1, 4, 1, 2, 0, 2, 3, 3, 4, 0, 4, 1, 2, 3},
		[]float64{5, 3, 1, 4, 2, 3, 5, 1, 2, 4, 1, 5, 3, 2, 4})
	assert.NoError(t, err)
	return train
}

func newBasis(t *testing.T, nItems, rank int) *mat.Dense {
	t.Helper()
	rng := base.NewRandomGenerator(7)
	return mat.NewDense(nItems, rank, rng.NormalVector64(nItems*rank, 0, 1))
}

func TestLinearFlow_Fit(t *testing.T) {
	train := newTrainSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2, model.Reg: 0.5})
	err := lf.Fit(train, FixedBasis(newBasis(t, 5, 2)), NewFitConfig())
	assert.NoError(t, err)
	// the solution satisfies (lhs + λI)·C = rhs
	var reconstructed mat.Dense
	a := mat.DenseCopyOf(lf.lhs)
	for i := 0; i < 2; i++ {
		a.Set(i, i, a.At(i, i)+0.5)
	}
	reconstructed.Mul(a, lf.Components)
	assert.InDelta(t, 0, residual(&reconstructed, lf.rhs), testDelta)
}

func residual(a, b *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

func TestLinearFlow_RidgeReduction(t *testing.T) {
	// with λ = 0 the solver reduces to ordinary least squares
	train := newTrainSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2, model.Reg: 0.0})
	err := lf.Fit(train, FixedBasis(newBasis(t, 5, 2)), NewFitConfig())
	assert.NoError(t, err)
	var direct mat.Dense
	assert.NoError(t, direct.Solve(lf.lhs, lf.rhs))
	assert.InDelta(t, 0, residual(&direct, lf.Components), testDelta)
}

func TestLinearFlow_MonotonicShrinkage(t *testing.T) {
	train := newTrainSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2})
	assert.NoError(t, lf.prepare(train, FixedBasis(newBasis(t, 5, 2)), 1))
	previous := -1.0
	for _, lambda := range []float64{0.1, 1, 10, 100} {
		components, err := lf.solve(lambda)
		assert.NoError(t, err)
		norm := mat.Norm(components, 2)
		if previous >= 0 {
			assert.Less(t, norm, previous)
		}
		previous = norm
	}
}

func TestLinearFlow_SingularSystem(t *testing.T) {
	// an all-zero matrix yields singular normal equations for λ = 0
	train, err := sparse.NewCSR(3, 3,
		[]int{0, 1, 2, 3}, []uint32{0, 1, 2}, []float64{0, 0, 0})
	assert.NoError(t, err)
	lf := NewLinearFlow(model.Params{model.NFactors: 2, model.Reg: 0.0})
	err = lf.Fit(train, FixedBasis(newBasis(t, 3, 2)), NewFitConfig())
	assert.Error(t, err)
}

func TestLinearFlow_BasisValidation(t *testing.T) {
	train := newTrainSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2})
	// wrong item dimension
	err := lf.Fit(train, FixedBasis(newBasis(t, 4, 2)), NewFitConfig())
	assert.Error(t, err)
	// wrong rank
	err = lf.Fit(train, FixedBasis(newBasis(t, 5, 3)), NewFitConfig())
	assert.Error(t, err)
}

func TestLinearFlow_SVDBasis(t *testing.T) {
	train := newTrainSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2, model.Reg: 0.1})
	err := lf.Fit(train, nil, NewFitConfig())
	assert.NoError(t, err)
	rows, cols := lf.V.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 2, cols)
	rows, cols = lf.Components.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 5, cols)
}

func newHoldOutSet(t *testing.T) *sparse.Matrix {
	t.Helper()
	test, err := sparse.NewCSR(6, 5,
		[]int{0, 1, 2, 3, 4, 5, 6},
		[]uint32{2, 0, 1, 4, 1, 0},
		nil)
	assert.NoError(t, err)
	return test
}

func TestLinearFlow_CrossValidate(t *testing.T) {
	train := newTrainSet(t)
	test := newHoldOutSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2})
	lambdas := []float64{0.01, 0.1, 1, 10}
	path, err := lf.CrossValidate(train, test, lambdas, nil, NDCG, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, path.Path, len(lambdas))
	// the selected best is the first maximal entry
	bestIndex := 0
	for i, step := range path.Path {
		assert.Equal(t, lambdas[i], step.Lambda)
		if step.Score > path.Path[bestIndex].Score {
			bestIndex = i
		}
	}
	assert.Equal(t, bestIndex, path.BestIndex)
	assert.Equal(t, lambdas[bestIndex], path.BestLambda)
	assert.Equal(t, path.Path[bestIndex].Score, path.BestScore)
	assert.NotNil(t, path.BestComponents)
	// the model retains the best solution
	assert.Equal(t, path.BestComponents, lf.Components)
}

func TestLinearFlow_CrossValidateAutoLambdas(t *testing.T) {
	train := newTrainSet(t)
	test := newHoldOutSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2})
	path, err := lf.CrossValidate(train, test, nil, nil, MAP, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, path.Path, lambdaPathLength)
	for i := 1; i < len(path.Path); i++ {
		assert.Greater(t, path.Path[i].Lambda, path.Path[i-1].Lambda)
	}
}

func TestLinearFlow_CrossValidateMissingMetric(t *testing.T) {
	train := newTrainSet(t)
	test := newHoldOutSet(t)
	lf := NewLinearFlow(model.Params{model.NFactors: 2})
	_, err := lf.CrossValidate(train, test, nil, nil, nil, NewFitConfig())
	assert.Error(t, err)
}

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

// Package ranking implements the LinearFlow ridge-regularized low-rank
// solver for top-k recommendation over sparse interaction matrices.
package ranking

import (
	"math"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/snoweye/rsparse/base"
	"github.com/snoweye/rsparse/base/log"
	"github.com/snoweye/rsparse/base/parallel"
	"github.com/snoweye/rsparse/model"
	"github.com/snoweye/rsparse/sparse"
)

// batchSize bounds work per scheduling unit when sweeping rows.
const batchSize = 128

// lambdaPathLength is the number of auto-generated regularization candidates.
const lambdaPathLength = 10

type FitConfig struct {
	Jobs       int
	TopK       int
	Candidates int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:       1,
		TopK:       10,
		Candidates: 100,
	}
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) SetTopK(topK int) *FitConfig {
	config.TopK = topK
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// BasisSource obtains the right-factor basis (nItems × rank) for a training
// matrix. Sources are supplied by the caller and resolved once per fit.
type BasisSource func(x *sparse.Matrix, rank int) (*mat.Dense, error)

// FixedBasis returns a source that yields the supplied matrix after
// validating its shape against the training matrix.
func FixedBasis(v *mat.Dense) BasisSource {
	return func(x *sparse.Matrix, rank int) (*mat.Dense, error) {
		rows, cols := v.Dims()
		if rows != x.Cols || cols != rank {
			return nil, errors.NotValidf("basis shape %dx%d, want %dx%d", rows, cols, x.Cols, rank)
		}
		return v, nil
	}
}

// SVDBasis derives the basis from a thin singular value decomposition of the
// training matrix. Intended for matrices small enough to densify; for larger
// inputs supply a basis from a randomized or soft-impute decomposition.
func SVDBasis() BasisSource {
	return func(x *sparse.Matrix, rank int) (*mat.Dense, error) {
		if rank > x.Rows || rank > x.Cols {
			return nil, errors.NotValidf("rank %d for %dx%d matrix", rank, x.Rows, x.Cols)
		}
		dense := mat.NewDense(x.Rows, x.Cols, nil)
		for u := 0; u < x.Rows; u++ {
			indices, values := x.Range(u)
			for p, i := range indices {
				dense.Set(u, int(i), values[p])
			}
		}
		var svd mat.SVD
		if ok := svd.Factorize(dense, mat.SVDThin); !ok {
			return nil, errors.Errorf("singular value decomposition did not converge")
		}
		var v mat.Dense
		svd.VTo(&v)
		return mat.DenseCopyOf(v.Slice(0, x.Cols, 0, rank)), nil
	}
}

// LambdaScore is one step of a regularization path.
type LambdaScore struct {
	Lambda float64
	Score  float64
}

// LambdaPath is the outcome of a warm-start regularization sweep: one score
// per candidate plus the best candidate (first maximal entry on ties).
type LambdaPath struct {
	Path           []LambdaScore
	BestIndex      int
	BestLambda     float64
	BestScore      float64
	BestComponents *mat.Dense
}

// LinearFlow factorizes a user-item matrix X as X ≈ (X·V)·C where V is a
// fixed item basis and C solves the ridge system (VᵀXᵀXV + λI)C = (XV)ᵀX.
// The normal-equation matrices are built once and reused across λ values.
//
// Hyper-parameters:
//
//	NFactors - The rank of the basis. Default is 10.
//	Reg      - The regularization strength λ. Default is 0.01.
type LinearFlow struct {
	model.BaseModel
	// Model parameters
	V          *mat.Dense // item basis, nItems × rank
	Components *mat.Dense // rank × nItems
	// Cached normal equations, read-only across a lambda sweep
	lhs        *mat.Dense // rank × rank
	rhs        *mat.Dense // rank × nItems
	userFactor *mat.Dense // X·V, nUsers × rank
	// Hyper parameters
	nFactors int
	reg      float64
}

// NewLinearFlow creates a LinearFlow model.
func NewLinearFlow(params model.Params) *LinearFlow {
	lf := new(LinearFlow)
	lf.SetParams(params)
	return lf
}

// SetParams sets hyper-parameters of the LinearFlow model.
func (lf *LinearFlow) SetParams(params model.Params) {
	lf.BaseModel.SetParams(params)
	lf.nFactors = lf.Params.GetInt(model.NFactors, 10)
	lf.reg = lf.Params.GetFloat64(model.Reg, 0.01)
}

func (lf *LinearFlow) Clear() {
	lf.V = nil
	lf.Components = nil
	lf.lhs = nil
	lf.rhs = nil
	lf.userFactor = nil
}

// Predict returns the score of an item for a user seen during fitting.
func (lf *LinearFlow) Predict(userIndex, itemIndex int) float64 {
	if lf.userFactor == nil || lf.Components == nil {
		log.Logger().Warn("predict called on an unfitted model")
		return 0
	}
	return mat.Dot(lf.userFactor.RowView(userIndex), lf.Components.ColView(itemIndex))
}

// Fit derives the basis, builds the normal equations and solves the ridge
// system for the configured regularization strength.
func (lf *LinearFlow) Fit(train *sparse.Matrix, basis BasisSource, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	start := time.Now()
	if err := lf.prepare(train, basis, config.Jobs); err != nil {
		return errors.Trace(err)
	}
	components, err := lf.solve(lf.reg)
	if err != nil {
		return errors.Trace(err)
	}
	lf.Components = components
	log.Logger().Info("fit linear flow",
		zap.Int("n_users", train.Rows),
		zap.Int("n_items", train.Cols),
		zap.Int("n_factors", lf.nFactors),
		zap.Float64("reg", lf.reg),
		zap.String("fit_time", time.Since(start).String()))
	return nil
}

func (lf *LinearFlow) prepare(train *sparse.Matrix, basis BasisSource, nJobs int) error {
	if train.Layout() != sparse.CSR {
		return errors.NotSupportedf("sparse matrix layout %v for training", train.Layout())
	}
	if train.Values == nil {
		return errors.NotValidf("pattern-only training matrix")
	}
	if basis == nil {
		basis = SVDBasis()
	}
	v, err := basis(train, lf.nFactors)
	if err != nil {
		return errors.Trace(err)
	}
	if rows, cols := v.Dims(); rows != train.Cols || cols != lf.nFactors {
		return errors.NotValidf("basis shape %dx%d, want %dx%d", rows, cols, train.Cols, lf.nFactors)
	}
	lf.V = v
	m, n, k := train.Rows, train.Cols, lf.nFactors
	// X·V, rows are independent
	xv := mat.NewDense(m, k, nil)
	_ = parallel.BatchParallel(m, nJobs, batchSize, func(_, begin, end int) error {
		for u := begin; u < end; u++ {
			indices, values := train.Range(u)
			row := xv.RawRowView(u)
			for p, i := range indices {
				basisRow := lf.V.RawRowView(int(i))
				for f := range row {
					row[f] += values[p] * basisRow[f]
				}
			}
		}
		return nil
	})
	// rhsᵀ = Xᵀ·(XV); a single pass over the stored entries, serial because
	// distinct rows scatter into the same item slots.
	rhsT := mat.NewDense(n, k, nil)
	for u := 0; u < m; u++ {
		indices, values := train.Range(u)
		xvRow := xv.RawRowView(u)
		for p, i := range indices {
			dst := rhsT.RawRowView(int(i))
			for f := range dst {
				dst[f] += values[p] * xvRow[f]
			}
		}
	}
	lf.rhs = mat.DenseCopyOf(rhsT.T())
	lhs := mat.NewDense(k, k, nil)
	lhs.Mul(lf.rhs, lf.V)
	lf.lhs = lhs
	lf.userFactor = xv
	return nil
}

// solve computes the components for one regularization strength, reusing the
// cached normal equations. λ = 0 is ordinary least squares and fails when
// the system is singular.
func (lf *LinearFlow) solve(lambda float64) (*mat.Dense, error) {
	k := lf.nFactors
	a := mat.NewDense(k, k, nil)
	a.Copy(lf.lhs)
	for i := 0; i < k; i++ {
		a.Set(i, i, a.At(i, i)+lambda)
	}
	var components mat.Dense
	if err := components.Solve(a, lf.rhs); err != nil {
		return nil, errors.Annotatef(err, "ridge system with lambda %g", lambda)
	}
	return &components, nil
}

// CrossValidate sweeps candidate regularization strengths over fixed normal
// equations, scoring each candidate on held-out interactions. Candidate
// items per user are the held-out items plus sampled negatives; they are
// scored through the approximation kernel and ranked top-k. An empty lambdas
// slice auto-generates a log-spaced path from the diagonal of the system
// matrix. The model retains the best components.
func (lf *LinearFlow) CrossValidate(train, test *sparse.Matrix, lambdas []float64, basis BasisSource, metric Metric, config *FitConfig) (*LambdaPath, error) {
	config = config.LoadDefaultIfNil()
	if metric == nil {
		return nil, errors.NotValidf("missing ranking metric")
	}
	if test.Layout() != sparse.CSR {
		return nil, errors.NotSupportedf("sparse matrix layout %v for held-out data", test.Layout())
	}
	if train.Rows != test.Rows || train.Cols != test.Cols {
		return nil, errors.NotValidf("held-out shape %dx%d against training shape %dx%d",
			test.Rows, test.Cols, train.Rows, train.Cols)
	}
	if err := lf.prepare(train, basis, config.Jobs); err != nil {
		return nil, errors.Trace(err)
	}
	if len(lambdas) == 0 {
		lambdas = lf.defaultLambdas()
	}
	pattern, targets, err := lf.candidatePattern(train, test, config.Candidates)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// Left factor for the kernel: one column per user.
	userT := mat.DenseCopyOf(lf.userFactor.T())
	path := &LambdaPath{
		Path:      make([]LambdaScore, 0, len(lambdas)),
		BestIndex: -1,
	}
	for index, lambda := range lambdas {
		components, err := lf.solve(lambda)
		if err != nil {
			return nil, errors.Trace(err)
		}
		scores, err := sparse.Approximate(pattern, userT, components, config.Jobs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		partSum := make([]float64, config.Jobs)
		partCount := make([]float64, config.Jobs)
		_ = parallel.Parallel(pattern.Rows, config.Jobs, func(workerId, userIndex int) error {
			if targets[userIndex] == nil {
				return nil
			}
			filter := base.NewTopKFilter(config.TopK)
			for pp := pattern.Offsets[userIndex]; pp < pattern.Offsets[userIndex+1]; pp++ {
				filter.Push(int32(pattern.Indices[pp]), scores[pp])
			}
			rankList, _ := filter.PopAll()
			partSum[workerId] += metric(targets[userIndex], rankList)
			partCount[workerId]++
			return nil
		})
		count := lo.Sum(partCount)
		if count == 0 {
			return nil, errors.NotValidf("held-out set without interactions")
		}
		score := lo.Sum(partSum) / count
		path.Path = append(path.Path, LambdaScore{Lambda: lambda, Score: score})
		log.Logger().Debug("cross validate linear flow",
			zap.Int("step", index+1),
			zap.Int("steps", len(lambdas)),
			zap.Float64("lambda", lambda),
			zap.Float64("score", score))
		if path.BestIndex < 0 || score > path.BestScore {
			path.BestIndex = index
			path.BestLambda = lambda
			path.BestScore = score
			path.BestComponents = components
		}
	}
	lf.reg = path.BestLambda
	lf.Components = path.BestComponents
	log.Logger().Info("cross validate linear flow complete",
		zap.Float64("best_lambda", path.BestLambda),
		zap.Float64("best_score", path.BestScore))
	return path, nil
}

// defaultLambdas builds a log-spaced path between a tenth of the smallest
// and ten times the largest diagonal entry of the system matrix.
func (lf *LinearFlow) defaultLambdas() []float64 {
	diag := make([]float64, lf.nFactors)
	for i := range diag {
		diag[i] = lf.lhs.At(i, i)
	}
	high := 10 * lo.Max(diag)
	low := 0.1 * lo.Min(diag)
	if low <= 0 {
		// rank-deficient basis, keep the path finite
		low = high * 1e-10
	}
	lambdas := make([]float64, lambdaPathLength)
	for i := range lambdas {
		t := float64(i) / float64(lambdaPathLength-1)
		lambdas[i] = math.Exp(math.Log(low) + t*(math.Log(high)-math.Log(low)))
	}
	return lambdas
}

// candidatePattern assembles one CSR pattern holding, per validation user,
// the held-out items plus sampled negatives not observed in either split.
func (lf *LinearFlow) candidatePattern(train, test *sparse.Matrix, numCandidates int) (*sparse.Matrix, []mapset.Set[int32], error) {
	rng := lf.GetRandomGenerator()
	offsets := make([]int, 1, test.Rows+1)
	indices := make([]uint32, 0, test.NNZ())
	targets := make([]mapset.Set[int32], test.Rows)
	for u := 0; u < test.Rows; u++ {
		testItems, _ := test.Range(u)
		if len(testItems) > 0 {
			exclude := mapset.NewThreadUnsafeSet[int]()
			trainItems, _ := train.Range(u)
			for _, i := range trainItems {
				exclude.Add(int(i))
			}
			targets[u] = mapset.NewThreadUnsafeSet[int32]()
			for _, i := range testItems {
				exclude.Add(int(i))
				targets[u].Add(int32(i))
				indices = append(indices, i)
			}
			for _, i := range rng.Sample(0, test.Cols, numCandidates, exclude) {
				indices = append(indices, uint32(i))
			}
		}
		offsets = append(offsets, len(indices))
	}
	pattern, err := sparse.NewCSR(test.Rows, test.Cols, offsets, indices, nil)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return pattern, targets, nil
}

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

// Package fm implements an online second-order factorization machine with
// per-parameter adaptive step sizes.
package fm

import (
	"math"
	"strings"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/snoweye/rsparse/base"
	"github.com/snoweye/rsparse/base/floats"
	"github.com/snoweye/rsparse/base/log"
	"github.com/snoweye/rsparse/base/parallel"
	"github.com/snoweye/rsparse/model"
	"github.com/snoweye/rsparse/sparse"
)

// batchSize bounds rows per scheduling unit during training and prediction.
const batchSize = 128

// Task selects the loss family of a factorization machine.
type Task uint8

const (
	// Regression fits squared error against real-valued targets.
	Regression Task = 'r'
	// Classification fits logistic loss; targets are re-mapped to ±1 by sign.
	Classification Task = 'c'
)

// ParseTask resolves a loss family name once at construction time.
func ParseTask(name string) (Task, error) {
	switch strings.ToLower(name) {
	case "regression", "r":
		return Regression, nil
	case "classification", "c":
		return Classification, nil
	default:
		return 0, errors.NotValidf("loss family %q", name)
	}
}

type FitConfig struct {
	Jobs int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Jobs: 1}
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// FM is an online factorization machine:
//
//	ŷ(x) = w0 + w·x + 0.5·Σ_f[(v_f·x)² − Σ_d v²_{f,d}·x²_d]
//
// trained by per-parameter AdaGrad. The L2 penalty is folded into the
// per-parameter gradient before it is squared into the accumulator, and the
// intercept carries its own accumulator:
//
//	g = ∂L/∂θ + λ·θ;  G += g²;  θ -= lr·g/√G
//
// Accumulators start at 1 and never shrink, so effective step sizes are
// non-increasing. With Jobs > 1 rows are updated Hogwild-style: writes to
// overlapping feature indices are unsynchronized and the trained parameters
// depend on scheduling. Use Jobs = 1 for deterministic training.
//
// Hyper-parameters:
//
//	Lr          - Learning rate for the linear terms and the intercept. Default is 0.01.
//	LrV         - Learning rate for the interaction terms. Defaults to Lr.
//	Reg         - L2 penalty for the linear terms. Default is 0.
//	RegV        - L2 penalty for the interaction terms. Default is 0.
//	NFactors    - The number of latent factors. Default is 8.
//	Intercept   - Whether to fit w0. Default is true.
//	InitMean    - The mean of initial interaction factors. Default is 0.
//	InitStdDev  - The standard deviation of initial interaction factors. Default is 0.01.
type FM struct {
	model.BaseModel
	// Model parameters
	W0 float32
	W  []float32
	V  [][]float32 // V[d] is the factor vector of feature d
	// AdaGrad accumulators, monotonically non-decreasing
	GradW02 float32
	GradW2  []float32
	GradV2  [][]float32
	Task    Task
	// Fixed at first PartialFit
	nFeatures int
	// Hyper parameters
	nFactors   int
	lrW        float32
	lrV        float32
	regW       float32
	regV       float32
	intercept  bool
	initMean   float32
	initStdDev float32
}

// NewFM creates a factorization machine for the given loss family.
func NewFM(task Task, params model.Params) *FM {
	fm := new(FM)
	fm.Task = task
	fm.SetParams(params)
	return fm
}

// SetParams sets hyper-parameters of the FM model.
func (fm *FM) SetParams(params model.Params) {
	fm.BaseModel.SetParams(params)
	fm.nFactors = fm.Params.GetInt(model.NFactors, 8)
	fm.lrW = fm.Params.GetFloat32(model.Lr, 0.01)
	fm.lrV = fm.Params.GetFloat32(model.LrV, fm.lrW)
	fm.regW = fm.Params.GetFloat32(model.Reg, 0)
	fm.regV = fm.Params.GetFloat32(model.RegV, 0)
	fm.intercept = fm.Params.GetBool(model.Intercept, true)
	fm.initMean = fm.Params.GetFloat32(model.InitMean, 0)
	fm.initStdDev = fm.Params.GetFloat32(model.InitStdDev, 0.01)
}

func (fm *FM) Clear() {
	fm.W0 = 0
	fm.W = nil
	fm.V = nil
	fm.GradW02 = 0
	fm.GradW2 = nil
	fm.GradV2 = nil
	fm.nFeatures = 0
}

// Initialized reports whether parameters have been allocated by a first
// PartialFit call.
func (fm *FM) Initialized() bool {
	return fm.V != nil
}

// NumFeatures returns the feature count fixed at the first PartialFit, or 0.
func (fm *FM) NumFeatures() int {
	return fm.nFeatures
}

func (fm *FM) init(nFeatures int) {
	fm.nFeatures = nFeatures
	fm.W0 = 0
	fm.GradW02 = 1
	fm.W = make([]float32, nFeatures)
	fm.GradW2 = make([]float32, nFeatures)
	for d := range fm.GradW2 {
		fm.GradW2[d] = 1
	}
	fm.V = fm.GetRandomGenerator().NormalMatrix(nFeatures, fm.nFactors, fm.initMean, fm.initStdDev)
	fm.GradV2 = base.NewMatrix32(nFeatures, fm.nFactors)
	for d := range fm.GradV2 {
		for f := range fm.GradV2[d] {
			fm.GradV2[d][f] = 1
		}
	}
}

func (fm *FM) validate(x *sparse.Matrix) error {
	if x.Layout() != sparse.CSR {
		return errors.NotSupportedf("sparse matrix layout %v for feature rows", x.Layout())
	}
	if x.Values == nil {
		return errors.NotValidf("pattern-only feature matrix")
	}
	if x.HasMissing() {
		return errors.NotValidf("feature matrix with missing values")
	}
	if fm.Initialized() && x.Cols != fm.nFeatures {
		return errors.NotValidf("%d features for a model fixed at %d", x.Cols, fm.nFeatures)
	}
	return nil
}

// PartialFit updates the model in place from one mini-batch of sparse rows.
// The first call allocates the parameters and fixes the feature count.
func (fm *FM) PartialFit(x *sparse.Matrix, y, weights []float64, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	if err := fm.validate(x); err != nil {
		return errors.Trace(err)
	}
	if x.Rows != len(y) {
		return errors.NotValidf("%d rows against %d targets", x.Rows, len(y))
	}
	if weights != nil && len(weights) != len(y) {
		return errors.NotValidf("%d weights against %d targets", len(weights), len(y))
	}
	for _, target := range y {
		if math.IsNaN(target) {
			return errors.NotValidf("targets with missing values")
		}
	}
	for _, w := range weights {
		if math.IsNaN(w) {
			return errors.NotValidf("sample weights with missing values")
		}
	}
	if !fm.Initialized() {
		fm.init(x.Cols)
	}
	vx := base.NewMatrix32(config.Jobs, fm.nFactors)
	cost := atomic.NewFloat64(0)
	_ = parallel.BatchParallel(x.Rows, config.Jobs, batchSize, func(workerId, begin, end int) error {
		for u := begin; u < end; u++ {
			indices, values := x.Range(u)
			pred := fm.forward(indices, values, vx[workerId])
			w := float32(1)
			if weights != nil {
				w = float32(weights[u])
			}
			var grad float32
			switch fm.Task {
			case Regression:
				grad = pred - float32(y[u])
				cost.Add(float64(w * grad * grad / 2))
			case Classification:
				t := float32(-1)
				if y[u] > 0 {
					t = 1
				}
				grad = -t * sigmoid(-t*pred)
				cost.Add(float64(w) * float64(math32.Log(1+math32.Exp(-t*pred))))
			}
			grad *= w
			fm.update(indices, values, grad, vx[workerId])
		}
		return nil
	})
	log.Logger().Debug("partial fit fm",
		zap.Int("rows", x.Rows),
		zap.Int("jobs", config.Jobs),
		zap.Float64("loss", cost.Load()))
	return nil
}

// Predict evaluates the scoring formula without mutating state. For the
// logistic family the returned values are probabilities.
func (fm *FM) Predict(x *sparse.Matrix, config *FitConfig) ([]float64, error) {
	config = config.LoadDefaultIfNil()
	if !fm.Initialized() {
		return nil, errors.Errorf("predict called before the first partial fit")
	}
	if err := fm.validate(x); err != nil {
		return nil, errors.Trace(err)
	}
	vx := base.NewMatrix32(config.Jobs, fm.nFactors)
	predictions := make([]float64, x.Rows)
	_ = parallel.BatchParallel(x.Rows, config.Jobs, batchSize, func(workerId, begin, end int) error {
		for u := begin; u < end; u++ {
			indices, values := x.Range(u)
			pred := fm.forward(indices, values, vx[workerId])
			if fm.Task == Classification {
				pred = sigmoid(pred)
			}
			predictions[u] = float64(pred)
		}
		return nil
	})
	return predictions, nil
}

// forward computes ŷ for one row; vx receives Σ_d v_{f,d}·x_d per factor and
// is reused by the gradient step.
func (fm *FM) forward(indices []uint32, values []float64, vx []float32) float32 {
	var pred float32
	if fm.intercept {
		pred = fm.W0
	}
	floats.Zero(vx)
	var sumSquares float32
	for p, d := range indices {
		xd := float32(values[p])
		pred += fm.W[d] * xd
		floats.MulConstAddTo(fm.V[d], xd, vx)
		sumSquares += xd * xd * floats.Dot(fm.V[d], fm.V[d])
	}
	pred += (floats.Dot(vx, vx) - sumSquares) / 2
	return pred
}

// update applies one AdaGrad step for every parameter touched by the row.
func (fm *FM) update(indices []uint32, values []float64, grad float32, vx []float32) {
	if fm.intercept {
		fm.GradW02 += grad * grad
		fm.W0 -= fm.lrW * grad / math32.Sqrt(fm.GradW02)
	}
	for p, d := range indices {
		xd := float32(values[p])
		gw := grad*xd + fm.regW*fm.W[d]
		fm.GradW2[d] += gw * gw
		fm.W[d] -= fm.lrW * gw / math32.Sqrt(fm.GradW2[d])
		vd := fm.V[d]
		gd2 := fm.GradV2[d]
		for f := range vd {
			gv := grad*(vx[f]*xd-vd[f]*xd*xd) + fm.regV*vd[f]
			gd2[f] += gv * gv
			vd[f] -= fm.lrV * gv / math32.Sqrt(gd2[f])
		}
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

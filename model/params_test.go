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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_GetInt(t *testing.T) {
	p := Params{NFactors: 10, Lr: 0.1}
	assert.Equal(t, 10, p.GetInt(NFactors, 5))
	assert.Equal(t, 5, p.GetInt(NEpochs, 5))
	// type mismatch falls back to the default
	assert.Equal(t, 5, p.GetInt(Lr, 5))
}

func TestParams_GetInt64(t *testing.T) {
	p := Params{RandomState: int64(42), NFactors: 10}
	assert.Equal(t, int64(42), p.GetInt64(RandomState, 0))
	assert.Equal(t, int64(10), p.GetInt64(NFactors, 0))
	assert.Equal(t, int64(0), p.GetInt64(NEpochs, 0))
}

func TestParams_GetBool(t *testing.T) {
	p := Params{Intercept: false, NFactors: 10}
	assert.False(t, p.GetBool(Intercept, true))
	assert.True(t, p.GetBool(NEpochs, true))
	assert.True(t, p.GetBool(NFactors, true))
}

func TestParams_GetFloat32(t *testing.T) {
	p := Params{Lr: 0.1, Reg: float32(0.2), NFactors: 3}
	assert.Equal(t, float32(0.1), p.GetFloat32(Lr, 0))
	assert.Equal(t, float32(0.2), p.GetFloat32(Reg, 0))
	assert.Equal(t, float32(3), p.GetFloat32(NFactors, 0))
	assert.Equal(t, float32(0.5), p.GetFloat32(LrV, 0.5))
}

func TestParams_GetFloat64(t *testing.T) {
	p := Params{Reg: 0.2, Lr: float32(0.5), NFactors: 3}
	assert.Equal(t, 0.2, p.GetFloat64(Reg, 0))
	assert.Equal(t, 0.5, p.GetFloat64(Lr, 0))
	assert.Equal(t, 3.0, p.GetFloat64(NFactors, 0))
	assert.Equal(t, 0.7, p.GetFloat64(RegV, 0.7))
}

func TestParams_CopyOverwrite(t *testing.T) {
	p := Params{NFactors: 10, Lr: 0.1}
	q := p.Copy()
	q[NFactors] = 20
	assert.Equal(t, 10, p.GetInt(NFactors, 0))
	merged := p.Overwrite(Params{Lr: 0.2, NEpochs: 5})
	assert.Equal(t, 10, merged.GetInt(NFactors, 0))
	assert.Equal(t, 0.2, merged.GetFloat64(Lr, 0))
	assert.Equal(t, 5, merged.GetInt(NEpochs, 0))
	// receiver unchanged
	assert.Equal(t, 0.1, p.GetFloat64(Lr, 0))
}

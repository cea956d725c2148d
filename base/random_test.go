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

package base

import (
	"math"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func TestRandomGenerator_Determinism(t *testing.T) {
	a := NewRandomGenerator(42).NormalVector(100, 0, 1)
	b := NewRandomGenerator(42).NormalVector(100, 0, 1)
	assert.Equal(t, a, b)
	c := NewRandomGenerator(43).NormalVector(100, 0, 1)
	assert.NotEqual(t, a, c)
}

func TestRandomGenerator_NormalVector(t *testing.T) {
	vec := NewRandomGenerator(0).NormalVector(10000, 1, 2)
	assert.InDelta(t, 1, mean32(vec), randomEpsilon)
	assert.InDelta(t, 2, stdDev32(vec), randomEpsilon)
}

func TestRandomGenerator_NormalVector64(t *testing.T) {
	vec := NewRandomGenerator(0).NormalVector64(10000, 1, 2)
	sum, sumSquares := 0.0, 0.0
	for _, v := range vec {
		sum += v
	}
	mean := sum / float64(len(vec))
	for _, v := range vec {
		sumSquares += (v - mean) * (v - mean)
	}
	assert.InDelta(t, 1, mean, randomEpsilon)
	assert.InDelta(t, 4, sumSquares/float64(len(vec)), 4*randomEpsilon)
}

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	m := NewRandomGenerator(0).NormalMatrix(32, 16, 0, 0.1)
	assert.Len(t, m, 32)
	for _, row := range m {
		assert.Len(t, row, 16)
	}
}

func TestRandomGenerator_Sample(t *testing.T) {
	exclude := mapset.NewSet[int](0, 1, 2, 3, 4)
	rng := NewRandomGenerator(0)
	sampled := rng.Sample(0, 100, 10, exclude)
	assert.Len(t, sampled, 10)
	seen := mapset.NewSet[int]()
	for _, v := range sampled {
		assert.False(t, exclude.Contains(v))
		assert.False(t, seen.Contains(v))
		seen.Add(v)
	}
	// more samples requested than available returns the whole complement
	sampled = rng.Sample(0, 10, 100, exclude)
	assert.ElementsMatch(t, []int{5, 6, 7, 8, 9}, sampled)
}

func TestRandomGenerator_SampleMixedSetFlavors(t *testing.T) {
	rng := NewRandomGenerator(0)
	sampled := rng.Sample(0, 10, 4,
		mapset.NewSet[int](0, 1),
		mapset.NewThreadUnsafeSet[int](2, 3))
	assert.Len(t, sampled, 4)
	for _, v := range sampled {
		assert.GreaterOrEqual(t, v, 4)
	}
}

func mean32(vec []float32) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += float64(v)
	}
	return sum / float64(len(vec))
}

func stdDev32(vec []float32) float64 {
	m := mean32(vec)
	sum := 0.0
	for _, v := range vec {
		sum += (float64(v) - m) * (float64(v) - m)
	}
	return math.Sqrt(sum / float64(len(vec)))
}

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
	"math"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

const evalDelta = 1e-6

func TestNDCG(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 2)
	rankList := []int32{1, 3, 2}
	idcg := 1.0 + 1.0/math.Log2(3)
	dcg := 1.0 + 1.0/math.Log2(4)
	assert.InDelta(t, dcg/idcg, NDCG(targetSet, rankList), evalDelta)
	assert.InDelta(t, 1, NDCG(targetSet, []int32{1, 2, 3}), evalDelta)
	assert.Zero(t, NDCG(targetSet, []int32{3, 4, 5}))
}

func TestPrecision(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 2)
	assert.InDelta(t, 2.0/3.0, Precision(targetSet, []int32{1, 3, 2}), evalDelta)
	assert.Zero(t, Precision(targetSet, []int32{3, 4, 5}))
}

func TestMAP(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 2)
	// hits at positions 1 and 3: (1/1 + 2/3) / 2
	assert.InDelta(t, (1.0+2.0/3.0)/2.0, MAP(targetSet, []int32{1, 3, 2}), evalDelta)
	assert.Zero(t, MAP(targetSet, []int32{3, 4, 5}))
}

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"ndcg", "NDCG", "map", "precision"} {
		metric, err := ParseMetric(name)
		assert.NoError(t, err)
		assert.NotNil(t, metric)
	}
	_, err := ParseMetric("rmse")
	assert.Error(t, err)
}

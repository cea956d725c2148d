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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	filter := NewTopKFilter(3)
	for i, weight := range []float64{0.3, 0.9, 0.1, 0.7, 0.5} {
		filter.Push(int32(i), weight)
	}
	items, weights := filter.PopAll()
	assert.Equal(t, []int32{1, 3, 4}, items)
	assert.Equal(t, []float64{0.9, 0.7, 0.5}, weights)
}

func TestTopKFilter_Underfull(t *testing.T) {
	filter := NewTopKFilter(10)
	filter.Push(2, 1)
	filter.Push(1, 2)
	items, weights := filter.PopAll()
	assert.Equal(t, []int32{1, 2}, items)
	assert.Equal(t, []float64{2, 1}, weights)
}

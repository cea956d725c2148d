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

// Package dataset loads sparse training data from text files.
package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/snoweye/rsparse/base"
	"github.com/snoweye/rsparse/sparse"
)

// LoadLibSVM reads a libsvm-format file (`target index:value ...` per line,
// zero-based feature indices) into a CSR matrix and a target vector. The
// feature count is the largest index seen plus one.
func LoadLibSVM(path string) (*sparse.Matrix, []float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer file.Close()
	offsets := []int{0}
	var indices []uint32
	var values, targets []float64
	maxFeature := -1
	lineCount := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		target, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, nil, errors.Annotatef(err, "target at line %d", lineCount)
		}
		targets = append(targets, target)
		for _, field := range fields[1:] {
			kv := strings.Split(field, ":")
			if len(kv) != 2 {
				return nil, nil, errors.NotValidf("feature %q at line %d", field, lineCount)
			}
			index, err := strconv.Atoi(kv[0])
			if err != nil || index < 0 {
				return nil, nil, errors.NotValidf("feature index %q at line %d", kv[0], lineCount)
			}
			value, err := strconv.ParseFloat(kv[1], 64)
			if err != nil {
				return nil, nil, errors.Annotatef(err, "feature value at line %d", lineCount)
			}
			if index > maxFeature {
				maxFeature = index
			}
			indices = append(indices, uint32(index))
			values = append(values, value)
		}
		offsets = append(offsets, len(indices))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	x, err := sparse.NewCSR(len(targets), maxFeature+1, offsets, indices, values)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return x, targets, nil
}

// LoadTriplets reads `user,item,value` rows (zero-based integer ids) into a
// CSR interaction matrix. The shape is the largest id seen plus one in each
// dimension.
func LoadTriplets(path, sep string) (*sparse.Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var users, items []int
	var ratings []float64
	maxUser, maxItem := -1, -1
	lineCount := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, errors.NotValidf("triplet %q at line %d", line, lineCount)
		}
		user, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || user < 0 {
			return nil, errors.NotValidf("user id %q at line %d", fields[0], lineCount)
		}
		item, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || item < 0 {
			return nil, errors.NotValidf("item id %q at line %d", fields[1], lineCount)
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, errors.Annotatef(err, "rating at line %d", lineCount)
		}
		users = append(users, user)
		items = append(items, item)
		ratings = append(ratings, rating)
		if user > maxUser {
			maxUser = user
		}
		if item > maxItem {
			maxItem = item
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	// bucket triplets by user
	rows, cols := maxUser+1, maxItem+1
	offsets := make([]int, rows+1)
	for _, user := range users {
		offsets[user+1]++
	}
	for u := 0; u < rows; u++ {
		offsets[u+1] += offsets[u]
	}
	indices := make([]uint32, len(users))
	values := make([]float64, len(users))
	cursor := make([]int, rows)
	for i, user := range users {
		p := offsets[user] + cursor[user]
		indices[p] = uint32(items[i])
		values[p] = ratings[i]
		cursor[user]++
	}
	return sparse.NewCSR(rows, cols, offsets, indices, values)
}

// Split moves roughly testRatio of every user's interactions into a held-out
// matrix. Both returned matrices keep the original shape.
func Split(x *sparse.Matrix, testRatio float64, seed int64) (*sparse.Matrix, *sparse.Matrix, error) {
	if x.Layout() != sparse.CSR {
		return nil, nil, errors.NotSupportedf("sparse matrix layout %v for splitting", x.Layout())
	}
	if x.Values == nil {
		return nil, nil, errors.NotValidf("pattern-only matrix for splitting")
	}
	rng := base.NewRandomGenerator(seed)
	trainOffsets := make([]int, 1, x.Rows+1)
	testOffsets := make([]int, 1, x.Rows+1)
	var trainIndices, testIndices []uint32
	var trainValues, testValues []float64
	for u := 0; u < x.Rows; u++ {
		indices, values := x.Range(u)
		perm := rng.Perm(len(indices))
		numTest := int(float64(len(indices)) * testRatio)
		for p, j := range perm {
			if p < numTest {
				testIndices = append(testIndices, indices[j])
				testValues = append(testValues, values[j])
			} else {
				trainIndices = append(trainIndices, indices[j])
				trainValues = append(trainValues, values[j])
			}
		}
		trainOffsets = append(trainOffsets, len(trainIndices))
		testOffsets = append(testOffsets, len(testIndices))
	}
	train, err := sparse.NewCSR(x.Rows, x.Cols, trainOffsets, trainIndices, trainValues)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	test, err := sparse.NewCSR(x.Rows, x.Cols, testOffsets, testIndices, testValues)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}

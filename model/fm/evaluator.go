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

package fm

import "math"

/* Evaluate Predictions */

// RMSE is the root mean square error between predictions and targets.
func RMSE(predictions, targets []float64) float64 {
	sum := 0.0
	for i := range predictions {
		diff := predictions[i] - targets[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(predictions)))
}

// LogLoss is the mean negative log-likelihood of probability predictions
// against binary targets (positive means class 1).
func LogLoss(predictions, targets []float64) float64 {
	sum := 0.0
	for i := range predictions {
		if targets[i] > 0 {
			sum -= math.Log(predictions[i])
		} else {
			sum -= math.Log(1 - predictions[i])
		}
	}
	return sum / float64(len(predictions))
}

// Accuracy is the fraction of probability predictions on the correct side
// of 0.5.
func Accuracy(predictions, targets []float64) float64 {
	hit := 0
	for i := range predictions {
		if (predictions[i] > 0.5) == (targets[i] > 0) {
			hit++
		}
	}
	return float64(hit) / float64(len(predictions))
}

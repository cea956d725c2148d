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

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snoweye/rsparse/base/log"
	"github.com/snoweye/rsparse/dataset"
	"github.com/snoweye/rsparse/model"
	"github.com/snoweye/rsparse/model/ranking"
)

func init() {
	rootCommand.AddCommand(linflowCommand)
	linflowCommand.PersistentFlags().String("csv-sep", ",", "separator of the triplet file")
	linflowCommand.PersistentFlags().Int("rank", 10, "rank of the item basis")
	linflowCommand.PersistentFlags().Float64("test-ratio", 0.2, "fraction of interactions held out per user")
	linflowCommand.PersistentFlags().Float64Slice("lambdas", nil, "candidate regularization strengths (default: auto)")
	linflowCommand.PersistentFlags().String("metric", "ndcg", "ranking metric (ndcg, map or precision)")
	linflowCommand.PersistentFlags().Int("top-k", 10, "length of recommendation list")
	linflowCommand.PersistentFlags().Int("n-negatives", 100, "number of sampled negative candidates per user")
	linflowCommand.PersistentFlags().Int64("random-state", 0, "random seed")
	linflowCommand.PersistentFlags().Int("jobs", runtime.NumCPU(), "number of jobs for model fitting")
}

var linflowCommand = &cobra.Command{
	Use:   "linflow DATA_FILE",
	Short: "Sweep ridge regularization for a low-rank recommender on triplet data",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.PersistentFlags()
		metricName, _ := flags.GetString("metric")
		metric, err := ranking.ParseMetric(metricName)
		if err != nil {
			log.Logger().Fatal("unknown ranking metric", zap.Error(err))
		}
		sep, _ := flags.GetString("csv-sep")
		x, err := dataset.LoadTriplets(args[0], sep)
		if err != nil {
			log.Logger().Fatal("failed to load triplet file", zap.Error(err))
		}
		testRatio, _ := flags.GetFloat64("test-ratio")
		randomState, _ := flags.GetInt64("random-state")
		train, test, err := dataset.Split(x, testRatio, randomState)
		if err != nil {
			log.Logger().Fatal("failed to split data", zap.Error(err))
		}
		rank, _ := flags.GetInt("rank")
		lambdas, _ := flags.GetFloat64Slice("lambdas")
		topK, _ := flags.GetInt("top-k")
		negatives, _ := flags.GetInt("n-negatives")
		jobs, _ := flags.GetInt("jobs")
		lf := ranking.NewLinearFlow(model.Params{
			model.NFactors:    rank,
			model.RandomState: randomState,
		})
		config := ranking.NewFitConfig().SetJobs(jobs).SetTopK(topK)
		config.Candidates = negatives
		path, err := lf.CrossValidate(train, test, lambdas, nil, metric, config)
		if err != nil {
			log.Logger().Fatal("failed to cross validate", zap.Error(err))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Lambda", fmt.Sprintf("%s@%d", metricName, topK)})
		for _, step := range path.Path {
			table.Append([]string{
				fmt.Sprintf("%g", step.Lambda),
				fmt.Sprintf("%.6f", step.Score),
			})
		}
		table.Render()
		log.Logger().Info("best lambda",
			zap.Float64("lambda", path.BestLambda),
			zap.Float64("score", path.BestScore))
	},
}

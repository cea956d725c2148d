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
	"runtime"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snoweye/rsparse/base/log"
	"github.com/snoweye/rsparse/dataset"
	"github.com/snoweye/rsparse/model"
	"github.com/snoweye/rsparse/model/fm"
)

func init() {
	rootCommand.AddCommand(fmCommand)
	fmCommand.PersistentFlags().String("task", "classification", "loss family (classification or regression)")
	fmCommand.PersistentFlags().Int("factors", 8, "number of latent factors")
	fmCommand.PersistentFlags().Int("epochs", 10, "number of passes over the training file")
	fmCommand.PersistentFlags().Float32("lr", 0.01, "learning rate for linear terms")
	fmCommand.PersistentFlags().Float32("lr-v", 0.01, "learning rate for interaction terms")
	fmCommand.PersistentFlags().Float32("reg", 0, "L2 penalty for linear terms")
	fmCommand.PersistentFlags().Float32("reg-v", 0, "L2 penalty for interaction terms")
	fmCommand.PersistentFlags().Bool("no-intercept", false, "disable the intercept")
	fmCommand.PersistentFlags().Int64("random-state", 0, "random seed")
	fmCommand.PersistentFlags().Int("jobs", runtime.NumCPU(), "number of jobs for model fitting")
}

var fmCommand = &cobra.Command{
	Use:   "fm TRAIN_FILE TEST_FILE",
	Short: "Train a factorization machine on libsvm-format files",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.PersistentFlags()
		taskName, _ := flags.GetString("task")
		task, err := fm.ParseTask(taskName)
		if err != nil {
			log.Logger().Fatal("unknown loss family", zap.Error(err))
		}
		trainX, trainY, err := dataset.LoadLibSVM(args[0])
		if err != nil {
			log.Logger().Fatal("failed to load training file", zap.Error(err))
		}
		testX, testY, err := dataset.LoadLibSVM(args[1])
		if err != nil {
			log.Logger().Fatal("failed to load test file", zap.Error(err))
		}
		factors, _ := flags.GetInt("factors")
		epochs, _ := flags.GetInt("epochs")
		lr, _ := flags.GetFloat32("lr")
		lrV, _ := flags.GetFloat32("lr-v")
		reg, _ := flags.GetFloat32("reg")
		regV, _ := flags.GetFloat32("reg-v")
		noIntercept, _ := flags.GetBool("no-intercept")
		randomState, _ := flags.GetInt64("random-state")
		jobs, _ := flags.GetInt("jobs")
		m := fm.NewFM(task, model.Params{
			model.NFactors:    factors,
			model.Lr:          lr,
			model.LrV:         lrV,
			model.Reg:         reg,
			model.RegV:        regV,
			model.Intercept:   !noIntercept,
			model.RandomState: randomState,
		})
		config := fm.NewFitConfig().SetJobs(jobs)
		bar := progressbar.Default(int64(epochs), "training")
		for epoch := 0; epoch < epochs; epoch++ {
			if err := m.PartialFit(trainX, trainY, nil, config); err != nil {
				log.Logger().Fatal("failed to fit", zap.Error(err))
			}
			_ = bar.Add(1)
		}
		predictions, err := m.Predict(testX, config)
		if err != nil {
			log.Logger().Fatal("failed to predict", zap.Error(err))
		}
		switch task {
		case fm.Regression:
			log.Logger().Info("test score", zap.Float64("RMSE", fm.RMSE(predictions, testY)))
		case fm.Classification:
			log.Logger().Info("test score",
				zap.Float64("LogLoss", fm.LogLoss(predictions, testY)),
				zap.Float64("Accuracy", fm.Accuracy(predictions, testY)))
		}
	},
}

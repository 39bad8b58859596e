// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
	"github.com/spf13/cobra"
)

// ClipBatchSubscription is the topic_subscriptions entry consumed by
// annotate --listen.
const ClipBatchSubscription = "ClipBatchTopic"

type annotateFlags struct {
	input  string
	output string
	listen bool
}

func newAnnotateCommand() *cobra.Command {
	var f annotateFlags
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Generate question answer conversations for generated clips with Gemini",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnnotate(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.input, "in", "", "override [annotation] input_path, a caption dataset")
	cmd.Flags().StringVar(&f.output, "out", "", "override [annotation] output_path")
	cmd.Flags().BoolVar(&f.listen, "listen", false, "annotate clip batches as they are published instead of reading a dataset")
	return cmd
}

func runAnnotate(ctx context.Context, f annotateFlags) error {
	config := state.config
	if f.input != "" {
		config.Annotation.InputPath = f.input
	}
	if f.output != "" {
		config.Annotation.OutputPath = f.output
	}
	if config.Application.GoogleProjectId == "" {
		return errors.New("annotation needs [application] google_project_id")
	}
	if err := InitClients(ctx, cloud.ClientSet{GenAI: true, PubSub: f.listen}); err != nil {
		return err
	}

	store, err := annotation.OpenResponseStore(config.Annotation.ResponsesPath, config.Annotation.FlushEvery)
	if err != nil {
		return err
	}
	qa, err := workflow.NewClipQAPipeline(config, state.cloud, store)
	if err != nil {
		return err
	}

	var runErr error
	if f.listen {
		listener, ok := state.cloud.PubSubListeners[ClipBatchSubscription]
		if !ok {
			return fmt.Errorf("topic subscription %s is not configured", ClipBatchSubscription)
		}
		listener.SetCommand(qa)
		<-listener.Listen(ctx)
	} else {
		records, err := dataset.Load(config.Annotation.InputPath)
		if err != nil {
			return err
		}
		tasks, err := annotation.TasksFromRecords(records, config.Annotation.VideoBucket)
		if err != nil {
			return err
		}
		slog.Info("annotating clips", "clips", len(tasks), "resumed", store.Len())
		runErr = qa.RunTasks(ctx, tasks)
	}

	if err := store.Flush(); err != nil {
		return err
	}
	out := annotation.Assemble(store.Responses(), rand.New(rand.NewSource(config.Annotation.Seed)))
	if err := dataset.WriteJSON(config.Annotation.OutputPath, out); err != nil {
		return err
	}
	slog.Info("annotation dataset written", "path", config.Annotation.OutputPath, "records", len(out))
	return runErr
}

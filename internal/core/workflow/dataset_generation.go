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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// Observer follows the progress of a generation run.
type Observer interface {
	Begin(runID string, scenes int)
	SceneFinished(result SceneResult)
	End(err error)
}

// Summary totals a generation run.
type Summary struct {
	RunID        string `json:"run_id"`
	Scenes       int    `json:"scenes"`
	FailedScenes int    `json:"failed_scenes"`
	Clips        int    `json:"clips"`
	Skipped      int    `json:"skipped"`
	Records      int    `json:"records"`
}

// DatasetGeneration runs scenes through a Runner and appends each finished
// scene to the caption dataset, writing it after every scene.
type DatasetGeneration struct {
	RunID     string
	Runner    *Runner
	Assembler *dataset.Assembler
	Publish   cor.Command // Optional per-scene publishing chain.
	Observer  Observer    // Optional.
}

// Run returns an error when the dataset cannot be written, no worker could
// be started or ctx was cancelled; other scene failures are only counted in
// the summary.
func (g *DatasetGeneration) Run(ctx context.Context, scenes []model.Scene, table model.FrequencyTable) (summary Summary, err error) {
	summary.RunID = g.RunID
	if g.Observer != nil {
		g.Observer.Begin(g.RunID, len(scenes))
		defer func() { g.Observer.End(err) }()
	}
	if len(scenes) == 0 {
		slog.Warn("no scenes to process")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var noWorker error
	for result := range g.Runner.Run(runCtx, scenes, table) {
		summary.Scenes++
		if result.Failed() {
			summary.FailedScenes++
			if errors.Is(result.Err, ErrNoWorker) {
				noWorker = result.Err
			}
		}
		summary.Skipped += len(result.Skipped)
		if len(result.Clips) > 0 {
			g.publish(runCtx, result)
			g.Assembler.Add(result.Clips...)
			summary.Clips += len(result.Clips)
			if err = g.Assembler.Flush(); err != nil {
				return summary, fmt.Errorf("failed to write dataset after scene %s: %w", result.Scene.Name, err)
			}
		}
		if g.Observer != nil {
			g.Observer.SceneFinished(result)
		}
	}
	if g.Assembler.Len() == 0 {
		// Leave a valid, empty dataset behind.
		if err = g.Assembler.Flush(); err != nil {
			return summary, err
		}
	}
	summary.Records = g.Assembler.Len()
	slog.Info("generation complete", "run", g.RunID, "scenes", summary.Scenes, "failed", summary.FailedScenes, "clips", summary.Clips, "records", summary.Records, "path", g.Assembler.Path())
	if noWorker != nil {
		return summary, noWorker
	}
	return summary, ctx.Err()
}

// publish runs the publishing chain for the clips of a scene. Uploads set
// the storage URI of the clips in place.
func (g *DatasetGeneration) publish(ctx context.Context, result SceneResult) {
	if g.Publish == nil {
		return
	}
	clips := make([]*model.CaptionedClip, len(result.Clips))
	for i := range result.Clips {
		clips[i] = &result.Clips[i]
	}
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamScene, result.Scene)
	chainCtx.Add(commands.ParamClips, clips)

	g.Publish.Execute(chainCtx)

	for name, e := range chainCtx.GetErrors() {
		slog.Error("failed to publish scene", "scene", result.Scene.Name, "command", name, "error", e)
	}
}

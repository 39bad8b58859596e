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
	"fmt"
	"log/slog"
	"math/rand"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/api"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/catalog"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/navigation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/bridge"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/gridsim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
	"github.com/spf13/cobra"
)

type hm3dFlags struct {
	sceneRoot  string
	runID      string
	workers    int
	maxObjects int
	limit      int
	statusAddr string
}

func newHM3DCommand() *cobra.Command {
	var f hm3dFlags
	cmd := &cobra.Command{
		Use:   "hm3d",
		Short: "Record a captioned navigation video for objects of every scene",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHM3D(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.sceneRoot, "scene-root", "", "override [hm3d] scene_root, a directory or gs:// URI")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "identifier of the run (default a random UUID)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "override [hm3d] worker_count")
	cmd.Flags().IntVar(&f.maxObjects, "max-objects", 0, "override [hm3d] max_num_objects")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "process at most this many scenes")
	cmd.Flags().StringVar(&f.statusAddr, "status-addr", "", "serve run progress on this address while generating")
	return cmd
}

// NewSimulatorFactory returns the configured simulator backend. The grid
// backend only reads gridsim files, so it is refused for any other geometry
// extension.
func NewSimulatorFactory(config cloud.Simulator, geometryExtension string) (sim.Factory, error) {
	switch config.Backend {
	case "grid":
		if geometryExtension != gridsim.Extension {
			return nil, fmt.Errorf("simulator backend grid reads %s scenes, not %s", gridsim.Extension, geometryExtension)
		}
		return gridsim.Factory{}, nil
	case "bridge":
		if config.BridgeCommand == "" {
			return nil, fmt.Errorf("simulator backend bridge needs bridge_command")
		}
		return bridge.Factory{Command: config.BridgeCommand, Args: config.BridgeArgs}, nil
	default:
		return nil, fmt.Errorf("unknown simulator backend %q", config.Backend)
	}
}

// NewSceneJobOptions maps the configuration onto scene job options.
func NewSceneJobOptions(config *cloud.Config) workflow.SceneJobOptions {
	return workflow.SceneJobOptions{
		Settings: sim.Settings{
			Width:          config.Simulator.Width,
			Height:         config.Simulator.Height,
			HFOV:           config.Simulator.HFOV,
			ColorSensor:    config.Simulator.ColorSensor,
			DepthSensor:    config.Simulator.DepthSensor,
			SemanticSensor: config.Simulator.SemanticSensor,
			Seed:           config.Simulator.Seed,
			MaxFrames:      config.Simulator.MaxFrames,
			DefaultAgent:   config.Simulator.DefaultAgent,
		},
		Navigation: navigation.Options{
			MinGeodesicDistance:  config.Navigation.MinGeodesicDistance,
			MaxPlacementAttempts: config.Navigation.MaxPlacementAttempts,
			FloorHeightThreshold: config.Navigation.FloorHeightThreshold,
		},
		MaxObjects: config.HM3D.MaxNumObjects,
		OutputRoot: config.HM3D.OutputRoot,
		Seed:       config.Simulator.Seed,
		Templates:  config.HM3D.CaptionTemplates,
	}
}

func runHM3D(ctx context.Context, f hm3dFlags) error {
	config := state.config
	if f.sceneRoot != "" {
		config.HM3D.SceneRoot = f.sceneRoot
	}
	if f.workers > 0 {
		config.HM3D.WorkerCount = f.workers
	}
	if f.maxObjects > 0 {
		config.HM3D.MaxNumObjects = f.maxObjects
	}
	runID := f.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	remote := model.IsRemotePath(config.HM3D.SceneRoot)
	set := cloud.ClientSet{
		Storage:  remote || config.Storage.OutputBucket != "",
		BigQuery: config.BigQueryDataSource.ClipTable != "",
		PubSub:   config.Publisher.Topic != "",
		IAM:      f.statusAddr != "",
	}
	if err := InitClients(ctx, set); err != nil {
		return err
	}

	cat := catalog.New(catalog.Options{
		Split:          config.HM3D.Split,
		Extension:      config.HM3D.GeometryExtension,
		SemanticSuffix: config.HM3D.SemanticSuffix,
		DatasetConfig:  config.HM3D.DatasetConfig,
	}, state.cloud.StorageClient)
	scenes, err := cat.Discover(ctx, config.HM3D.SceneRoot)
	if err != nil {
		return err
	}
	if f.limit > 0 && len(scenes) > f.limit {
		scenes = scenes[:f.limit]
	}
	slog.Info("scenes discovered", "root", config.HM3D.SceneRoot, "scenes", len(scenes))

	table, err := LoadFrequencyTable(config)
	if err != nil {
		return err
	}

	factory, err := NewSimulatorFactory(config.Simulator, config.HM3D.GeometryExtension)
	if err != nil {
		return err
	}
	recorder := video.NewRecorder(
		video.NewFFMpegEncoder(config.Video.FfmpegCommand, config.Video.Codec),
		config.Simulator.Width, config.Simulator.Height, config.Video.FPS, config.Video.Validate)
	opts := NewSceneJobOptions(config)
	policy := cloud.NewRetryPolicy(config.Retry)
	newJob := func(worker int) (*workflow.SceneJob, error) {
		var cache *cloud.SlotCache
		if remote {
			if state.cloud.StorageClient == nil {
				return nil, fmt.Errorf("remote scene root needs a storage client")
			}
			dir := filepath.Join(config.Storage.ScratchDir, fmt.Sprintf("worker-%d", worker))
			cache = cloud.NewSlotCache(dir, cloud.StorageFetch(state.cloud.StorageClient, policy))
		}
		return workflow.NewSceneJob(factory, recorder, cache, opts), nil
	}

	assembler, err := dataset.NewAssembler(config.HM3D.AnnotationsPath, config.HM3D.Prompts, rand.New(rand.NewSource(config.Simulator.Seed)))
	if err != nil {
		return err
	}
	progress := api.NewProgress()
	gen := &workflow.DatasetGeneration{
		RunID:     runID,
		Runner:    workflow.NewRunner(config.HM3D.WorkerCount, newJob),
		Assembler: assembler,
		Observer:  progress,
	}
	if publish, topic := workflow.NewScenePublishPipeline(config, state.cloud, runID); publish != nil {
		gen.Publish = publish
		if topic != nil {
			defer topic.Stop()
		}
	}

	if f.statusAddr != "" {
		serverCtx, stopServer := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			srv := api.NewServer(f.statusAddr, NewRouter(config, progress))
			if err := srv.Run(serverCtx); err != nil {
				slog.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			stopServer()
			<-done
		}()
	}

	summary, err := gen.Run(ctx, scenes, table)
	slog.Info("generation finished", "run_id", summary.RunID, "scenes", summary.Scenes,
		"failed_scenes", summary.FailedScenes, "clips", summary.Clips, "skipped", summary.Skipped,
		"records", summary.Records, "dataset", assembler.Path())
	if err != nil {
		return err
	}
	return uploadAnnotations(ctx, config, assembler.Path())
}

// uploadAnnotations copies the caption dataset next to the uploaded clips.
func uploadAnnotations(ctx context.Context, config *cloud.Config, file string) error {
	if state.cloud.StorageClient == nil || config.Storage.OutputBucket == "" {
		return nil
	}
	obj := cloud.GCSObject{
		Bucket:   config.Storage.OutputBucket,
		Name:     path.Join(strings.Trim(config.Storage.OutputPrefix, "/"), filepath.Base(file)),
		MIMEType: "application/json",
	}
	policy := cloud.NewRetryPolicy(config.Retry)
	if err := policy.Do(ctx, func(ctx context.Context) error {
		return cloud.UploadFile(ctx, state.cloud.StorageClient, file, obj)
	}); err != nil {
		return fmt.Errorf("failed to upload annotations: %w", err)
	}
	slog.Info("annotations uploaded", "uri", obj.URI())
	return nil
}

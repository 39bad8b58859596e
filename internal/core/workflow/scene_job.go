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
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/caption"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/navigation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/selection"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/jaycherian/gcp-go-embodied-datagen/workflow"

// Skip reasons that are not errors.
const (
	SkipIncomplete = "chain produced no clip"
	SkipAborted    = "scene aborted"
)

// SceneResult is everything one scene produced. Clips recorded before a
// scene-level failure are kept.
type SceneResult struct {
	Scene    model.Scene
	Worker   int
	Selected []model.SemanticObject
	Clips    []model.CaptionedClip
	Skipped  []model.SkippedObject
	Err      error // Scene-level failure, nil when every object was attempted.
	Duration time.Duration
}

// Failed reports whether the scene stopped early.
func (r SceneResult) Failed() bool { return r.Err != nil }

// SceneJobOptions configures a scene job.
type SceneJobOptions struct {
	Settings   sim.Settings
	Navigation navigation.Options
	MaxObjects int
	OutputRoot string
	Seed       int64 // Run seed; each scene derives its own from it.
	Templates  []string
}

// SceneSeed derives the random seed of a scene from the run seed, so a
// scene selects the same objects whichever worker runs it.
func SceneSeed(seed int64, scene string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scene))
	return seed ^ int64(h.Sum64())
}

// SceneJob processes whole scenes: it opens one simulator per scene, selects
// target objects and runs the object clip chain for each of them in turn.
// A SceneJob belongs to one worker.
type SceneJob struct {
	factory  sim.Factory
	cache    *cloud.SlotCache
	workflow *ObjectClipWorkflow
	opts     SceneJobOptions
}

// NewSceneJob returns a job. cache may be nil when every scene is local.
func NewSceneJob(factory sim.Factory, recorder *video.Recorder, cache *cloud.SlotCache, opts SceneJobOptions) *SceneJob {
	return &SceneJob{
		factory:  factory,
		cache:    cache,
		workflow: NewObjectClipWorkflow(recorder),
		opts:     opts,
	}
}

// Close releases the cached scene assets.
func (j *SceneJob) Close() {
	if j.cache != nil {
		j.cache.Close()
	}
}

// Run processes scene. Object failures are recorded as skips; a simulator
// fault, a panic or cancellation stops the remaining objects and is
// reported in the result.
func (j *SceneJob) Run(ctx context.Context, scene model.Scene, table model.FrequencyTable) (result SceneResult) {
	started := time.Now()
	result.Scene = scene
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "scene_job")
	span.SetAttributes(attribute.String("scene", scene.Name))
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("%w: panic: %v", model.ErrSimulatorFault, r)
		}
		result.Duration = time.Since(started)
		if result.Err != nil {
			span.SetStatus(codes.Error, result.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.SetAttributes(attribute.Int("clips", len(result.Clips)), attribute.Int("skipped", len(result.Skipped)))
		span.End()
	}()

	local := scene
	if j.cache != nil {
		var err error
		if local, err = j.cache.Open(spanCtx, scene); err != nil {
			result.Err = err
			return result
		}
	}

	seed := SceneSeed(j.opts.Seed, scene.Name)
	settings := j.opts.Settings
	settings.Seed = seed
	simulator, err := j.factory.Open(spanCtx, local, settings)
	if err != nil {
		result.Err = fmt.Errorf("failed to open simulator: %w", err)
		return result
	}
	defer func() {
		if err := simulator.Close(); err != nil {
			slog.Warn("failed to close simulator", "scene", scene.Name, "error", err)
		}
	}()

	agent, err := navigation.NewAgent(simulator, j.opts.Navigation)
	if err != nil {
		result.Err = err
		return result
	}
	objects, err := simulator.SemanticObjects()
	if err != nil {
		result.Err = fmt.Errorf("failed to list semantic objects: %w", err)
		return result
	}

	rng := rand.New(rand.NewSource(seed))
	result.Selected = selection.Select(objects, table, j.opts.MaxObjects, rng)
	synthesizer, err := caption.NewSynthesizer(j.opts.Templates, rng)
	if err != nil {
		result.Err = err
		return result
	}
	slog.Info("processing scene", "scene", scene.Name, "objects", len(objects), "selected", len(result.Selected))

	occurrences := make(map[string]int)
	for i, object := range result.Selected {
		if err := ctx.Err(); err != nil {
			result.Err = err
			result.Skipped = append(result.Skipped, skipRemaining(result.Selected[i:], SkipAborted)...)
			break
		}
		path := dataset.VideoPath(j.opts.OutputRoot, scene.Name, object.Category, occurrences[object.Category]+1)
		clip, err := j.runObject(spanCtx, agent, scene, object, path, synthesizer)
		switch {
		case err != nil:
			slog.Warn("skipping object", "scene", scene.Name, "object", object.ID, "category", object.Category, "error", err)
			result.Skipped = append(result.Skipped, model.SkippedObject{ObjectID: object.ID, Category: object.Category, Reason: err.Error()})
		case clip == nil:
			slog.Warn("skipping object", "scene", scene.Name, "object", object.ID, "category", object.Category, "reason", SkipIncomplete)
			result.Skipped = append(result.Skipped, model.SkippedObject{ObjectID: object.ID, Category: object.Category, Reason: SkipIncomplete})
		default:
			occurrences[object.Category]++
			result.Clips = append(result.Clips, *clip)
		}
		if model.IsSceneFatal(err) {
			result.Err = err
			result.Skipped = append(result.Skipped, skipRemaining(result.Selected[i+1:], SkipAborted)...)
			slog.Error("aborting scene", "scene", scene.Name, "category", object.Category, "error", err)
			break
		}
		if err := resetAgent(agent); err != nil {
			result.Err = err
			result.Skipped = append(result.Skipped, skipRemaining(result.Selected[i+1:], SkipAborted)...)
			break
		}
	}
	return result
}

func (j *SceneJob) runObject(
	ctx context.Context,
	agent *navigation.Agent,
	scene model.Scene,
	object model.SemanticObject,
	path string,
	synthesizer *caption.Synthesizer) (*model.CaptionedClip, error) {

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamAgent, agent)
	chainCtx.Add(commands.ParamScene, scene)
	chainCtx.Add(commands.ParamObject, object)
	chainCtx.Add(commands.ParamVideoPath, path)
	chainCtx.Add(commands.ParamSynthesizer, synthesizer)

	j.workflow.Execute(chainCtx)

	if err := chainCtx.Err(); err != nil {
		return nil, err
	}
	clip, _ := chainCtx.Get(commands.ParamClip).(*model.CaptionedClip)
	return clip, nil
}

// resetAgent prepares the agent for the next object, failing an attempt
// that stopped part way.
func resetAgent(agent *navigation.Agent) error {
	err := agent.Reset()
	if err == nil || !errors.Is(err, navigation.ErrInvalidTransition) {
		return err
	}
	agent.Abort(errors.New("attempt abandoned"))
	return agent.Reset()
}

func skipRemaining(objects []model.SemanticObject, reason string) []model.SkippedObject {
	out := make([]model.SkippedObject, 0, len(objects))
	for _, o := range objects {
		out = append(out, model.SkippedObject{ObjectID: o.ID, Category: o.Category, Reason: reason})
	}
	return out
}

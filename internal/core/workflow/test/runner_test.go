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

package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(results <-chan workflow.SceneResult) map[string]workflow.SceneResult {
	out := make(map[string]workflow.SceneResult)
	for r := range results {
		out[r.Scene.Name] = r
	}
	return out
}

func TestRunnerIsolatesFailingScenes(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{
		test.WriteGridScene(t, root, "train", "Good"),
		test.WriteGridSceneWith(t, root, "train", "Blocked", test.GridSceneGeometry, unreachableSemantics),
		test.WriteGridScene(t, root, "train", "AlsoGood"),
	}

	results := collect(newRunner(2, &test.FakeEncoder{}, t.TempDir()).Run(ctx, scenes, test.GridSceneTable()))

	require.Len(t, results, 3)
	assert.Empty(t, results["Blocked"].Clips)
	assert.NoError(t, results["Blocked"].Err)
	assert.Len(t, results["Good"].Clips, 2)
	assert.Len(t, results["AlsoGood"].Clips, 2)
}

func TestRunnerSelectionIndependentOfWorkerCount(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{
		test.WriteGridScene(t, root, "train", "SceneA"),
		test.WriteGridScene(t, root, "train", "SceneB"),
		test.WriteGridScene(t, root, "train", "SceneC"),
	}
	single := collect(newRunner(1, &test.FakeEncoder{}, t.TempDir()).Run(ctx, scenes, test.GridSceneTable()))
	pooled := collect(newRunner(3, &test.FakeEncoder{}, t.TempDir()).Run(ctx, scenes, test.GridSceneTable()))

	require.Len(t, single, 3)
	require.Len(t, pooled, 3)
	for name, r := range single {
		assert.Equal(t, r.Selected, pooled[name].Selected, name)
		assert.Equal(t, len(r.Clips), len(pooled[name].Clips), name)
	}
}

func TestRunnerStopsWhenCancelled(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{test.WriteGridScene(t, root, "train", "Never")}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	results := collect(newRunner(1, &test.FakeEncoder{}, t.TempDir()).Run(cancelled, scenes, test.GridSceneTable()))

	assert.Empty(t, results)
}

func TestRunnerSurvivesJobFactoryFailure(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{test.WriteGridScene(t, root, "train", "Survivor")}
	out := t.TempDir()
	runner := workflow.NewRunner(2, func(worker int) (*workflow.SceneJob, error) {
		if worker == 0 {
			return nil, errors.New("no simulator slot")
		}
		return newJob(nil, &test.FakeEncoder{}, out), nil
	})

	results := collect(runner.Run(ctx, scenes, test.GridSceneTable()))

	require.Len(t, results, 1)
	assert.Len(t, results["Survivor"].Clips, 2)
}

func TestRunnerReportsScenesWhenNoWorkerStarts(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{
		test.WriteGridScene(t, root, "train", "Orphan"),
		test.WriteGridScene(t, root, "train", "AlsoOrphan"),
	}
	runner := workflow.NewRunner(3, func(worker int) (*workflow.SceneJob, error) {
		return nil, errors.New("no simulator slot")
	})

	results := collect(runner.Run(ctx, scenes, test.GridSceneTable()))

	require.Len(t, results, 2)
	for name, r := range results {
		assert.ErrorIs(t, r.Err, workflow.ErrNoWorker, name)
		assert.Empty(t, r.Clips, name)
	}
}

func TestDatasetGenerationFailsWithoutWorkers(t *testing.T) {
	root := t.TempDir()
	scenes := []model.Scene{test.WriteGridScene(t, root, "train", "Stranded")}
	annotations := filepath.Join(t.TempDir(), "captions.json")
	assembler, err := dataset.NewAssembler(annotations, config.HM3D.Prompts, nil)
	require.NoError(t, err)
	runner := workflow.NewRunner(2, func(worker int) (*workflow.SceneJob, error) {
		return nil, errors.New("sidecar missing")
	})
	generation := &workflow.DatasetGeneration{RunID: "run-3", Runner: runner, Assembler: assembler}

	summary, err := generation.Run(ctx, scenes, test.GridSceneTable())
	assert.ErrorIs(t, err, workflow.ErrNoWorker)
	assert.ErrorContains(t, err, "sidecar missing")
	assert.Equal(t, 1, summary.FailedScenes)
	assert.FileExists(t, annotations)
}

type recordingObserver struct {
	mu       sync.Mutex
	runID    string
	total    int
	finished []string
	ended    bool
	err      error
}

func (o *recordingObserver) Begin(runID string, scenes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runID, o.total = runID, scenes
}

func (o *recordingObserver) SceneFinished(r workflow.SceneResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, r.Scene.Name)
}

func (o *recordingObserver) End(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended, o.err = true, err
}

func TestDatasetGenerationWritesDenseIds(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "dataset-generation")
	defer span.End()

	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "hm3d_gen_videos")
	annotations := filepath.Join(t.TempDir(), "ft_json", "hm3d_captions.json")
	scenes := []model.Scene{
		test.WriteGridScene(t, root, "train", "First"),
		test.WriteGridSceneWith(t, root, "train", "Empty", test.GridSceneGeometry, unreachableSemantics),
		test.WriteGridScene(t, root, "train", "Second"),
	}
	assembler, err := dataset.NewAssembler(annotations, config.HM3D.Prompts, nil)
	require.NoError(t, err)
	observer := &recordingObserver{}
	generation := &workflow.DatasetGeneration{
		RunID:     "run-1",
		Runner:    newRunner(2, &test.FakeEncoder{}, out),
		Assembler: assembler,
		Observer:  observer,
	}

	summary, err := generation.Run(traceCtx, scenes, test.GridSceneTable())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scenes)
	assert.Equal(t, 4, summary.Clips)
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 0, summary.FailedScenes)
	assert.Equal(t, 3, summary.Skipped)

	records, err := dataset.Load(annotations)
	require.NoError(t, err)
	require.Len(t, records, 4)
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		require.Len(t, r.Conversations, 2)
		assert.Equal(t, model.RoleHuman, r.Conversations[0].From)
		assert.Contains(t, r.Conversations[0].Value, "<video>\n")
		assert.Contains(t, config.HM3D.Prompts, r.Conversations[0].Value[len("<video>\n"):])
		assert.FileExists(t, filepath.Join(filepath.Dir(out), r.Video))
	}
	sort.Ints(ids)
	assert.Equal(t, []int{0, 1, 2, 3}, ids)

	assert.Equal(t, "run-1", observer.runID)
	assert.Equal(t, 3, observer.total)
	assert.Len(t, observer.finished, 3)
	assert.True(t, observer.ended)
	assert.NoError(t, observer.err)
}

func TestDatasetGenerationWritesEmptyDataset(t *testing.T) {
	annotations := filepath.Join(t.TempDir(), "captions.json")
	assembler, err := dataset.NewAssembler(annotations, config.HM3D.Prompts, nil)
	require.NoError(t, err)
	generation := &workflow.DatasetGeneration{Runner: newRunner(1, &test.FakeEncoder{}, t.TempDir()), Assembler: assembler}

	summary, err := generation.Run(ctx, nil, test.GridSceneTable())
	require.NoError(t, err)
	assert.Zero(t, summary.Records)

	records, err := dataset.Load(annotations)
	require.NoError(t, err)
	assert.Empty(t, records)
}

type fakeSinks struct {
	mu        sync.Mutex
	uploaded  []string
	rows      []*model.ClipRow
	published []model.ClipBatchNotification
	failPut   int
}

func (f *fakeSinks) upload(_ context.Context, src string, obj cloud.GCSObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, obj.URI())
	return nil
}

func (f *fakeSinks) Put(_ context.Context, src interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut > 0 {
		f.failPut--
		return errors.New("backend error")
	}
	f.rows = append(f.rows, src.([]*model.ClipRow)...)
	return nil
}

func (f *fakeSinks) Publish(_ context.Context, data []byte) (string, error) {
	var batch model.ClipBatchNotification
	if err := json.Unmarshal(data, &batch); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, batch)
	return "msg-1", nil
}

func TestDatasetGenerationPublishesScenes(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "hm3d_gen_videos")
	scenes := []model.Scene{test.WriteGridScene(t, root, "train", "Published")}
	assembler, err := dataset.NewAssembler(filepath.Join(t.TempDir(), "captions.json"), config.HM3D.Prompts, nil)
	require.NoError(t, err)

	sinks := &fakeSinks{failPut: 1}
	publish := workflow.NewScenePublishWorkflow("run-2", workflow.ScenePublisher{
		Upload:    sinks.upload,
		Bucket:    "embodied-clips",
		Prefix:    "runs/run-2",
		Inserter:  sinks,
		Publisher: sinks,
	}, cloud.NewRetryPolicy(config.Retry))
	generation := &workflow.DatasetGeneration{RunID: "run-2", Runner: newRunner(1, &test.FakeEncoder{}, out), Assembler: assembler, Publish: publish}

	summary, err := generation.Run(ctx, scenes, test.GridSceneTable())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Clips)

	assert.Len(t, sinks.uploaded, 2)
	require.Len(t, sinks.rows, 2)
	for _, row := range sinks.rows {
		assert.Equal(t, "run-2", row.RunId)
		assert.Equal(t, "Published", row.Scene)
		assert.Equal(t, model.ClipID(row.RelativePath), row.Id)
		assert.Contains(t, sinks.uploaded, row.VideoUrl)
	}
	require.Len(t, sinks.published, 1)
	assert.Equal(t, "Published", sinks.published[0].Scene)
	assert.Len(t, sinks.published[0].Clips, 2)
}

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

package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyInserter struct {
	failures int
	calls    int
	rows     []*model.ClipRow
}

func (f *flakyInserter) Put(_ context.Context, src interface{}) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("backend unavailable")
	}
	f.rows = append(f.rows, src.([]*model.ClipRow)...)
	return nil
}

type recordingPublisher struct {
	messages [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, data []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, data)
	return "msg-1", nil
}

func sceneClips(dir string) []*model.CaptionedClip {
	return []*model.CaptionedClip{
		{Scene: "grid", ObjectID: "1", Category: "chair", Caption: "Walking to the chair.", FrameCount: 12,
			VideoPath: filepath.Join(dir, "scene_grid", "object_chair.mp4"), RelativePath: "videos/scene_grid/object_chair.mp4"},
		{Scene: "grid", ObjectID: "2", Category: "table", Caption: "Walking to the table.", FrameCount: 9,
			VideoPath: filepath.Join(dir, "scene_grid", "object_table.mp4"), RelativePath: "videos/scene_grid/object_table.mp4"},
	}
}

func buildBatch(t *testing.T, clips []*model.CaptionedClip) cor.Context {
	chainCtx := newChainContext(t)
	chainCtx.Add(commands.ParamScene, model.Scene{Name: "grid"})
	chainCtx.Add(commands.ParamClips, clips)
	commands.NewClipBatchBuilder("build-clip-batch", "run-1").Execute(chainCtx)
	require.NoError(t, chainCtx.Err())
	return chainCtx
}

func TestClipBatchBuilder(t *testing.T) {
	chainCtx := buildBatch(t, sceneClips("videos"))
	batch := chainCtx.Get(commands.ParamBatch).(*model.ClipBatchNotification)
	assert.Equal(t, "run-1", batch.RunID)
	assert.Equal(t, "grid", batch.Scene)
	require.Len(t, batch.Clips, 2)
	assert.Equal(t, model.ClipID("videos/scene_grid/object_chair.mp4"), batch.Clips[0].Id)
	assert.Equal(t, "run-1", batch.Clips[0].RunId)
	assert.Equal(t, 9, batch.Clips[1].FrameCount)
}

func TestClipPersistRetries(t *testing.T) {
	chainCtx := buildBatch(t, sceneClips("videos"))
	inserter := &flakyInserter{failures: 1}

	commands.NewClipPersistToBigQuery("write-to-bigquery", inserter, retryPolicy()).Execute(chainCtx)
	require.NoError(t, chainCtx.Err())
	assert.Equal(t, 2, inserter.calls)
	assert.Len(t, inserter.rows, 2)
}

func TestClipPersistGivesUp(t *testing.T) {
	chainCtx := buildBatch(t, sceneClips("videos"))
	inserter := &flakyInserter{failures: 10}

	commands.NewClipPersistToBigQuery("write-to-bigquery", inserter, retryPolicy()).Execute(chainCtx)
	err := chainCtx.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid")
	assert.Equal(t, config.Retry.MaxAttempts, inserter.calls)
}

func TestClipBatchPublishAndRead(t *testing.T) {
	chainCtx := buildBatch(t, sceneClips("videos"))
	publisher := &recordingPublisher{}

	commands.NewClipBatchPublish("publish-clip-batch", publisher, retryPolicy()).Execute(chainCtx)
	require.NoError(t, chainCtx.Err())
	require.Len(t, publisher.messages, 1)

	var decoded model.ClipBatchNotification
	require.NoError(t, json.Unmarshal(publisher.messages[0], &decoded))
	assert.Equal(t, "grid", decoded.Scene)
	assert.Len(t, decoded.Clips, 2)

	failing := buildBatch(t, sceneClips("videos"))
	commands.NewClipBatchPublish("publish-clip-batch", &recordingPublisher{err: errors.New("topic deleted")}, retryPolicy()).Execute(failing)
	assert.Error(t, failing.Err())
}

func TestClipBatchTriggerReader(t *testing.T) {
	chainCtx := newChainContext(t)
	chainCtx.Add(cor.CtxIn, test.GetTestClipBatchMessageText())

	reader := commands.NewClipBatchTriggerReader("clip-batch-trigger-reader")
	require.True(t, reader.IsExecutable(chainCtx))
	reader.Execute(chainCtx)
	require.NoError(t, chainCtx.Err())

	tasks := chainCtx.Get(commands.ParamTasks).([]model.ClipAnnotationTask)
	require.Len(t, tasks, 2)
	assert.Equal(t, 0, tasks[0].RecordID)
	assert.Equal(t, "hm3d_gen_videos/scene_TEEsavR23oF.basis/object_chair.mp4", tasks[0].Video)
	assert.Equal(t, "gs://embodied-clips/hm3d_gen_videos/scene_TEEsavR23oF.basis/object_table.mp4", tasks[1].FileURI)
	assert.Equal(t, annotation.VideoMIMEType, tasks[1].MIMEType)
	assert.NotNil(t, chainCtx.Get(commands.ParamBatch))

	bad := newChainContext(t)
	bad.Add(cor.CtxIn, "{not json")
	reader.Execute(bad)
	assert.Error(t, bad.Err())
}

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string]cloud.GCSObject
	fail    string
}

func (b *memoryBucket) upload(_ context.Context, src string, obj cloud.GCSObject) error {
	if src == b.fail {
		return cloud.Permanent(errors.New("permission denied"))
	}
	if _, err := os.Stat(src); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[obj.Name] = obj
	return nil
}

func writeClipFiles(t *testing.T, clips []*model.CaptionedClip) {
	for _, c := range clips {
		require.NoError(t, os.MkdirAll(filepath.Dir(c.VideoPath), 0o755))
		require.NoError(t, os.WriteFile(c.VideoPath, []byte("not really a video"), 0o644))
	}
}

func TestGCSFileUpload(t *testing.T) {
	clips := sceneClips(t.TempDir())
	writeClipFiles(t, clips)
	bucket := &memoryBucket{objects: make(map[string]cloud.GCSObject)}
	chainCtx := newChainContext(t)
	chainCtx.Add(commands.ParamClips, clips)

	upload := commands.NewGCSFileUpload("upload-clips", bucket.upload, "embodied-clips", "runs/1", retryPolicy())
	upload.Execute(chainCtx)
	require.NoError(t, chainCtx.Err())

	require.Len(t, bucket.objects, 2)
	obj := bucket.objects["runs/1/videos/scene_grid/object_chair.mp4"]
	assert.Equal(t, "embodied-clips", obj.Bucket)
	assert.Equal(t, "video/mp4", obj.MIMEType)
	assert.Equal(t, "gs://embodied-clips/runs/1/videos/scene_grid/object_chair.mp4", clips[0].StorageURI)
	assert.Equal(t, "gs://embodied-clips/runs/1/videos/scene_grid/object_table.mp4", clips[1].StorageURI)
}

func TestGCSFileUploadFailure(t *testing.T) {
	clips := sceneClips(t.TempDir())
	writeClipFiles(t, clips)
	bucket := &memoryBucket{objects: make(map[string]cloud.GCSObject), fail: clips[1].VideoPath}
	chainCtx := newChainContext(t)
	chainCtx.Add(commands.ParamClips, clips)

	commands.NewGCSFileUpload("upload-clips", bucket.upload, "embodied-clips", "", retryPolicy()).Execute(chainCtx)
	err := chainCtx.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_table.mp4")
	assert.Empty(t, clips[1].StorageURI)
}

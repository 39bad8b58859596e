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

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/api"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/services"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClips struct {
	rows    map[string]*model.ClipRow
	listErr error
	signErr error
	runID   string
	limit   int
	ttl     time.Duration
}

func (f *fakeClips) List(_ context.Context, runID string, limit int) ([]*model.ClipRow, error) {
	f.runID, f.limit = runID, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*model.ClipRow, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeClips) Get(_ context.Context, id string) (*model.ClipRow, error) {
	if r, ok := f.rows[id]; ok {
		return r, nil
	}
	return nil, services.ErrClipNotFound
}

func (f *fakeClips) GenerateSignedURL(_ context.Context, gcsURI string, expires time.Duration) (string, error) {
	f.ttl = expires
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/" + gcsURI[len("gs://"):], nil
}

func newClips() *fakeClips {
	return &fakeClips{rows: map[string]*model.ClipRow{
		"c1": {Id: "c1", RunId: "run", Category: "chair", VideoUrl: "gs://bucket/scene/object_chair.mp4"},
		"c2": {Id: "c2", RunId: "run", Category: "table"},
	}}
}

func serve(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClipRoutes(t *testing.T) {
	clips := newClips()
	r := api.NewRouter(api.Options{ServiceName: "test", Clips: clips, SignedURLTTL: time.Minute})

	w := serve(t, r, "/api/v1/clips?run_id=run&limit=7")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []model.ClipRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)
	assert.Equal(t, "run", clips.runID)
	assert.Equal(t, 7, clips.limit)

	w = serve(t, r, "/api/v1/clips")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.DefaultListLimit, clips.limit)

	assert.Equal(t, http.StatusBadRequest, serve(t, r, "/api/v1/clips?limit=abc").Code)

	w = serve(t, r, "/api/v1/clips/c1")
	require.Equal(t, http.StatusOK, w.Code)
	var row model.ClipRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, "chair", row.Category)

	assert.Equal(t, http.StatusNotFound, serve(t, r, "/api/v1/clips/missing").Code)
}

func TestStreamRoute(t *testing.T) {
	clips := newClips()
	r := api.NewRouter(api.Options{ServiceName: "test", Clips: clips, SignedURLTTL: time.Minute})

	w := serve(t, r, "/api/v1/clips/c1/stream")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://signed.example/bucket/scene/object_chair.mp4", body["url"])
	assert.Equal(t, time.Minute, clips.ttl)

	// Not uploaded.
	assert.Equal(t, http.StatusNotFound, serve(t, r, "/api/v1/clips/c2/stream").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, r, "/api/v1/clips/missing/stream").Code)

	clips.signErr = errors.New("no signer")
	assert.Equal(t, http.StatusInternalServerError, serve(t, r, "/api/v1/clips/c1/stream").Code)
}

func TestClipRoutesWithoutStore(t *testing.T) {
	r := api.NewRouter(api.Options{ServiceName: "test"})
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, r, "/api/v1/clips").Code)
	assert.Equal(t, http.StatusOK, serve(t, r, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, r, "/metrics").Code)
}

func TestMetricsRoute(t *testing.T) {
	r := api.NewRouter(api.Options{ServiceName: "test", Metrics: true})
	w := serve(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRunAndStatsRoutes(t *testing.T) {
	progress := api.NewProgress()
	progress.Begin("run-1", 2)
	progress.SceneFinished(workflow.SceneResult{
		Scene: model.Scene{Name: "a"},
		Clips: []model.CaptionedClip{{Category: "chair"}, {Category: "table"}, {Category: "chair"}},
	})
	r := api.NewRouter(api.Options{ServiceName: "test", Progress: progress})

	w := serve(t, r, "/api/v1/runs/current")
	require.Equal(t, http.StatusOK, w.Code)
	var snap api.RunSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.True(t, snap.Running)
	assert.Equal(t, 1, snap.ScenesDone)
	assert.Equal(t, 3, snap.Clips)

	w = serve(t, r, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		RunID      string                `json:"run_id"`
		Clips      int                   `json:"clips"`
		Categories []model.CategoryCount `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Clips)
	assert.Equal(t, []model.CategoryCount{{Category: "chair", Count: 2}, {Category: "table", Count: 1}}, stats.Categories)
}

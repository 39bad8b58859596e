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

package video_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const size = 4

// solidStepper returns red frames of a fixed size.
type solidStepper struct {
	width, height int
	steps         []model.Action
}

func (s *solidStepper) Step(action model.Action) (sim.Frame, error) {
	s.steps = append(s.steps, action)
	pix := make([]byte, s.width*s.height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i] = 255
	}
	return sim.Frame{Width: s.width, Height: s.height, RGB: pix}, nil
}

type plainEncoder struct{}

func (plainEncoder) Create(_ context.Context, path string, _, _, _ int) (video.FrameWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return plainWriter{f}, nil
}

type plainWriter struct{ f *os.File }

func (w plainWriter) WriteFrame(bgr []byte) error {
	_, err := w.f.Write(bgr)
	return err
}
func (w plainWriter) Close() error { return w.f.Close() }

var walk = model.ActionSequence{model.ActionTurnLeft, model.ActionMoveForward, model.ActionNone, model.ActionMoveForward, model.ActionStop}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, video.TempFilePattern))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRecordWritesOneFramePerAction(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scene_x")
	path := filepath.Join(dir, "object_chair.mp4")
	encoder := &test.FakeEncoder{}
	stepper := &solidStepper{width: size, height: size}

	frames, err := video.NewRecorder(encoder, size, size, 30, true).Record(context.Background(), stepper, walk, path)
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 3, encoder.Frames())
	assert.Equal(t, model.ActionSequence{model.ActionTurnLeft, model.ActionMoveForward, model.ActionMoveForward}, model.ActionSequence(stepper.steps))
	assert.FileExists(t, path)
	assertNoPartials(t, dir)
}

func TestRecordConvertsToBGR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	stepper := &solidStepper{width: size, height: size}

	_, err := video.NewRecorder(plainEncoder{}, size, size, 30, false).Record(context.Background(), stepper, model.ActionSequence{model.ActionMoveForward}, path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, size*size*3)
	assert.Equal(t, []byte{0, 0, 255}, data[:3])
}

func TestRecordRejectsEmptySequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	encoder := &test.FakeEncoder{}
	_, err := video.NewRecorder(encoder, size, size, 30, true).Record(context.Background(), &solidStepper{width: size, height: size}, model.ActionSequence{model.ActionStop}, path)
	assert.ErrorIs(t, err, model.ErrEmptyActionSequence)
	assert.Equal(t, 0, encoder.Created())
	assert.NoFileExists(t, path)
}

func TestRecordCleansUpOnFailure(t *testing.T) {
	cases := map[string]struct {
		encoder  video.Encoder
		stepper  sim.Stepper
		validate bool
		want     error
	}{
		"encoder":   {encoder: &test.FakeEncoder{FailAfter: 1}, stepper: &solidStepper{width: size, height: size}, want: test.ErrInjected},
		"frame":     {encoder: &test.FakeEncoder{}, stepper: &solidStepper{width: size + 1, height: size}, want: model.ErrSimulatorFault},
		"container": {encoder: plainEncoder{}, stepper: &solidStepper{width: size, height: size}, validate: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "clip.mp4")
			_, err := video.NewRecorder(tc.encoder, size, size, 30, tc.validate).Record(context.Background(), tc.stepper, walk, path)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
			assert.NoFileExists(t, path)
			assertNoPartials(t, dir)
		})
	}
}

func TestRecordStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := video.NewRecorder(&test.FakeEncoder{}, size, size, 30, true).Record(cancelled, &solidStepper{width: size, height: size}, walk, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestFFMpegArgs(t *testing.T) {
	e := video.NewFFMpegEncoder("", "")
	assert.Equal(t, video.DefaultFfmpegCommand, e.CommandPath)
	args := e.Args("out.mp4", 512, 256, 30)
	assert.Contains(t, args, "512x256")
	assert.Contains(t, args, "bgr24")
	assert.Contains(t, args, video.DefaultCodec)
	assert.Equal(t, "out.mp4", args[len(args)-1])

	_, err := e.Create(context.Background(), "out.mp4", 0, 0, 30)
	assert.Error(t, err)
}

func TestRGBToBGR(t *testing.T) {
	dst := make([]byte, 6)
	video.RGBToBGR(dst, []byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []byte{3, 2, 1, 6, 5, 4}, dst)
}

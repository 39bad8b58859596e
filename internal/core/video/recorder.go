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

package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

// TempFilePattern names in-progress recordings next to their destination.
const TempFilePattern = ".recording-*.mp4.partial"

// Recorder replays action sequences and encodes the observations.
type Recorder struct {
	encoder  Encoder
	width    int
	height   int
	fps      int
	validate bool
}

// NewRecorder returns a recorder producing width x height videos at fps.
// When validate is set, finished files must be recognised as video by their
// magic bytes.
func NewRecorder(encoder Encoder, width int, height int, fps int, validate bool) *Recorder {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Recorder{encoder: encoder, width: width, height: height, fps: fps, validate: validate}
}

// Record steps through actions, skipping no-op actions, and writes one frame
// per step to path. The file only appears at path when every frame was
// encoded; on failure nothing is left behind. It returns the frame count.
func (r *Recorder) Record(ctx context.Context, stepper sim.Stepper, actions model.ActionSequence, path string) (frames int, err error) {
	if actions.Recordable() == 0 {
		return 0, model.ErrEmptyActionSequence
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create video directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, TempFilePattern)
	if err != nil {
		return 0, fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	committed := false
	defer func() {
		if !committed {
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove partial video", "path", tmpName, "error", rmErr)
			}
		}
	}()

	writer, err := r.encoder.Create(ctx, tmpName, r.width, r.height, r.fps)
	if err != nil {
		return 0, fmt.Errorf("failed to open video writer: %w", err)
	}
	writerOpen := true
	defer func() {
		if writerOpen {
			_ = writer.Close()
		}
	}()

	bgr := make([]byte, r.width*r.height*3)
	for i, action := range actions {
		if action.IsNoop() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		frame, err := stepper.Step(action)
		if err != nil {
			return frames, fmt.Errorf("step %d (%s): %w", i, action, err)
		}
		if err := frame.Validate(); err != nil {
			return frames, err
		}
		if frame.Width != r.width || frame.Height != r.height {
			return frames, fmt.Errorf("%w: observation is %dx%d, recorder expects %dx%d", model.ErrSimulatorFault, frame.Width, frame.Height, r.width, r.height)
		}
		RGBToBGR(bgr, frame.RGB)
		if err := writer.WriteFrame(bgr); err != nil {
			return frames, err
		}
		frames++
	}

	writerOpen = false
	if err := writer.Close(); err != nil {
		return frames, fmt.Errorf("failed to finalize video: %w", err)
	}
	if r.validate {
		if err := checkVideo(tmpName); err != nil {
			return frames, err
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return frames, fmt.Errorf("failed to move video into place: %w", err)
	}
	committed = true
	return frames, nil
}

func checkVideo(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := f.Read(head)
	if err != nil {
		return fmt.Errorf("failed to read encoded video: %w", err)
	}
	if !filetype.IsVideo(head[:n]) {
		return fmt.Errorf("encoded file %s is not a recognised video container", path)
	}
	return nil
}

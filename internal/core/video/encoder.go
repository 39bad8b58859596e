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

// Package video turns an action sequence replayed in a simulator into an
// H.264 mp4 file.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder defaults.
const (
	DefaultFfmpegCommand = "ffmpeg"
	DefaultCodec         = "libx264"
	DefaultPixelFormat   = "yuv420p"
	DefaultFPS           = 30
)

// FrameWriter consumes frames in BGR byte order. Close finalizes the
// container and must be called exactly once.
type FrameWriter interface {
	WriteFrame(bgr []byte) error
	Close() error
}

// Encoder opens frame writers for a fixed codec.
type Encoder interface {
	Create(ctx context.Context, path string, width int, height int, fps int) (FrameWriter, error)
}

// FFMpegEncoder pipes raw bgr24 frames into an ffmpeg process.
type FFMpegEncoder struct {
	CommandPath string // Path of the ffmpeg executable.
	Codec       string // Video codec, libx264 by default.
	PixelFormat string // Output pixel format, yuv420p by default.
}

// NewFFMpegEncoder returns an encoder using the given executable, or "ffmpeg"
// from PATH when blank.
func NewFFMpegEncoder(commandPath string, codec string) *FFMpegEncoder {
	if len(strings.TrimSpace(commandPath)) == 0 {
		commandPath = DefaultFfmpegCommand
	}
	if len(strings.TrimSpace(codec)) == 0 {
		codec = DefaultCodec
	}
	return &FFMpegEncoder{CommandPath: commandPath, Codec: codec, PixelFormat: DefaultPixelFormat}
}

// Args returns the ffmpeg argument list for one output file.
func (e *FFMpegEncoder) Args(path string, width int, height int, fps int) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		"-c:v", e.Codec,
		"-pix_fmt", e.PixelFormat,
		"-movflags", "+faststart",
		"-f", "mp4",
		path,
	}
}

// Create starts one ffmpeg process writing an mp4 at path.
//
// Inputs:
//   - ctx: Cancelling it kills the ffmpeg process.
//   - path: Destination file, overwritten if present.
//   - width, height: Frame geometry in pixels; every frame written must be
//     width*height*3 BGR bytes.
//   - fps: Output frame rate.
//
// Outputs:
//   - FrameWriter: Its Close waits for ffmpeg and reports stderr on failure.
//   - error: Invalid geometry, or ffmpeg could not be started.
func (e *FFMpegEncoder) Create(ctx context.Context, path string, width int, height int, fps int) (FrameWriter, error) {
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid encoder geometry %dx%d@%d", width, height, fps)
	}
	cmd := exec.CommandContext(ctx, e.CommandPath, e.Args(path, width, height, fps)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting ffmpeg: %w", err)
	}
	return &ffmpegWriter{cmd: cmd, stdin: stdin, stderr: &stderr, frameSize: width * height * 3}, nil
}

type ffmpegWriter struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    *bytes.Buffer
	frameSize int
	closed    bool
}

func (w *ffmpegWriter) WriteFrame(bgr []byte) error {
	if len(bgr) != w.frameSize {
		return fmt.Errorf("frame has %d bytes, encoder expects %d", len(bgr), w.frameSize)
	}
	if _, err := w.stdin.Write(bgr); err != nil {
		return fmt.Errorf("error writing frame to ffmpeg: %w", err)
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.stdin.Close()
	if waitErr := w.cmd.Wait(); waitErr != nil {
		err = errors.Join(err, fmt.Errorf("error running ffmpeg: %w: %s", waitErr, strings.TrimSpace(w.stderr.String())))
	}
	return err
}

// RGBToBGR swaps the red and blue channels of a packed RGB buffer into dst,
// which must have the same length.
func RGBToBGR(dst []byte, rgb []byte) {
	for i := 0; i+2 < len(rgb); i += 3 {
		dst[i], dst[i+1], dst[i+2] = rgb[i+2], rgb[i+1], rgb[i]
	}
}

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

package test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
)

// mp4Header is the start of an ISO base media file type box.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}

// ErrInjected is returned by FakeEncoder writers when FailAfter is reached.
var ErrInjected = errors.New("injected encoder failure")

// FakeEncoder writes a valid mp4 file type box followed by one byte per
// frame. It is safe for concurrent use.
type FakeEncoder struct {
	FailAfter int // Fail on this many written frames when positive.

	mu      sync.Mutex
	created int
	frames  int
}

var _ video.Encoder = (*FakeEncoder)(nil)

func (e *FakeEncoder) Create(_ context.Context, path string, width int, height int, fps int) (video.FrameWriter, error) {
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid encoder geometry %dx%d@%d", width, height, fps)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(mp4Header); err != nil {
		_ = f.Close()
		return nil, err
	}
	e.mu.Lock()
	e.created++
	e.mu.Unlock()
	return &fakeWriter{enc: e, file: f, frameSize: width * height * 3}, nil
}

// Created returns how many writers were opened.
func (e *FakeEncoder) Created() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created
}

// Frames returns the total number of frames written.
func (e *FakeEncoder) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

type fakeWriter struct {
	enc       *FakeEncoder
	file      *os.File
	frameSize int
	written   int
	closed    bool
}

func (w *fakeWriter) WriteFrame(bgr []byte) error {
	if len(bgr) != w.frameSize {
		return fmt.Errorf("frame has %d bytes, encoder expects %d", len(bgr), w.frameSize)
	}
	if w.enc.FailAfter > 0 && w.written >= w.enc.FailAfter {
		return ErrInjected
	}
	if _, err := w.file.Write([]byte{bgr[0]}); err != nil {
		return err
	}
	w.written++
	w.enc.mu.Lock()
	w.enc.frames++
	w.enc.mu.Unlock()
	return nil
}

func (w *fakeWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

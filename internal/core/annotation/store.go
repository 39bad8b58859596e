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

package annotation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// DefaultFlushEvery is how many new responses trigger a write.
const DefaultFlushEvery = 5

// ResponseStore persists raw model responses so an interrupted run resumes
// where it stopped. It is safe for concurrent use.
type ResponseStore struct {
	mu         sync.Mutex
	path       string
	flushEvery int
	pending    int
	responses  map[string]model.QAResponse // Keyed by video path.
}

// OpenResponseStore loads path when it exists.
func OpenResponseStore(path string, flushEvery int) (*ResponseStore, error) {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	s := &ResponseStore{path: path, flushEvery: flushEvery, responses: make(map[string]model.QAResponse)}
	var existing []model.QAResponse
	err := dataset.ReadJSON(path, &existing)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to load responses: %w", err)
	default:
		for _, r := range existing {
			s.responses[r.Video] = r
		}
		slog.Info("resuming annotation", "responses", len(existing), "path", path)
	}
	return s, nil
}

// Has reports whether video already has a response.
func (s *ResponseStore) Has(video string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.responses[video]
	return ok
}

// Add stores r and writes the file every flushEvery additions.
func (s *ResponseStore) Add(r model.QAResponse) error {
	s.mu.Lock()
	s.responses[r.Video] = r
	s.pending++
	due := s.pending >= s.flushEvery
	s.mu.Unlock()
	if due {
		return s.Flush()
	}
	return nil
}

// Responses returns every response ordered by record id, then video.
func (s *ResponseStore) Responses() []model.QAResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

func (s *ResponseStore) sorted() []model.QAResponse {
	out := make([]model.QAResponse, 0, len(s.responses))
	for _, r := range s.responses {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordID != out[j].RecordID {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].Video < out[j].Video
	})
	return out
}

// Flush writes every response.
func (s *ResponseStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := dataset.WriteJSON(s.path, s.sorted()); err != nil {
		return err
	}
	s.pending = 0
	return nil
}

// Len returns the number of stored responses.
func (s *ResponseStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

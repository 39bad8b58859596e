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

package api

import (
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
)

// SceneStatus is the outcome of one finished scene.
type SceneStatus struct {
	Scene    string  `json:"scene"`
	Worker   int     `json:"worker"`
	Clips    int     `json:"clips"`
	Skipped  int     `json:"skipped"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// RunSnapshot is a point-in-time copy of the run progress.
type RunSnapshot struct {
	RunID        string         `json:"run_id"`
	Running      bool           `json:"running"`
	Started      time.Time      `json:"started"`
	Finished     *time.Time     `json:"finished,omitempty"`
	ScenesTotal  int            `json:"scenes_total"`
	ScenesDone   int            `json:"scenes_done"`
	ScenesFailed int            `json:"scenes_failed"`
	Clips        int            `json:"clips"`
	Skipped      int            `json:"skipped"`
	Categories   map[string]int `json:"categories"`
	Recent       []SceneStatus  `json:"recent"`
	Error        string         `json:"error,omitempty"`
}

// MaxRecentScenes bounds RunSnapshot.Recent.
const MaxRecentScenes = 20

// Progress tracks the current generation run. It is safe for concurrent
// use.
type Progress struct {
	mu   sync.RWMutex
	snap RunSnapshot
	now  func() time.Time
}

var _ workflow.Observer = (*Progress)(nil)

func NewProgress() *Progress {
	return &Progress{now: time.Now, snap: RunSnapshot{Categories: map[string]int{}, Recent: []SceneStatus{}}}
}

func (p *Progress) Begin(runID string, scenes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = RunSnapshot{
		RunID:       runID,
		Running:     true,
		Started:     p.now(),
		ScenesTotal: scenes,
		Categories:  map[string]int{},
		Recent:      []SceneStatus{},
	}
}

func (p *Progress) SceneFinished(r workflow.SceneResult) {
	status := SceneStatus{
		Scene:    r.Scene.Name,
		Worker:   r.Worker,
		Clips:    len(r.Clips),
		Skipped:  len(r.Skipped),
		Duration: r.Duration.Seconds(),
	}
	if r.Err != nil {
		status.Error = r.Err.Error()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.ScenesDone++
	if r.Failed() {
		p.snap.ScenesFailed++
	}
	p.snap.Clips += len(r.Clips)
	p.snap.Skipped += len(r.Skipped)
	for _, c := range r.Clips {
		p.snap.Categories[c.Category]++
	}
	p.snap.Recent = append(p.snap.Recent, status)
	if n := len(p.snap.Recent); n > MaxRecentScenes {
		p.snap.Recent = append([]SceneStatus(nil), p.snap.Recent[n-MaxRecentScenes:]...)
	}
}

func (p *Progress) End(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	finished := p.now()
	p.snap.Running = false
	p.snap.Finished = &finished
	if err != nil {
		p.snap.Error = err.Error()
	}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() RunSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.snap
	out.Categories = make(map[string]int, len(p.snap.Categories))
	for k, v := range p.snap.Categories {
		out.Categories[k] = v
	}
	out.Recent = append([]SceneStatus(nil), p.snap.Recent...)
	if p.snap.Finished != nil {
		f := *p.snap.Finished
		out.Finished = &f
	}
	return out
}

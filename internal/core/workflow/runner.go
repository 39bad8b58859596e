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
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// JobFactory builds the scene job owned by one worker.
type JobFactory func(worker int) (*SceneJob, error)

// Runner distributes scenes over a fixed pool of workers. Each worker owns
// its scene job, and with it at most one simulator at a time.
type Runner struct {
	workers int
	newJob  JobFactory
}

// NewRunner returns a runner with workers goroutines, at least one.
func NewRunner(workers int, newJob JobFactory) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{workers: workers, newJob: newJob}
}

type sceneJob struct {
	scene model.Scene
}

// ErrNoWorker is reported for every scene when no worker could build its
// scene job.
var ErrNoWorker = errors.New("no scene worker could be started")

// Run processes scenes and delivers one result per scene in completion
// order. The channel is closed once every worker stopped. After ctx is
// cancelled workers take no new scene; scenes never started produce no
// result.
//
// Every configured worker is started, even with fewer scenes than workers,
// so a worker whose job cannot be built leaves its scenes to the others.
// When no worker starts, each scene is reported with ErrNoWorker.
func (r *Runner) Run(ctx context.Context, scenes []model.Scene, table model.FrequencyTable) <-chan SceneResult {
	jobs := make(chan *sceneJob, len(scenes))
	results := make(chan SceneResult, len(scenes))
	for _, s := range scenes {
		jobs <- &sceneJob{scene: s}
	}
	close(jobs)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
		errs    []error
	)
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			job, err := r.newJob(id)
			if err != nil {
				slog.Error("failed to create scene job", "worker", id, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("worker %d: %w", id, err))
				mu.Unlock()
				return
			}
			mu.Lock()
			started++
			mu.Unlock()
			defer job.Close()
			r.work(ctx, id, job, table, jobs, results)
		}(w)
	}
	go func() {
		wg.Wait()
		if started == 0 {
			cause := fmt.Errorf("%w: %w", ErrNoWorker, errors.Join(errs...))
			for j := range jobs {
				slog.Error("scene failed", "scene", j.scene.Name, "error", cause)
				results <- SceneResult{Scene: j.scene, Worker: -1, Err: cause}
			}
		}
		close(results)
	}()
	return results
}

func (r *Runner) work(ctx context.Context, id int, job *SceneJob, table model.FrequencyTable, jobs <-chan *sceneJob, results chan<- SceneResult) {
	for j := range jobs {
		if ctx.Err() != nil {
			return
		}
		result := job.Run(ctx, j.scene, table)
		result.Worker = id
		if result.Err != nil {
			slog.Error("scene failed", "worker", id, "scene", j.scene.Name, "clips", len(result.Clips), "error", result.Err)
		} else {
			slog.Info("scene complete", "worker", id, "scene", j.scene.Name, "clips", len(result.Clips), "skipped", len(result.Skipped), "duration", result.Duration)
		}
		results <- result
	}
}

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

package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ErrNoPrompts is returned when an assembler has an empty prompt pool.
var ErrNoPrompts = errors.New("dataset: prompt pool is empty")

// Assembler accumulates caption records with dense ids in insertion order
// and writes them atomically. It is safe for concurrent use.
type Assembler struct {
	mu      sync.Mutex
	path    string
	prompts []string
	rng     *rand.Rand
	records []model.DatasetRecord
}

// NewAssembler returns an assembler writing to path and pairing each clip
// with a prompt drawn uniformly from prompts.
func NewAssembler(path string, prompts []string, rng *rand.Rand) (*Assembler, error) {
	if len(prompts) == 0 {
		return nil, ErrNoPrompts
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Assembler{
		path:    path,
		prompts: append([]string(nil), prompts...),
		rng:     rng,
		records: make([]model.DatasetRecord, 0),
	}, nil
}

// Add appends one record per clip and returns the new records.
func (a *Assembler) Add(clips ...model.CaptionedClip) []model.DatasetRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	added := make([]model.DatasetRecord, 0, len(clips))
	for _, c := range clips {
		prompt := a.prompts[a.rng.Intn(len(a.prompts))]
		r := model.NewCaptionRecord(len(a.records), c.RelativePath, prompt, c.Caption)
		a.records = append(a.records, r)
		added = append(added, r)
	}
	return added
}

// Records returns a copy of every record so far.
func (a *Assembler) Records() []model.DatasetRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.DatasetRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Len returns the number of records.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Path returns the output file.
func (a *Assembler) Path() string {
	return a.path
}

// Flush replaces the output file with the current records.
func (a *Assembler) Flush() error {
	records := a.Records()
	return WriteJSON(a.path, records)
}

// WriteJSON writes v as indented JSON to a temporary file next to path and
// renames it into place.
func WriteJSON(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Load reads an annotations file.
func Load(path string) ([]model.DatasetRecord, error) {
	var records []model.DatasetRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Reindex rewrites ids to match the slice order.
func Reindex(records []model.DatasetRecord) {
	for i := range records {
		records[i].ID = i
	}
}

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

// Package vocab builds the object category frequency table from the nouns
// of a question-answer corpus.
package vocab

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jdkato/prose/v2"
)

// Question is one entry of the OpenEQA corpus. Only Answer is used.
type Question struct {
	QuestionID     string `json:"question_id,omitempty"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	Category       string `json:"category,omitempty"`
	EpisodeHistory string `json:"episode_history,omitempty"`
}

// Tagger extracts common nouns from free text.
type Tagger interface {
	Nouns(text string) ([]string, error)
}

// ProseTagger tags with the prose averaged perceptron model and keeps
// singular and plural common nouns.
type ProseTagger struct{}

func (ProseTagger) Nouns(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("failed to tag %q: %w", text, err)
	}
	var nouns []string
	for _, tok := range doc.Tokens() {
		if tok.Tag == "NN" || tok.Tag == "NNS" {
			nouns = append(nouns, tok.Text)
		}
	}
	return nouns, nil
}

// LoadOpenEQA reads the corpus JSON array.
func LoadOpenEQA(path string) ([]Question, error) {
	var questions []Question
	if err := dataset.ReadJSON(path, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Build counts the lower-cased nouns of every answer, leaving out ignore.
func Build(questions []Question, tagger Tagger, ignore []string) (model.FrequencyTable, error) {
	skip := make(map[string]bool, len(ignore))
	for _, w := range ignore {
		skip[strings.ToLower(w)] = true
	}
	table := make(model.FrequencyTable)
	for _, q := range questions {
		nouns, err := tagger.Nouns(q.Answer)
		if err != nil {
			return nil, err
		}
		for _, n := range nouns {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" || skip[n] {
				continue
			}
			table[n]++
		}
	}
	return table, nil
}

// LogSummary logs the table size and its topK most common categories.
func LogSummary(table model.FrequencyTable, topK int) {
	slog.Info("frequency table built", "categories", len(table), "most_common", table.MostCommon(topK))
}

// SaveTable writes the table as a JSON object.
func SaveTable(path string, table model.FrequencyTable) error {
	return dataset.WriteJSON(path, table)
}

// LoadTable reads a table written by SaveTable.
func LoadTable(path string) (model.FrequencyTable, error) {
	table := make(model.FrequencyTable)
	if err := dataset.ReadJSON(path, &table); err != nil {
		return nil, err
	}
	return table, nil
}

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

// Package annotation turns free-form question-answer responses from a
// generative model into multi-turn training records.
package annotation

import (
	"math/rand"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

const (
	keyCategory = "category"
	keyQuestion = "question"
	keyAnswer   = "short answer"
)

var spelling = strings.NewReplacer("localization", "localisation")

// ParseResponse extracts the blocks of the form
//
//	Category: <category>
//	Question: <question>
//	Short answer: <answer>
//
// separated by blank lines. Values are lower-cased and blocks missing any
// of the three fields are dropped. Pairs come back in QACategories order,
// unknown categories last.
func ParseResponse(text string) []model.QAPair {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pairs []model.QAPair
	for _, block := range strings.Split(text, "\n\n") {
		fields := make(map[string]string)
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(strings.Trim(key, "*")))
			fields[key] = spelling.Replace(strings.ToLower(strings.TrimSpace(value)))
		}
		p := model.QAPair{Category: fields[keyCategory], Question: fields[keyQuestion], Answer: fields[keyAnswer]}
		if p.Category == "" || p.Question == "" || p.Answer == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	order := make(map[string]int, len(model.QACategories))
	for i, c := range model.QACategories {
		order[c] = i
	}
	rank := func(c string) int {
		if i, ok := order[c]; ok {
			return i
		}
		return len(order)
	}
	sort.SliceStable(pairs, func(i, j int) bool { return rank(pairs[i].Category) < rank(pairs[j].Category) })
	return pairs
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// BuildTurns shuffles pairs with rng and renders them as alternating human
// and model turns. The first human turn carries the video placeholder.
func BuildTurns(pairs []model.QAPair, rng *rand.Rand) []model.Conversation {
	shuffled := append([]model.QAPair(nil), pairs...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	turns := make([]model.Conversation, 0, 2*len(shuffled))
	for i, p := range shuffled {
		question := Capitalize(p.Question)
		if i == 0 {
			question = model.VideoPrefix + question
		}
		turns = append(turns,
			model.Conversation{From: model.RoleHuman, Value: question},
			model.Conversation{From: model.RoleModel, Value: Capitalize(p.Answer)})
	}
	return turns
}

// Assemble converts responses into records. Responses without a usable
// block are skipped. Records are shuffled and then numbered densely.
func Assemble(responses []model.QAResponse, rng *rand.Rand) []model.DatasetRecord {
	sorted := append([]model.QAResponse(nil), responses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordID < sorted[j].RecordID })

	records := make([]model.DatasetRecord, 0, len(sorted))
	for _, r := range sorted {
		pairs := ParseResponse(r.Text)
		if len(pairs) == 0 {
			continue
		}
		records = append(records, model.DatasetRecord{Video: r.Video, Conversations: BuildTurns(pairs, rng)})
	}
	rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	for i := range records {
		records[i].ID = i
	}
	return records
}

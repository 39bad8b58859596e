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

// Package caption produces the natural-language description of a clip.
package caption

import (
	"fmt"
	"math/rand"
	"strings"
)

// DefaultTemplates are the caption phrasings. Each has exactly one %s slot
// for the object category.
var DefaultTemplates = []string{
	"The person is walking towards the %s.",
	"The camera wearer is walking towards the %s.",
	"I'm walking over to the %s now.",
	"There's a person approaching the %s.",
	"I see a person approaching the %s.",
	"I see someone walking up to the %s.",
}

// Synthesizer picks a template uniformly at random.
type Synthesizer struct {
	templates []string
	rng       *rand.Rand
}

// NewSynthesizer validates templates, falling back to DefaultTemplates when
// none are given.
func NewSynthesizer(templates []string, rng *rand.Rand) (*Synthesizer, error) {
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	for _, t := range templates {
		if strings.Count(t, "%s") != 1 || strings.Count(t, "%") != 1 {
			return nil, fmt.Errorf("caption template %q must contain exactly one %%s", t)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Synthesizer{templates: templates, rng: rng}, nil
}

// Caption returns a description of walking toward category.
func (s *Synthesizer) Caption(category string) string {
	return fmt.Sprintf(s.templates[s.rng.Intn(len(s.templates))], category)
}

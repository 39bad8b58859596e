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

package model

// QACategories lists the question categories requested from the model, in the
// order used when sorting parsed answers.
var QACategories = []string{
	"object recognition",
	"attribute recognition",
	"object state recognition",
	"object localisation",
	"spatial reasoning",
	"functional reasoning",
	"world knowledge",
}

// GetExampleQAResponse returns a well formed model response in the layout
// the QA instruction asks for.
func GetExampleQAResponse() string {
	return `Category: object recognition
Question: What piece of furniture is the camera moving towards?
Short answer: A sofa

Category: attribute recognition
Question: What color is the sofa?
Short answer: Grey

Category: object state recognition
Question: Is the lamp next to the sofa switched on?
Short answer: No

Category: object localisation
Question: Where is the rug?
Short answer: In front of the sofa

Category: spatial reasoning
Question: Is the coffee table to the left or right of the sofa?
Short answer: Left

Category: functional reasoning
Question: What could you use to sit down in this room?
Short answer: The sofa

Category: world knowledge
Question: What room of the house is this most likely to be?
Short answer: The living room`
}

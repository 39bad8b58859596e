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

// Conversation roles and the video placeholder expected by the training
// pipeline.
const (
	RoleHuman   = "human"
	RoleModel   = "gpt"
	VideoPrefix = "<video>\n"
)

// Conversation is one turn of a training record.
type Conversation struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// DatasetRecord is one entry of the annotations file. IDs are dense and
// zero-based in output order.
type DatasetRecord struct {
	ID            int            `json:"id"`
	Video         string         `json:"video"`
	Conversations []Conversation `json:"conversations"`
}

// NewCaptionRecord builds the two-turn record pairing a description prompt
// with a clip caption.
func NewCaptionRecord(id int, video string, prompt string, caption string) DatasetRecord {
	return DatasetRecord{
		ID:    id,
		Video: video,
		Conversations: []Conversation{
			{From: RoleHuman, Value: VideoPrefix + prompt},
			{From: RoleModel, Value: caption},
		},
	}
}

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

// CaptionedClip is a successfully recorded walk toward one object. It is only
// created after the video file has been renamed into its final location.
type CaptionedClip struct {
	Scene        string `json:"scene"`
	ObjectID     string `json:"object_id"`
	Category     string `json:"category"`
	VideoPath    string `json:"video_path"`    // Absolute or working-directory relative path of the mp4 file.
	RelativePath string `json:"relative_path"` // Path recorded in the annotations file.
	Caption      string `json:"caption"`
	FrameCount   int    `json:"frame_count"`
	StorageURI   string `json:"storage_uri,omitempty"` // gs:// URI once uploaded.
}

// SkippedObject records an object that did not produce a clip.
type SkippedObject struct {
	ObjectID string `json:"object_id"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// ClipBatchNotification is the Pub/Sub payload announcing the clips of one
// finished scene.
type ClipBatchNotification struct {
	RunID string     `json:"run_id"`
	Scene string     `json:"scene"`
	Clips []*ClipRow `json:"clips"`
}

// ClipAnnotationTask is one clip queued for question-answer generation.
type ClipAnnotationTask struct {
	RecordID int    `json:"id"`
	Video    string `json:"video"`
	FileURI  string `json:"file_uri"`
	MIMEType string `json:"mime_type"`
}

// QAResponse is the raw model answer for one clip.
type QAResponse struct {
	RecordID int    `json:"id"`
	Video    string `json:"video"`
	Text     string `json:"response"`
}

// QAPair is a single parsed question-answer tuple.
type QAPair struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

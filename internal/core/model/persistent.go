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

import (
	"time"

	"github.com/google/uuid"
)

// ClipRow is the BigQuery representation of a generated clip.
type ClipRow struct {
	Id           string    `json:"id" bigquery:"id"`
	RunId        string    `json:"run_id" bigquery:"run_id"`
	Scene        string    `json:"scene" bigquery:"scene"`
	ObjectId     string    `json:"object_id" bigquery:"object_id"`
	Category     string    `json:"category" bigquery:"category"`
	RelativePath string    `json:"relative_path" bigquery:"relative_path"`
	VideoUrl     string    `json:"video_url" bigquery:"video_url"`
	Caption      string    `json:"caption" bigquery:"caption"`
	FrameCount   int       `json:"frame_count" bigquery:"frame_count"`
	CreateDate   time.Time `json:"create_date" bigquery:"create_date"`
}

// ClipID derives the stable identifier of a clip from its relative path, so
// re-running a scene overwrites rather than duplicates its rows.
func ClipID(relativePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(relativePath)).String()
}

// NewClipRow converts a recorded clip into its persistent form.
func NewClipRow(runID string, clip *CaptionedClip) *ClipRow {
	return &ClipRow{
		Id:           ClipID(clip.RelativePath),
		RunId:        runID,
		Scene:        clip.Scene,
		ObjectId:     clip.ObjectID,
		Category:     clip.Category,
		RelativePath: clip.RelativePath,
		VideoUrl:     clip.StorageURI,
		Caption:      clip.Caption,
		FrameCount:   clip.FrameCount,
		CreateDate:   time.Now(),
	}
}

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

package annotation

import (
	"fmt"
	"path"
	"strings"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// VideoMIMEType is sent with every clip reference.
const VideoMIMEType = "video/mp4"

// TasksFromRecords turns caption records into annotation tasks. Relative
// video paths are resolved against bucket; gs:// paths are used as they are.
func TasksFromRecords(records []model.DatasetRecord, bucket string) ([]model.ClipAnnotationTask, error) {
	tasks := make([]model.ClipAnnotationTask, 0, len(records))
	for _, r := range records {
		uri := r.Video
		if !model.IsRemotePath(uri) {
			if bucket == "" {
				return nil, fmt.Errorf("record %d: video %q is not a gs:// URI and no video bucket is configured", r.ID, r.Video)
			}
			uri = "gs://" + path.Join(strings.TrimPrefix(bucket, "gs://"), r.Video)
		}
		tasks = append(tasks, model.ClipAnnotationTask{RecordID: r.ID, Video: r.Video, FileURI: uri, MIMEType: VideoMIMEType})
	}
	return tasks, nil
}

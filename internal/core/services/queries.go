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

package services

// Statements over the clip table. The table name is formatted in; values are
// bound as query parameters.
const (
	QryListClips = "SELECT * FROM `%s` ORDER BY create_date DESC LIMIT @limit"

	QryListRunClips = "SELECT * FROM `%s` WHERE run_id = @run_id ORDER BY create_date DESC LIMIT @limit"

	// Rows are streamed per run, so a re-run scene can leave duplicates.
	QryFindClipById = "SELECT * FROM `%s` WHERE id = @id ORDER BY create_date DESC LIMIT 1"
)

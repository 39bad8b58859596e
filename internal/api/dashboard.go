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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// Dashboard serves /stats: the clip count per object category of the
// current run, most frequent first.
func Dashboard(r *gin.RouterGroup, progress *Progress) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			snap := progress.Snapshot()
			c.JSON(http.StatusOK, gin.H{
				"run_id":     snap.RunID,
				"clips":      snap.Clips,
				"categories": model.FrequencyTable(snap.Categories).MostCommon(0),
			})
		})
	}
}

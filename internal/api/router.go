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

// Package api is the HTTP status server: run progress, generated clips and
// signed streaming URLs.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ClipReader is the clip data source. *services.ClipService implements it.
type ClipReader interface {
	List(ctx context.Context, runID string, limit int) ([]*model.ClipRow, error)
	Get(ctx context.Context, id string) (*model.ClipRow, error)
	GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error)
}

var _ ClipReader = (*services.ClipService)(nil)

// Options configures the router.
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	SignedURLTTL   time.Duration
	Metrics        bool       // Serve /metrics from the Prometheus registry.
	Progress       *Progress  // Optional.
	Clips          ClipReader // Optional; clip routes answer 503 without it.
}

// NewRouter builds the gin engine.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	if opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	if opts.Progress == nil {
		opts.Progress = NewProgress()
	}
	apiV1 := r.Group("/api/v1")
	{
		RunRouter(apiV1, opts.Progress)
		Dashboard(apiV1, opts.Progress)
		ClipRouter(apiV1, opts.Clips, opts.SignedURLTTL)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// RunRouter serves the progress of the current run.
func RunRouter(r *gin.RouterGroup, progress *Progress) {
	runs := r.Group("/runs")
	{
		runs.GET("/current", func(c *gin.Context) {
			c.JSON(http.StatusOK, progress.Snapshot())
		})
	}
}

// ClipRouter serves the clip table.
func ClipRouter(r *gin.RouterGroup, clips ClipReader, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	group := r.Group("/clips")
	group.Use(func(c *gin.Context) {
		if clips == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "clip store not configured"})
			return
		}
		c.Next()
	})
	{
		group.GET("", func(c *gin.Context) {
			limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultListLimit)))
			if err != nil || limit <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			out, err := clips.List(c, c.Query("run_id"), limit)
			if err != nil {
				slog.Error("failed to list clips", "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		group.GET("/:id", func(c *gin.Context) {
			out, err := clips.Get(c, c.Param("id"))
			if err != nil {
				writeLookupError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		group.GET("/:id/stream", func(c *gin.Context) {
			clip, err := clips.Get(c, c.Param("id"))
			if err != nil {
				writeLookupError(c, err)
				return
			}
			if clip.VideoUrl == "" {
				c.JSON(http.StatusNotFound, gin.H{"error": "Clip was not uploaded"})
				return
			}
			signedURL, err := clips.GenerateSignedURL(c, clip.VideoUrl, ttl)
			if err != nil {
				slog.Error("failed to sign clip url", "clip", clip.Id, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate streaming URL"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": signedURL})
		})
	}
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrClipNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}
	slog.Error("failed to get clip", "id", c.Param("id"), "error", err)
	c.Status(http.StatusInternalServerError)
}

// Server runs the router until ctx is cancelled.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}}
}

// Run blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes typegraph analysis and snapshots over HTTP.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/typegraph/services/typegraph/config"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/AleutianAI/typegraph/services/typegraph/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultProjectRoot labels reports for requests that give no project root.
const DefaultProjectRoot = "request"

// Handlers contains the HTTP handlers for the typegraph service.
//
// Thread Safety: Safe for concurrent use. Each analyze request builds its
// own analyzer from a copy of the base config.
type Handlers struct {
	cfg       *config.Config
	snapshots *graph.SnapshotManager
	version   string
}

// NewHandlers creates handlers over a base config.
//
// Inputs:
//
//	cfg - Base configuration. Must not be nil. Per-request overrides are
//	  applied to a copy.
//	snapshots - Snapshot store. May be nil, in which case snapshot
//	  endpoints return 503.
//	version - Reported by /health.
func NewHandlers(cfg *config.Config, snapshots *graph.SnapshotManager, version string) (*Handlers, error) {
	if cfg == nil {
		return nil, pipeline.ErrNilConfig
	}
	return &Handlers{cfg: cfg, snapshots: snapshots, version: version}, nil
}

// HandleHealth handles GET /v1/typegraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Snapshots: h.snapshots != nil,
	})
}

// HandleAnalyze handles POST /v1/typegraph/analyze.
//
// Description:
//
//	Analyses the posted sources and returns the report. With save set the
//	report is also stored as a snapshot.
//
// Request Body:
//
//	AnalyzeRequest
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Invalid body or overrides
//	413 Request Entity Too Large: Too many sources
//	503 Service Unavailable: save requested without a snapshot store
//	500 Internal Server Error: Analysis or save failed
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}
	if len(req.Sources) > MaxAnalyzeSources {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("too many sources: %d (max %d)", len(req.Sources), MaxAnalyzeSources),
			Code:  "TOO_MANY_SOURCES",
		})
		return
	}
	if req.Save && h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	cfg, err := h.requestConfig(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid analysis options",
			Code:    "INVALID_OPTIONS",
			Details: err.Error(),
		})
		return
	}

	analyzer, err := pipeline.NewAnalyzer(cfg, logger)
	if err != nil {
		logger.Error("creating analyzer failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"})
		return
	}

	sources := make(map[string][]byte, len(req.Sources))
	for p, src := range req.Sources {
		sources[p] = []byte(src)
	}

	res, err := analyzer.AnalyzeSources(c.Request.Context(), cfg.ProjectDirectory, sources)
	if err != nil {
		logger.Warn("analysis failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "analysis failed",
			Code:    "ANALYSIS_FAILED",
			Details: err.Error(),
		})
		return
	}

	resp := AnalyzeResponse{Report: res.Report}
	if req.Save {
		meta, err := h.snapshots.Save(c.Request.Context(), res.Report, req.Label)
		if err != nil {
			logger.Error("saving snapshot failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "failed to save snapshot",
				Code:    "SNAPSHOT_SAVE_FAILED",
				Details: err.Error(),
			})
			return
		}
		resp.Snapshot = meta
	}

	c.JSON(http.StatusOK, resp)
}

// requestConfig copies the base config and applies the request overrides.
func (h *Handlers) requestConfig(req *AnalyzeRequest) (*config.Config, error) {
	cfg := *h.cfg
	cfg.ProjectDirectory = req.ProjectRoot
	if cfg.ProjectDirectory == "" {
		cfg.ProjectDirectory = DefaultProjectRoot
	}
	if req.MaxCycles > 0 {
		cfg.MaxCycles = req.MaxCycles
	}
	if req.CycleTimeout != "" {
		cfg.CycleTimeout = req.CycleTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HandleListSnapshots handles GET /v1/typegraph/snapshots.
//
// Query Parameters:
//
//	project_root: Project root the snapshots were taken for (required).
//	limit: Maximum results (default 100).
//
// Response:
//
//	200 OK: ListSnapshotsResponse
//	400 Bad Request: Missing project_root or bad limit
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListSnapshots")

	if !h.requireSnapshots(c) {
		return
	}

	projectRoot := c.Query("project_root")
	if projectRoot == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "project_root query parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	limit := graph.DefaultSnapshotListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		limit = n
	}

	metas, err := h.snapshots.List(c.Request.Context(), graph.ProjectHash(projectRoot), limit)
	if err != nil {
		logger.Error("listing snapshots failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots",
			Code:  "SNAPSHOT_LIST_FAILED",
		})
		return
	}
	if metas == nil {
		metas = []*graph.SnapshotMetadata{}
	}

	c.JSON(http.StatusOK, ListSnapshotsResponse{Snapshots: metas})
}

// HandleLoadSnapshot handles GET /v1/typegraph/snapshot/:id.
//
// Response:
//
//	200 OK: LoadSnapshotResponse
//	404 Not Found: Unknown snapshot
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleLoadSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLoadSnapshot")

	if !h.requireSnapshots(c) {
		return
	}

	id := c.Param("id")
	r, meta, err := h.snapshots.Load(c.Request.Context(), id)
	if err != nil {
		h.snapshotError(c, logger, id, err)
		return
	}

	c.JSON(http.StatusOK, LoadSnapshotResponse{Metadata: meta, Report: r})
}

// HandleDeleteSnapshot handles DELETE /v1/typegraph/snapshot/:id.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteSnapshot")

	if !h.requireSnapshots(c) {
		return
	}

	id := c.Param("id")
	if err := h.snapshots.Delete(c.Request.Context(), id); err != nil {
		h.snapshotError(c, logger, id, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleDiffSnapshots handles GET /v1/typegraph/snapshot/diff.
//
// Query Parameters:
//
//	base: Base snapshot ID (required).
//	target: Target snapshot ID (required).
//
// Response:
//
//	200 OK: graph.SnapshotDiff
//	400 Bad Request: Missing parameter
//	404 Not Found: Unknown snapshot
//	503 Service Unavailable: Snapshot persistence not configured
func (h *Handlers) HandleDiffSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDiffSnapshots")

	if !h.requireSnapshots(c) {
		return
	}

	baseID, targetID := c.Query("base"), c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "base and target query parameters are required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	base, _, err := h.snapshots.Load(c.Request.Context(), baseID)
	if err != nil {
		h.snapshotError(c, logger, baseID, err)
		return
	}
	target, _, err := h.snapshots.Load(c.Request.Context(), targetID)
	if err != nil {
		h.snapshotError(c, logger, targetID, err)
		return
	}

	diff, err := graph.DiffSnapshots(base, target, baseID, targetID)
	if err != nil {
		logger.Error("diffing snapshots failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "failed to diff snapshots",
			Code:    "SNAPSHOT_DIFF_FAILED",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, diff)
}

func (h *Handlers) requireSnapshots(c *gin.Context) bool {
	if h.snapshots != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error: "snapshot persistence not configured",
		Code:  "SNAPSHOTS_NOT_AVAILABLE",
	})
	return false
}

func (h *Handlers) snapshotError(c *gin.Context, logger *slog.Logger, id string, err error) {
	if errors.Is(err, graph.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "snapshot not found",
			Code:    "SNAPSHOT_NOT_FOUND",
			Details: id,
		})
		return
	}
	logger.Error("snapshot operation failed", slog.String("snapshot_id", id), slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "snapshot operation failed",
		Code:  "SNAPSHOT_FAILED",
	})
}

// getOrCreateRequestID returns the X-Request-ID header, generating one when
// absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

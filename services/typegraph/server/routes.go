// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName is the otelgin server name.
const ServiceName = "typegraph"

// RegisterRoutes registers all typegraph routes with the router.
//
// Description:
//
//	Registers all /v1/typegraph/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/typegraph/health - Liveness and snapshot availability
//	POST   /v1/typegraph/analyze - Analyse posted sources
//	GET    /v1/typegraph/snapshots - List snapshots for a project
//	GET    /v1/typegraph/snapshot/diff - Compare two snapshots
//	GET    /v1/typegraph/snapshot/:id - Load a snapshot
//	DELETE /v1/typegraph/snapshot/:id - Delete a snapshot
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	tg := rg.Group("/typegraph")
	{
		tg.GET("/health", handlers.HandleHealth)
		tg.POST("/analyze", handlers.HandleAnalyze)

		// Diff must be registered before the :id wildcard.
		tg.GET("/snapshot/diff", handlers.HandleDiffSnapshots)
		tg.GET("/snapshots", handlers.HandleListSnapshots)
		tg.GET("/snapshot/:id", handlers.HandleLoadSnapshot)
		tg.DELETE("/snapshot/:id", handlers.HandleDeleteSnapshot)
	}
}

// NewRouter builds the service router with tracing and recovery
// middleware. A non-nil metrics handler is mounted at /metrics.
func NewRouter(handlers *Handlers, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

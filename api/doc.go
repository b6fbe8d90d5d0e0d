// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

// Package api documents the PostFlow HTTP API.
//
// # Endpoints
//
//	POST /api/v1/tasks                 create a post task
//	GET  /api/v1/tasks?page=0&size=20  list tasks, newest first
//	POST /api/v1/tasks/{id}/execute    run the post-agent workflow for a task
//	GET  /api/v1/tasks/{id}/events     websocket stream of run events
//	GET  /api/v1/workflow/graph        Mermaid diagram of the workflow
//	GET  /health /healthz /ready /version
//
// Prometheus metrics are served on the separate metrics port at /metrics.
//
// # Authentication
//
// When server.api_keys is configured, /api/v1 endpoints require the
// X-API-Key header:
//
//	X-API-Key: your-api-key
//
// # Responses
//
// JSON endpoints wrap their payload in
//
//	{"success": true, "data": ..., "timestamp": "..."}
//
// and report failures as
//
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}
//
// The handlers live in package api/handlers.
package api

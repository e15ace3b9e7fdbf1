// Package api provides the request/response types for the upgrade
// orchestrator's Control API.
//
// # API Overview
//
// The Control API is a thin launch-and-poll surface over the Orchestrator:
//   - POST /api/upgrade/analyze launches a background run
//   - GET /api/upgrade/status/{task_id} polls run status
//   - GET /api/upgrade/report/{task_id} retrieves the final UpgradeReport
//   - GET /api/upgrade/document/{task_id}/{doc_name} returns one agent's result
//     as JSON, together with the path of the markdown report rendered for it
//     when a reports directory is configured; the file itself is not served
//   - GET /api/upgrade/list lists known runs
//   - GET /api/health and /metrics for operational monitoring
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api

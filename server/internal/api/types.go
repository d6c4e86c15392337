package api

import (
	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/server/internal/store"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	RootStatus   status.Status `json:"root_status"`
	Roots        []string      `json:"roots"`
	NodeCount    int           `json:"node_count"`
	LeafCount    int           `json:"leaf_count"`
	GreenCount   int           `json:"green_count"`
	YellowCount  int           `json:"yellow_count"`
	RedCount     int           `json:"red_count"`
	UnknownCount int           `json:"unknown_count"`
	AlertCount   int           `json:"alert_count"`
}

// NodeResponse is the payload for GET /api/v1/nodes/{name}.
type NodeResponse struct {
	store.NodeState
	// Affected lists the derived nodes whose status depends on this one.
	Affected []string `json:"affected"`
}

// SetStatusRequest is the body of PUT /api/v1/nodes/{name}.
type SetStatusRequest struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// SetStatusResponse is the payload returned by PUT /api/v1/nodes/{name}.
type SetStatusResponse struct {
	Node       string         `json:"node"`
	Status     status.Status  `json:"status"`
	Changes    []store.Change `json:"changes"`
	RootStatus status.Status  `json:"root_status"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

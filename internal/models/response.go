// Package models defines the JSON bodies exchanged over the HTTP API.
package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DeleteResponse acknowledges a deletion
type DeleteResponse struct {
	Deleted      bool   `json:"deleted"`
	DatasetID    string `json:"dataset_id"`
	VariableName string `json:"variable_name"`
}

// CleanupResponse reports how many stored models a cleanup pass removed
type CleanupResponse struct {
	Removed   int    `json:"removed"`
	OlderThan string `json:"older_than"`
}

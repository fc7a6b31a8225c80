// Package services provides the business logic layer between handlers and
// the forecasting core: model selection, training orchestration, registry
// reuse and multi-source aggregation.
package services

// Error codes returned to handlers. They map one-to-one onto the failure
// modes of the forecasting pipeline.
const (
	CodeNoData              = "NO_DATA_AVAILABLE"
	CodeNoAlgorithm         = "NO_ALGORITHM_AVAILABLE"
	CodeTrainingFailed      = "TRAINING_FAILED"
	CodeAllAlgorithmsFailed = "ALL_ALGORITHMS_FAILED"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeModelNotFound       = "MODEL_NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

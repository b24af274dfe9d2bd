// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidPayload  Code = "INVALID_PAYLOAD"
	CodeInvalidCaseType Code = "INVALID_CASE_TYPE"
	CodeInvalidDate     Code = "INVALID_DATE"

	// Metadata errors
	CodeParameterNotFound   Code = "PARAMETER_NOT_FOUND"
	CodeVariableNotFound    Code = "VARIABLE_NOT_FOUND"
	CodeMetadataUnavailable Code = "METADATA_UNAVAILABLE"

	// Reform errors
	CodeReformParameterUnknown Code = "REFORM_PARAMETER_UNKNOWN"

	// Population dataset errors
	CodeDatasetUnavailable Code = "DATASET_UNAVAILABLE"
	CodeDatasetInvalid     Code = "DATASET_INVALID"

	// Engine errors
	CodeEngineUnavailable Code = "ENGINE_UNAVAILABLE"
	CodeEngineRejected    Code = "ENGINE_REJECTED"
	CodeEngineMismatch    Code = "ENGINE_RESULT_MISMATCH"

	// Run store errors
	CodeRunStoreDisabled Code = "RUN_STORE_DISABLED"
	CodeNotFound         Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidPayload,
		CodeInvalidCaseType,
		CodeInvalidDate,
		CodeReformParameterUnknown:
		return http.StatusBadRequest

	// NotFound - resource doesn't exist
	case CodeParameterNotFound,
		CodeVariableNotFound,
		CodeNotFound:
		return http.StatusNotFound

	// UnprocessableEntity - the engine understood the request but refused it
	case CodeEngineRejected:
		return http.StatusUnprocessableEntity

	// BadGateway - upstream answered with something unusable
	case CodeEngineMismatch:
		return http.StatusBadGateway

	// ServiceUnavailable - a collaborator or local resource is missing
	case CodeEngineUnavailable,
		CodeMetadataUnavailable,
		CodeDatasetUnavailable,
		CodeRunStoreDisabled:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

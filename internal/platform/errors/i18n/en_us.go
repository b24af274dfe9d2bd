package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                = "UNKNOWN"
	CodeInvalidPayload         = "INVALID_PAYLOAD"
	CodeInvalidCaseType        = "INVALID_CASE_TYPE"
	CodeInvalidDate            = "INVALID_DATE"
	CodeParameterNotFound      = "PARAMETER_NOT_FOUND"
	CodeVariableNotFound       = "VARIABLE_NOT_FOUND"
	CodeMetadataUnavailable    = "METADATA_UNAVAILABLE"
	CodeReformParameterUnknown = "REFORM_PARAMETER_UNKNOWN"
	CodeDatasetUnavailable     = "DATASET_UNAVAILABLE"
	CodeDatasetInvalid         = "DATASET_INVALID"
	CodeEngineUnavailable      = "ENGINE_UNAVAILABLE"
	CodeEngineRejected         = "ENGINE_REJECTED"
	CodeEngineMismatch         = "ENGINE_RESULT_MISMATCH"
	CodeRunStoreDisabled       = "RUN_STORE_DISABLED"
	CodeNotFound               = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown: "An unexpected error occurred",

		// Request errors
		CodeInvalidPayload:  "Request body is invalid: {{.Reason}}",
		CodeInvalidCaseType: "Case type #{{.Index}} is invalid: {{.Reason}}",
		CodeInvalidDate:     "Date {{.Date}} must use the YYYY-MM-DD format",

		// Metadata errors
		CodeParameterNotFound:   "Parameter {{.Name}} does not exist",
		CodeVariableNotFound:    "Variable {{.Name}} does not exist",
		CodeMetadataUnavailable: "Parameter and variable metadata could not be loaded",

		// Reform errors
		CodeReformParameterUnknown: "Reform targets unknown parameter {{.Name}}",

		// Dataset errors
		CodeDatasetUnavailable: "Population dataset could not be read",
		CodeDatasetInvalid:     "Population dataset is invalid: {{.Reason}}",

		// Engine errors
		CodeEngineUnavailable: "Simulation engine is unavailable",
		CodeEngineRejected:    "Simulation engine rejected the calculation: {{.Reason}}",
		CodeEngineMismatch:    "Simulation engine returned an unexpected result",

		// Run store errors
		CodeRunStoreDisabled: "Run history is not enabled on this server",
		CodeNotFound:         "Resource not found",
	},
}

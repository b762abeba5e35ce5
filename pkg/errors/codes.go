package errors

// Code identifies a class of failure across every component.
type Code string

const (
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL"
	CodeIoError       Code = "IO_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeInvalidState  Code = "INVALID_STATE"

	// Input / parser errors
	CodeEmptyContent       Code = "EMPTY_CONTENT"
	CodeInvalidFrontmatter Code = "INVALID_FRONTMATTER"

	// LLM client errors
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeServerError        Code = "SERVER_ERROR"
	CodeLLMTimeout         Code = "LLM_TIMEOUT"
	CodeAuthFailed         Code = "AUTH_FAILED"
	CodeUnexpectedResponse Code = "UNEXPECTED_RESPONSE"

	// Analyzer / schema errors
	CodeSchemaInvalid Code = "SCHEMA_INVALID"

	// Docker driver errors
	CodeDockerNonZeroExit Code = "DOCKER_NON_ZERO_EXIT"
	CodeDockerMissing     Code = "DOCKER_MISSING"
	CodeDockerTimeout     Code = "DOCKER_TIMEOUT"

	// Pipeline / lifecycle errors
	CodeVerificationFailed Code = "VERIFICATION_FAILED"
	CodeTaskCrashed        Code = "TASK_CRASHED"

	// Search proxy errors
	CodeSearchUnconfigured Code = "SEARCH_UNCONFIGURED"
	CodeSearchHTTPError    Code = "SEARCH_HTTP_ERROR"
)

package httputil

// Stable error codes returned in the "code" field of error responses.
// Clients branch on these, never on the message text.
const (
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeDuplicateCredential = "DUPLICATE_CREDENTIAL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidResetToken   = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidSetting      = "INVALID_SETTING"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeInvalidUpload       = "INVALID_UPLOAD"
	CodeInternalError       = "INTERNAL_ERROR"
)

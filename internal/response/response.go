// Package response interprets raw responses returned by the Unbxd indexing API.
//
// The API does not report outcomes through HTTP status codes alone. A request
// can be answered with 200 while the body reports that indexing failed, and an
// accepted upload may still be indexing asynchronously. The interpreter folds
// the status code and the in-body status field into three flags: success,
// error and processing.
package response

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// HTTP status codes with a meaning in the indexing protocol
const (
	CodeFeedIndexing       = 100
	CodeSuccess            = 200
	CodeUploadAccepted     = 201
	CodeBadRequest         = 400
	CodeAuthFailure        = 401
	CodeInternalError      = 500
	CodeIndexingFailed     = 504
	codeMalformedResponse  = 0
	defaultBodyMessage     = "N/A"
	malformedResponseError = "API Response Error. Unexpected response, unable to parse."
)

// Body fields read by the interpreter
const (
	FieldUploadID = "uploadId"
	FieldStatus   = "status"
	FieldCode     = "code"
	FieldMessage  = "message"
)

// Values of the in-body status field
const (
	StatusIndexing = "INDEXING"
	StatusFailed   = "FAILED"
	StatusIndexed  = "INDEXED"
)

// ErrConflictingOutcome is returned by Check when a response is both a success and an error
var ErrConflictingOutcome = errors.New("response is flagged as both success and error")

// APIResponse is the interpreted result of one API call.
// It is immutable once returned by Interpret or FromHTTP.
type APIResponse struct {
	statusCode      int
	reason          string
	body            []byte
	parsed          map[string]any
	status          string
	uploadID        string
	uploadedSize    int64
	hasUploadedSize bool

	success    bool
	failure    bool
	processing bool

	errors map[int]string
}

// StatusCode returns the HTTP status code, or 0 if the response could not be parsed
func (r *APIResponse) StatusCode() int {
	return r.statusCode
}

// Reason returns the HTTP reason phrase
func (r *APIResponse) Reason() string {
	return r.reason
}

// Body returns a copy of the raw response body
func (r *APIResponse) Body() []byte {
	return slices.Clone(r.body)
}

// Parsed returns a copy of the decoded JSON body. It is empty when the body is not a JSON object.
func (r *APIResponse) Parsed() map[string]any {
	return maps.Clone(r.parsed)
}

// Field returns a top-level field of the decoded body
func (r *APIResponse) Field(name string) (any, bool) {
	v, ok := r.parsed[name]
	return v, ok
}

// BodyStatus returns the trimmed in-body status field, empty if absent
func (r *APIResponse) BodyStatus() string {
	return r.status
}

// UploadID returns the upload identifier of an accepted upload, empty if absent
func (r *APIResponse) UploadID() string {
	return r.uploadID
}

// UploadedSize returns the byte count reported by an upload progress response.
// The second value is false unless the body was a bare integer.
func (r *APIResponse) UploadedSize() (int64, bool) {
	return r.uploadedSize, r.hasUploadedSize
}

// IsSuccess reports whether the call completed successfully
func (r *APIResponse) IsSuccess() bool {
	return r.success
}

// IsError reports whether the call failed
func (r *APIResponse) IsError() bool {
	return r.failure
}

// IsProcessing reports whether the remote service is still indexing
func (r *APIResponse) IsProcessing() bool {
	return r.processing
}

// IsProgressReport reports whether this response only carries an uploaded size
func (r *APIResponse) IsProgressReport() bool {
	return r.hasUploadedSize
}

// Errors returns a copy of the error messages keyed by status code
func (r *APIResponse) Errors() map[int]string {
	return maps.Clone(r.errors)
}

// ErrorMessage returns all error messages ordered by code and joined by newlines
func (r *APIResponse) ErrorMessage() string {
	if len(r.errors) == 0 {
		return ""
	}
	codes := slices.Sorted(maps.Keys(r.errors))
	messages := make([]string, 0, len(codes))
	for _, code := range codes {
		messages = append(messages, r.errors[code])
	}
	return strings.Join(messages, "\n")
}

// Check verifies the outcome flags are consistent
func (r *APIResponse) Check() error {
	if r.success && r.failure {
		return ErrConflictingOutcome
	}
	return nil
}

// LogValue implements slog.LogValuer
func (r *APIResponse) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("code", r.statusCode),
		slog.String("status", r.status),
		slog.String("upload_id", r.uploadID),
		slog.Bool("success", r.success),
		slog.Bool("error", r.failure),
		slog.Bool("processing", r.processing),
	)
}

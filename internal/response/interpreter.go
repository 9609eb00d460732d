package response

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// errorTemplates maps error codes to their message format. %s receives the body message.
var errorTemplates = map[int]string{
	CodeBadRequest:     "API Response Error. Bad Request. Code - %d. Message - %s.",
	CodeAuthFailure:    "API Response Error. Invalid Authorization Credentials. Code - %d. Message - %s.",
	CodeInternalError:  "API Response Error. Internal Server Error. Code - %d. Message - %s.",
	CodeIndexingFailed: "API Response Error. Feed Indexing Failed. Code - %d. Message - %s.",
}

// genericErrorTemplate covers failures without a dedicated message, such as a 200 whose body status is FAILED
const genericErrorTemplate = "API Response Error. Unexpected error. Code - %d. Message - %s."

// Interpret parses a raw HTTP response (status line, headers and body) and
// interprets it. Input that cannot be parsed as HTTP yields an error response
// carrying a generic message rather than a Go error.
func Interpret(raw []byte) *APIResponse {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil {
		return malformed(raw)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return malformed(raw)
	}

	return FromHTTP(resp.StatusCode, reasonPhrase(resp), body)
}

// FromHTTP interprets an already split status code, reason phrase and body
func FromHTTP(code int, reason string, body []byte) *APIResponse {
	r := &APIResponse{
		statusCode: code,
		reason:     reason,
		body:       bytes.Clone(body),
		parsed:     map[string]any{},
		errors:     map[int]string{},
	}

	trimmed := bytes.TrimSpace(body)

	// A bare integer body only reports upload progress and carries no outcome
	if size, ok := parseWholeNumber(trimmed); ok {
		r.uploadedSize = size
		r.hasUploadedSize = true
		return r
	}

	var doc gjson.Result
	if gjson.ValidBytes(trimmed) {
		doc = gjson.ParseBytes(trimmed)
		if doc.IsObject() {
			dec := json.NewDecoder(bytes.NewReader(trimmed))
			dec.UseNumber()
			_ = dec.Decode(&r.parsed)
		}
		if status := doc.Get(FieldStatus); status.Exists() {
			r.status = strings.TrimSpace(status.String())
		}
	}

	message := defaultBodyMessage
	if m := doc.Get(FieldMessage); m.Exists() && m.String() != "" {
		message = m.String()
	}

	if tmpl, ok := errorTemplates[code]; ok {
		r.failure = true
		r.errors[code] = fmt.Sprintf(tmpl, code, message)
	}
	if code == CodeSuccess && r.status == StatusFailed {
		r.failure = true
		r.errors[code] = fmt.Sprintf(genericErrorTemplate, code, message)
	}

	r.processing = r.status == StatusIndexing

	if (code == CodeSuccess || code == CodeUploadAccepted) && !r.processing && !r.failure {
		r.success = true
		if id := doc.Get(FieldUploadID); id.Exists() {
			r.uploadID = id.String()
		}
	}

	return r
}

func malformed(raw []byte) *APIResponse {
	return &APIResponse{
		statusCode: codeMalformedResponse,
		body:       bytes.Clone(raw),
		parsed:     map[string]any{},
		failure:    true,
		errors:     map[int]string{codeMalformedResponse: malformedResponseError},
	}
}

func reasonPhrase(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

// parseWholeNumber reports whether b is a finite number with no fractional part
func parseWholeNumber(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f < math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

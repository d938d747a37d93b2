package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/prefork/internal/domain"
)

const validationFailedText = "Validation failed. Please check your input and try again."

var statusByCode = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
}

// ErrorCodeToHTTPStatus maps a domain error code to an HTTP status. Unknown
// codes are 500.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// problem is the client-safe view of an error. op and cause are logged and
// never written.
type problem struct {
	status  int
	code    string
	message string
	text    string // plain-text body, defaults to message
	fields  map[string]string
	op      string
	cause   error
}

func newProblem(err error) problem {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return problem{
			status:  http.StatusBadRequest,
			code:    domain.EINVALID,
			message: "Validation failed",
			text:    validationFailedText,
			fields:  ve.Fields,
			op:      ve.Op,
			cause:   err,
		}
	}

	code := domain.ErrorCode(err)
	return problem{
		status:  ErrorCodeToHTTPStatus(code),
		code:    code,
		message: domain.ErrorMessage(err),
		op:      domain.ErrorOp(err),
		cause:   err,
	}
}

// ErrorResponse logs err and writes it as JSON when the client speaks JSON,
// plain text otherwise. Field errors, operation names and wrapped causes of
// internal errors are never sent in plain text.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	p := newProblem(err)
	p.log(logger, r)

	if acceptsJSON(r) {
		var body JSONError
		body.Error.Code = p.code
		body.Error.Message = p.message
		body.Error.Fields = p.fields
		writeJSON(w, p.status, body)
		return
	}

	text := p.text
	if text == "" {
		text = p.message
	}
	http.Error(w, text, p.status)
}

// ValidationErrorResponse is ErrorResponse for the results of form or
// service validation. Any other error is written as usual.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, err)
}

func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

// InternalErrorResponse writes a generic 500 and logs err.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

func (p problem) log(logger *slog.Logger, r *http.Request) {
	attrs := []any{
		"error", p.cause.Error(),
		"code", p.code,
		"method", r.Method,
		"path", r.URL.Path,
		"status", p.status,
	}
	if p.op != "" {
		attrs = append(attrs, "op", p.op)
	}
	if len(p.fields) > 0 {
		attrs = append(attrs, "field_count", len(p.fields))
	}

	if p.status >= http.StatusInternalServerError {
		logger.Error("server error", attrs...)
		return
	}
	logger.Info("client error", attrs...)
}

func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError is the body of every JSON error response.
type JSONError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

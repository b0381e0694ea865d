// Package errors renders service outcomes as JSON responses.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/dalemusser/compliancehub/internal/app/system/limits"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"go.uber.org/zap"
)

// Response is the body of every error reply.
type Response struct {
	Error   errs.Kind `json:"error"`
	Message string    `json:"message"`
}

// StatusFor maps an outcome kind to its HTTP status.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNone:
		return http.StatusOK
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindAlreadyEnrolled, errs.KindNotEnrolled, errs.KindCapacityExceeded,
		errs.KindNotAcceptingVolunteers, errs.KindInvalidTransition:
		return http.StatusConflict
	case errs.KindInvalid:
		return http.StatusBadRequest
	case errs.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// ErrorLogger writes error responses and logs the ones that are ours.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Write renders err. 5xx outcomes are logged with the request path and
// their message is replaced so driver details do not leak.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := errs.KindOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		e.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
		msg = http.StatusText(status)
	}
	JSON(w, status, Response{Error: kind, Message: msg})
}

// DecodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooBig):
			return errs.Invalid("request body exceeds %d bytes", tooBig.Limit)
		case stderrors.Is(err, io.EOF):
			return errs.Invalid("request body is empty")
		}
		return errs.Invalid("malformed JSON: %v", err)
	}
	return nil
}

// NotFound is the router's fallback for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusNotFound, Response{Error: errs.KindNotFound, Message: "no route for " + r.URL.Path})
}

// MethodNotAllowed is the router's fallback for known routes with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, Response{Error: "method_not_allowed", Message: r.Method + " not allowed"})
}

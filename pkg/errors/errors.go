// Package errors provides coded errors for the recommendation engine.
//
// Every error produced at a kind boundary carries a machine-readable Code so that
// callers (HTTP handlers, the CLI, the HTTP client) can classify it without string
// matching. Codes are dotted paths whose last segment is the reason.
package errors

import (
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeInvalidArgument    Code = "request.argument.invalid"
	CodeNotFound           Code = "store.item.not_found"
	CodeDimensionMismatch  Code = "store.embedding.dimension_mismatch"
	CodeEmbeddingFailure   Code = "embedding.upstream.failure"
	CodePersistenceFailure Code = "storage.persistence.failure"

	CodeConfigLoadFailure  Code = "config.load.failure"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"

	CodeCatalogInvalidFormat Code = "catalog.parse.invalid_format"

	CodeServerInternalFailure Code = "server.internal.failure"
	CodeClientRequestFailure  Code = "client.request.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldItemID(value string) Attr {
	return Field("item_id", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the code of err. When several coded errors are chained the
// innermost code wins, so a kind assigned at the source survives re-wrapping.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

// FieldsOf returns the structured context attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsInvalidArgument(err error) bool {
	return HasCode(err, CodeInvalidArgument)
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

func IsDimensionMismatch(err error) bool {
	return HasCode(err, CodeDimensionMismatch)
}

func IsEmbeddingFailure(err error) bool {
	return HasCode(err, CodeEmbeddingFailure)
}

func IsPersistenceFailure(err error) bool {
	return HasCode(err, CodePersistenceFailure)
}

// HTTPStatus maps an error to the status code the HTTP transport responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument, CodeCatalogInvalidFormat:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDimensionMismatch:
		return http.StatusUnprocessableEntity
	case CodeEmbeddingFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus rebuilds a coded error from a transport error response. A code sent
// by the server takes precedence over the status.
func FromHTTPStatus(status int, code Code, msg string) error {
	if code == "" {
		switch status {
		case http.StatusBadRequest:
			code = CodeInvalidArgument
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusUnprocessableEntity:
			code = CodeDimensionMismatch
		case http.StatusBadGateway:
			code = CodeEmbeddingFailure
		default:
			code = CodeClientRequestFailure
		}
	}
	return New(code, msg, Field("status", status))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

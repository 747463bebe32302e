// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"streamhub/modules/middleware/problem"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// ValidationError is one rejected field and the reason for it.
type ValidationError struct {
	Field  string
	Reason string
}

// LoadSpec reads and validates an OpenAPI document from fsys.
func LoadSpec(fsys fs.FS, specPath string) (*openapi3.T, error) {
	data, err := fs.ReadFile(fsys, specPath)
	if err != nil {
		return nil, fmt.Errorf("read openapi spec: %w", err)
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// OpenAPIValidation rejects requests that do not match the OpenAPI document before they
// reach a handler. Body violations answer 422, everything else 400, and
// unknown routes 404. Authentication is left to the handlers.
func OpenAPIValidation(fsys fs.FS, specPath string) (func(http.Handler) http.Handler, error) {
	spec, err := LoadSpec(fsys, specPath)
	if err != nil {
		return nil, err
	}

	opts := &nethttpmiddleware.Options{
		Options: openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
		DoNotValidateServers:  true,
		SilenceServersWarning: true,
		ErrorHandlerWithOpts: func(ctx context.Context, err error, w http.ResponseWriter, r *http.Request, eopts nethttpmiddleware.ErrorHandlerOpts) {
			status := eopts.StatusCode
			if status == 0 {
				status = http.StatusBadRequest
			}
			if InferBodyValidationStatus(err) == http.StatusUnprocessableEntity {
				status = http.StatusUnprocessableEntity
			}
			slog.DebugContext(ctx, "request rejected by validator",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
			)

			if status == http.StatusNotFound {
				problem.Write(w, problem.NotFound("no such route"))
				return
			}
			p := problem.New(
				problem.WithStatus(status),
				problem.WithTitle(http.StatusText(status)),
				problem.WithDetail("validation failed"),
			)
			for _, ve := range ExtractValidationErrors(err) {
				problem.WithInvalidParam(ve.Field, ve.Reason)(p)
			}
			problem.Write(w, p)
		},
	}
	return nethttpmiddleware.OapiRequestValidatorWithOptions(spec, opts), nil
}

// ExtractValidationErrors flattens a validator error into per-field reasons.
func ExtractValidationErrors(err error) []ValidationError {
	var me openapi3.MultiError
	if errors.As(err, &me) {
		var out []ValidationError
		for _, item := range me {
			out = append(out, ExtractValidationErrors(item)...)
		}
		return out
	}
	return []ValidationError{extractSingleError(err)}
}

func extractSingleError(err error) ValidationError {
	var re *openapi3filter.RequestError
	if errors.As(err, &re) {
		var se *openapi3.SchemaError
		if errors.As(re.Err, &se) {
			if re.Parameter != nil {
				return ValidationError{Field: re.Parameter.Name, Reason: se.Reason}
			}
			return ValidationError{Field: fieldFromPointer(se.JSONPointer()), Reason: se.Reason}
		}
		// not a schema error: keep the reason generic so input is not echoed
		if re.Parameter != nil {
			return ValidationError{Field: re.Parameter.Name, Reason: SafeReason(re.Reason)}
		}
		return ValidationError{Field: "body", Reason: SafeReason(re.Reason)}
	}

	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return ValidationError{Field: fieldFromPointer(se.JSONPointer()), Reason: se.Reason}
	}
	return ValidationError{Field: "request", Reason: "invalid value"}
}

func fieldFromPointer(ptr []string) string {
	if len(ptr) == 0 || ptr[0] == "" || ptr[0] == "0" {
		return "body"
	}
	return ptr[0]
}

// InferBodyValidationStatus returns 422 when a request body failed its
// schema and 0 otherwise.
func InferBodyValidationStatus(err error) int {
	var me openapi3.MultiError
	if errors.As(err, &me) {
		for _, item := range me {
			if InferBodyValidationStatus(item) == http.StatusUnprocessableEntity {
				return http.StatusUnprocessableEntity
			}
		}
		return 0
	}
	var re *openapi3filter.RequestError
	if !errors.As(err, &re) || re.RequestBody == nil || re.Parameter != nil {
		return 0
	}
	// well-formed JSON that breaks the schema; unparseable bodies stay 400
	var se *openapi3.SchemaError
	if errors.As(re.Err, &se) {
		return http.StatusUnprocessableEntity
	}
	return 0
}

// SafeReason keeps only reasons that cannot reflect request data.
func SafeReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case reason == "":
		return "invalid value"
	case strings.Contains(lower, "doesn't match schema"):
		return "doesn't match schema"
	case strings.Contains(lower, "must be one of"):
		return reason
	case strings.Contains(lower, "value is required"):
		return "value is required"
	}
	return "invalid value"
}

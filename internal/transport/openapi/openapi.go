// Package openapi loads the published API contract and optionally checks
// incoming requests against it.
package openapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

// Load reads and validates the document at path.
func Load(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document %s: %w", path, err)
	}
	return doc, nil
}

// LoadFromData is Load for an in-memory document.
func LoadFromData(ctx context.Context, data []byte) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

type Validator struct {
	router   routers.Router
	basePath string
	logger   *slog.Logger
}

// NewValidator matches request paths with basePath stripped against the
// document's paths. Server entries are ignored.
func NewValidator(doc *openapi3.T, basePath string, logger *slog.Logger) (*Validator, error) {
	cp := *doc
	cp.Servers = nil
	router, err := legacy.NewRouter(&cp)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &Validator{
		router:   router,
		basePath: strings.TrimSuffix(basePath, "/"),
		logger:   logger,
	}, nil
}

// Middleware rejects requests whose parameters or body break the contract.
// Routes the document does not describe pass through untouched.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probe := r.Clone(r.Context())
		probe.URL.Path = strings.TrimPrefix(r.URL.Path, v.basePath)
		if probe.URL.Path == "" {
			probe.URL.Path = "/"
		}
		probe.URL.RawPath = ""

		route, params, err := v.router.FindRoute(probe)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    probe,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			logger.FromOr(r.Context(), v.logger).Warn("request rejected by api contract",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			writeError(w, contractError(err))
			return
		}

		// ValidateRequest consumed and replaced the probe's body.
		r.Body = probe.Body
		next.ServeHTTP(w, r)
	})
}

func contractError(err error) *errors.AppError {
	field := "request"
	message := err.Error()

	var reqErr *openapi3filter.RequestError
	if stderrors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			field = reqErr.Parameter.Name
		case reqErr.RequestBody != nil:
			field = "body"
		}
		if reqErr.Reason != "" {
			message = reqErr.Reason
		}
		var schemaErr *openapi3.SchemaError
		if stderrors.As(reqErr.Err, &schemaErr) {
			if ptr := schemaErr.JSONPointer(); len(ptr) > 0 {
				field = strings.Join(ptr, ".")
			}
			message = schemaErr.Reason
		}
	}

	return errors.ErrValidationFailed.WithDetails(errors.ValidationErrors{
		Errors: []errors.ValidationError{{
			Field:   field,
			Message: message,
			Code:    string(errors.ErrCodeValidationFailed),
		}},
	})
}

func writeError(w http.ResponseWriter, appErr *errors.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

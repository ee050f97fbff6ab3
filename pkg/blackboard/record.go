package blackboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrAlreadySet is returned when a write-once record field is written twice.
var ErrAlreadySet = errors.New("project record field already set")

// ErrNotSet is returned when a field is revised before its first write.
var ErrNotSet = errors.New("project record field not set")

// ProjectScope is the architect's decision about what the backend needs.
type ProjectScope struct {
	IsCRUDRequired               bool `json:"is_crud_required"`
	IsUserLoginAndLogoutRequired bool `json:"is_user_login_and_logout"`
	IsExternalURLsRequired       bool `json:"is_external_urls_required"`
}

// scopeWire is the decoded form of ProjectScope. Pointers tell a missing
// decision apart from false.
type scopeWire struct {
	IsCRUDRequired               *bool `json:"is_crud_required" validate:"required"`
	IsUserLoginAndLogoutRequired *bool `json:"is_user_login_and_logout" validate:"required"`
	IsExternalURLsRequired       *bool `json:"is_external_urls_required" validate:"required"`
}

// UnmarshalJSON requires every decision to be present.
func (s *ProjectScope) UnmarshalJSON(data []byte) error {
	var wire scopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if err := validate.Struct(wire); err != nil {
		return fmt.Errorf("project scope is incomplete: %w", err)
	}
	*s = ProjectScope{
		IsCRUDRequired:               *wire.IsCRUDRequired,
		IsUserLoginAndLogoutRequired: *wire.IsUserLoginAndLogoutRequired,
		IsExternalURLsRequired:       *wire.IsExternalURLsRequired,
	}
	return nil
}

// Route describes one endpoint of the generated service.
type Route struct {
	Path        string          `json:"path" validate:"required,startswith=/"`
	Method      string          `json:"method" validate:"required,http_method"`
	Description string          `json:"description"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
}

// IsGET reports whether the route is a GET, ignoring case.
func (r Route) IsGET() bool {
	return strings.EqualFold(r.Method, "GET")
}

var pathParam = regexp.MustCompile(`\{[^/}]+\}|:[A-Za-z_][A-Za-z0-9_]*`)

// ProbePath returns Path with every {param} or :param segment replaced by
// "1", so the route can be requested.
func (r Route) ProbePath() string {
	return pathParam.ReplaceAllString(r.Path, "1")
}

// EndpointSchema is the ordered list of routes the generated service exposes.
type EndpointSchema []Route

// Validate requires at least one route and checks every route.
func (s EndpointSchema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("endpoint schema has no routes")
	}
	for i, r := range s {
		if err := validate.Struct(r); err != nil {
			return fmt.Errorf("route %d (%s %s): %w", i, r.Method, r.Path, err)
		}
	}
	return nil
}

// GETRoutes returns the GET routes in schema order.
func (s EndpointSchema) GETRoutes() []Route {
	var out []Route
	for _, r := range s {
		if r.IsGET() {
			out = append(out, r)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(fl.Field().String()) {
		case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
			return true
		}
		return false
	})
	return v
}

// ProjectRecord accumulates stage outputs for one run. Optional fields are
// write-once. It is not safe for concurrent use; stages hold it one at a
// time.
type ProjectRecord struct {
	description    string
	scope          *ProjectScope
	externalURLs   []string
	urlsSet        bool
	backendCode    *string
	endpointSchema EndpointSchema
}

// NewProjectRecord creates a record seeded with the project description.
func NewProjectRecord(description string) *ProjectRecord {
	return &ProjectRecord{description: description}
}

func (r *ProjectRecord) Description() string { return r.description }

// Scope returns the project scope and whether it has been set.
func (r *ProjectRecord) Scope() (ProjectScope, bool) {
	if r.scope == nil {
		return ProjectScope{}, false
	}
	return *r.scope, true
}

// SetScope writes the project scope once.
func (r *ProjectRecord) SetScope(scope ProjectScope) error {
	if r.scope != nil {
		return fmt.Errorf("project scope: %w", ErrAlreadySet)
	}
	r.scope = &scope
	return nil
}

// ExternalURLs returns a copy of the validated URLs and whether they have
// been set.
func (r *ProjectRecord) ExternalURLs() ([]string, bool) {
	if !r.urlsSet {
		return nil, false
	}
	out := make([]string, len(r.externalURLs))
	copy(out, r.externalURLs)
	return out, true
}

// SetExternalURLs writes the validated URL list once. An empty list counts
// as set.
func (r *ProjectRecord) SetExternalURLs(urls []string) error {
	if r.urlsSet {
		return fmt.Errorf("external urls: %w", ErrAlreadySet)
	}
	r.externalURLs = append([]string{}, urls...)
	r.urlsSet = true
	return nil
}

// BackendCode returns the current backend source and whether it has been set.
func (r *ProjectRecord) BackendCode() (string, bool) {
	if r.backendCode == nil {
		return "", false
	}
	return *r.backendCode, true
}

// SetBackendCode writes the backend source once.
func (r *ProjectRecord) SetBackendCode(code string) error {
	if r.backendCode != nil {
		return fmt.Errorf("backend code: %w", ErrAlreadySet)
	}
	r.backendCode = &code
	return nil
}

// ReviseBackendCode replaces the backend source with a repaired version. The
// first write must go through SetBackendCode.
func (r *ProjectRecord) ReviseBackendCode(code string) error {
	if r.backendCode == nil {
		return fmt.Errorf("backend code: %w", ErrNotSet)
	}
	r.backendCode = &code
	return nil
}

// EndpointSchema returns a copy of the schema and whether it has been set.
func (r *ProjectRecord) EndpointSchema() (EndpointSchema, bool) {
	if r.endpointSchema == nil {
		return nil, false
	}
	out := make(EndpointSchema, len(r.endpointSchema))
	copy(out, r.endpointSchema)
	return out, true
}

// SetEndpointSchema writes the endpoint schema once.
func (r *ProjectRecord) SetEndpointSchema(schema EndpointSchema) error {
	if r.endpointSchema != nil {
		return fmt.Errorf("endpoint schema: %w", ErrAlreadySet)
	}
	r.endpointSchema = append(EndpointSchema{}, schema...)
	return nil
}

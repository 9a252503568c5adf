package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shelf/internal/ir"
)

// Scenario is a scripted sequence of requests against a fresh instance.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Markers lists collections declared before the first step, which
	// makes their list reads return rows.
	Markers []string `yaml:"markers,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step sends one request and optionally checks the response.
type Step struct {
	Request Request `yaml:"request"`
	Expect  *Expect `yaml:"expect,omitempty"`
}

// Request describes an HTTP request.
type Request struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`

	// Auth is a username. The user is registered on first use.
	Auth string `yaml:"auth,omitempty"`
	// Token is sent verbatim as the bearer token.
	Token string `yaml:"token,omitempty"`

	// Body is a mapping sent as JSON, or as form fields with Form or File.
	Body yaml.Node `yaml:"body,omitempty"`
	Form bool      `yaml:"form,omitempty"`
	File *File     `yaml:"file,omitempty"`

	// Raw is sent verbatim with ContentType.
	Raw         *string `yaml:"raw,omitempty"`
	ContentType string  `yaml:"content_type,omitempty"`
}

// File is an upload sent in the multipart "image" field.
type File struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// Expect checks a response.
type Expect struct {
	Status int `yaml:"status"`

	// Body is matched as a subset of the decoded response.
	Body yaml.Node `yaml:"body,omitempty"`
}

// Assertion checks the database after all steps ran.
type Assertion struct {
	Type       string `yaml:"type"`
	Collection string `yaml:"collection"`

	// Columns is the exact column list (columns).
	Columns []string `yaml:"columns,omitempty"`
	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`
	// ID selects the row (record).
	ID int64 `yaml:"id,omitempty"`
	// Expect is matched as a subset of the row (record).
	Expect yaml.Node `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertColumns  = "columns"
	AssertRowCount = "row_count"
	AssertRecord   = "record"
)

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, m := range s.Markers {
		name, err := ir.NormalizeCollection(m)
		if err != nil {
			return fmt.Errorf("markers[%d]: %w", i, err)
		}
		if name != m {
			return fmt.Errorf("markers[%d]: %q is not a normalized collection name (use %q)", i, m, name)
		}
	}
	for i, step := range s.Steps {
		if err := validateRequest(step.Request); err != nil {
			return fmt.Errorf("steps[%d].request: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Status == 0 {
			return fmt.Errorf("steps[%d].expect: status is required", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateRequest(r Request) error {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions:
	case "":
		return fmt.Errorf("method is required")
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must start with /", r.Path)
	}
	if r.Auth != "" && r.Token != "" {
		return fmt.Errorf("auth and token are mutually exclusive")
	}
	if r.Raw != nil && (!r.Body.IsZero() || r.Form || r.File != nil) {
		return fmt.Errorf("raw cannot be combined with body, form or file")
	}
	if r.Form && r.File != nil {
		return fmt.Errorf("form and file are mutually exclusive; a file is always sent as multipart")
	}
	if !r.Body.IsZero() && r.Body.Kind != yaml.MappingNode {
		return fmt.Errorf("body must be a mapping")
	}
	if r.File != nil && r.File.Name == "" {
		return fmt.Errorf("file: name is required")
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Collection == "" {
		return fmt.Errorf("assertions[%d]: collection is required", index)
	}

	switch a.Type {
	case AssertColumns:
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns list is required for columns", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertRecord:
		if a.ID <= 0 {
			return fmt.Errorf("assertions[%d]: id is required for record", index)
		}
		if a.Expect.Kind != yaml.MappingNode {
			return fmt.Errorf("assertions[%d]: expect mapping is required for record", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

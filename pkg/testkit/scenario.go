// Package testkit holds test helpers: per-test databases, a cookie-keeping
// browser, a mock transport for outgoing HTTP, and JSON scenario files.
//
// A scenario file describes one request against the kernel, the status and
// JSON body expected back, and the outgoing calls to fake:
//
//	{
//	  "name": "catalog query",
//	  "requestMethod": "POST",
//	  "requestUrl": "/graphql",
//	  "requestFileName": "catalog_req.json",
//	  "expectedCode": 200,
//	  "responseFileName": "catalog_res.json"
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scenario is a single request/response case loaded from JSON.
type Scenario struct {
	Name             string            `json:"name"`
	RequestMethod    string            `json:"requestMethod"`
	RequestURL       string            `json:"requestUrl"`
	RequestFileName  string            `json:"requestFileName"`
	Headers          map[string]string `json:"headers"`
	ExpectedCode     int               `json:"expectedCode"`
	ResponseFileName string            `json:"responseFileName"`
	IsMockRequired   bool              `json:"isMockRequired"`
	Mocks            []MockStep        `json:"mocks"`

	dir string
}

// MockStep fakes one outgoing HTTP call.
type MockStep struct {
	Method     string         `json:"method"`
	MatchURL   string         `json:"matchUrl"`
	ReturnData MockReturnData `json:"returnData"`
}

type MockReturnData struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	s.RequestMethod = strings.ToUpper(s.RequestMethod)
	return nil
}

func (s *Scenario) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

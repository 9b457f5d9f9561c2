package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// RunDir runs every *.scenario.json file in dir as a subtest against
// handler. Request and response fixtures live beside them as plain .json.
func RunDir(t *testing.T, handler http.Handler, dir string) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*.scenario.json"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("testkit: no scenario files found in %q", dir)
	}

	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			t.Errorf("%v", err)
			continue
		}
		t.Run(s.Name, func(t *testing.T) { RunScenario(t, handler, s) })
	}
}

// RunScenario fires s at handler with its mocks installed and checks the
// status, the JSON body and that every mock was used.
func RunScenario(t *testing.T, handler http.Handler, s *Scenario) {
	t.Helper()

	var body io.Reader
	if p := s.resolve(s.RequestFileName); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("[%s] read request file: %v", s.Name, err)
		}
		body = bytes.NewReader(data)
	}

	mt := NewMockTransport(s.IsMockRequired)
	for _, step := range s.Mocks {
		mt.Add(step)
	}
	mt.Install(t)

	req := httptest.NewRequest(s.RequestMethod, s.RequestURL, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	AssertStatus(t, s, rec.Code)
	if p := s.resolve(s.ResponseFileName); p != "" {
		expected, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("[%s] read response file: %v", s.Name, err)
		} else {
			AssertJSONBody(t, s, expected, rec.Body.Bytes())
		}
	}
	AssertMocksCalled(t, s, mt)
}

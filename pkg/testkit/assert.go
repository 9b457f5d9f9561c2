package testkit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func AssertStatus(t *testing.T, s *Scenario, got int) {
	t.Helper()
	assert.Equal(t, s.ExpectedCode, got, "[%s] HTTP status code mismatch", s.Name)
}

// AssertJSONBody compares both bodies after decoding, so key order and
// whitespace never matter.
func AssertJSONBody(t *testing.T, s *Scenario, expected, actual []byte) {
	t.Helper()
	if len(expected) == 0 {
		return
	}

	var exp, act any
	require.NoError(t, json.Unmarshal(expected, &exp), "[%s] expected response file is not valid JSON", s.Name)
	if !assert.NoError(t, json.Unmarshal(actual, &act), "[%s] response is not JSON\nbody: %s", s.Name, actual) {
		return
	}
	assert.Equal(t, exp, act, "[%s] response body mismatch", s.Name)
}

// AssertMocksCalled fails for every mock step that never matched.
func AssertMocksCalled(t *testing.T, s *Scenario, mt *MockTransport) {
	t.Helper()
	for _, step := range mt.Uncalled() {
		assert.Failf(t, "mock never called", "[%s] %s %s", s.Name, step.Method, step.MatchURL)
	}
}

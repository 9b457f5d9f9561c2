package testkit

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	shophttp "github.com/farmshop/storefront/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransport_MatchesMethodAndPrefix(t *testing.T) {
	mt := NewMockTransport(true).
		On(http.MethodGet, "https://api.test/v1/items", 200, `{"id":"get"}`).
		On(http.MethodPost, "https://api.test/v1/items", 201, `{"id":"post"}`).
		Install(t)

	resp, err := shophttp.Post("https://api.test/v1/items").Form(url.Values{"a": {"1"}}).Send()
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"id":"post"}`, resp.Text())

	calls := mt.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "a=1", calls[0].Body)
	assert.Equal(t, "application/x-www-form-urlencoded", calls[0].Header.Get("Content-Type"))

	require.Len(t, mt.Uncalled(), 1)
	assert.Equal(t, http.MethodGet, mt.Uncalled()[0].Method)
}

func TestMockTransport_RequiredFailsOnUnknown(t *testing.T) {
	NewMockTransport(true).Install(t)
	_, err := shophttp.Get("https://nowhere.test/").Send()
	assert.Error(t, err)
}

func TestMockTransport_Lenient404(t *testing.T) {
	NewMockTransport(false).Install(t)
	resp, err := shophttp.Get("https://nowhere.test/").Send()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunDir(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := shophttp.Get("https://upstream.test/ping").Send()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		var up map[string]any
		_ = resp.JSON(&up)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"path": r.URL.Path, "upstream": up})
	})
	RunDir(t, echo, "testdata")
}

func TestLoadScenario_Validation(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.scenario.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"name":"x"}`), 0o644))
	_, err := LoadScenario(p)
	assert.ErrorContains(t, err, "requestUrl is required")
}

package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"db": "ok"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":200,"data":{"db":"ok"}}`, rec.Body.String())
}

func TestErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "bad signature")
	assert.JSONEq(t, `{"status":400,"message":"bad signature"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Unavailable(rec, "database unreachable")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

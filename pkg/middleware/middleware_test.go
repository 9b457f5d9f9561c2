package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/cache"
	"github.com/farmshop/storefront/pkg/crypt"
	"github.com/farmshop/storefront/pkg/ctx"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/reqid"
	"github.com/farmshop/storefront/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusPage struct{}

func (statusPage) Render(w io.Writer, name string, data map[string]any) error {
	_, err := fmt.Fprintf(w, "%s %v", name, data["Status"])
	return err
}

func TestMain(m *testing.M) {
	ctx.SetRenderer(statusPage{})
	m.Run()
}

var ok200 = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	box, err := crypt.New("middleware-test")
	require.NoError(t, err)
	return session.NewManager(cache.NewMemory(), box, session.DefaultOptions())
}

// ─── Recovery ─────────────────────────────────────────────────────────────────

func TestRecovery_RendersErrorPage(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error 500", rec.Body.String())
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

// ─── Logger ───────────────────────────────────────────────────────────────────

func TestLogger_TagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	orig := logger.L
	logger.L = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { logger.L = orig })

	var inner string
	h := reqid.Middleware()(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.WithCtx(r.Context()).Info("inside")
		inner = reqid.FromCtx(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart", nil))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "request_id="+inner))
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=5")
	assert.Contains(t, out, "path=/cart")
}

// ─── Rate limit ───────────────────────────────────────────────────────────────

func TestRateLimiter_PerIP(t *testing.T) {
	l := NewRateLimiter(60, 2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, wait := l.Allow("1.1.1.1")
	assert.False(t, ok)
	assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	ok, _ = l.Allow("2.2.2.2")
	assert.True(t, ok, "other clients have their own bucket")

	now = now.Add(time.Second)
	ok, _ = l.Allow("1.1.1.1")
	assert.True(t, ok, "one token refills per second at 60/min")
}

func TestRateLimiter_Middleware(t *testing.T) {
	h := NewRateLimiter(1, 1).Middleware(ok200)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("x")
		require.True(t, ok)
	}
}

func TestRateLimiter_SweepsIdle(t *testing.T) {
	l := NewRateLimiter(60, 1)
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	for i := 0; i < sweepEvery; i++ {
		l.Allow("new")
	}
	_, present := l.visitors["old"]
	assert.False(t, present)
}

// ─── CSRF ─────────────────────────────────────────────────────────────────────

func TestCSRF(t *testing.T) {
	m := newSessions(t)
	h := m.Middleware(CSRF("/webhooks/")(ok200))

	// fetch a token the way a rendered form would
	var token string
	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = session.FromCtx(r).CSRFToken()
		require.NoError(t, session.FromCtx(r).Save(w))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	post := func(path string, form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("/cart", url.Values{CSRFField: {token}}))
	assert.Equal(t, http.StatusForbidden, post("/cart", url.Values{CSRFField: {"forged"}}))
	assert.Equal(t, http.StatusForbidden, post("/cart", url.Values{}))
	assert.Equal(t, http.StatusOK, post("/webhooks/stripe", url.Values{}))

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusOK, get.Code)
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestAuthenticate(t *testing.T) {
	m := newSessions(t)
	loader := func(_ context.Context, id uint) (*auth.Principal, error) {
		switch id {
		case 1:
			return &auth.Principal{ID: 1, Email: "admin@farm.lt", Admin: true}, nil
		case 5:
			return nil, errors.New("db down")
		}
		return nil, ErrUnknownPrincipal
	}

	login := func(uid uint) *http.Cookie {
		rec := httptest.NewRecorder()
		m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session.FromCtx(r).Set(SessionUserKey, uid)
			require.NoError(t, session.FromCtx(r).Save(w))
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec.Result().Cookies()[0]
	}

	var got *auth.Principal
	var stillThere bool
	h := m.Middleware(Authenticate(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
		_, stillThere = session.FromCtx(r).GetUint(SessionUserKey)
	})))
	serve := func(c *http.Cookie) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c != nil {
			req.AddCookie(c)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	serve(nil)
	assert.Nil(t, got)

	serve(login(1))
	require.NotNil(t, got)
	assert.Equal(t, "admin@farm.lt", got.Email)

	serve(login(9))
	assert.Nil(t, got)
	assert.False(t, stillThere, "stale user id is dropped")

	serve(login(5))
	assert.Nil(t, got)
	assert.True(t, stillThere, "lookup errors keep the session")
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(ok200)
	for _, tc := range []struct {
		name string
		p    *auth.Principal
		want int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"customer", &auth.Principal{ID: 3}, http.StatusForbidden},
		{"admin", &auth.Principal{ID: 1, Admin: true}, http.StatusOK},
	} {
		tc := tc // per-iteration copy; go directive is 1.21
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/manager", nil)
			if tc.p != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), tc.p))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSOptions([]string{"https://farm.lt"}))(ok200)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://farm.lt")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://farm.lt", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

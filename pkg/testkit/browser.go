package testkit

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Browser drives a handler over a real listener with a cookie jar and
// without following redirects, so tests can assert on each hop.
type Browser struct {
	t      testing.TB
	srv    *httptest.Server
	client *http.Client
}

// Page is one response as seen by the Browser.
type Page struct {
	Status   int
	Body     string
	Location string
	Header   http.Header
}

func NewBrowser(t testing.TB, h http.Handler) *Browser {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &Browser{
		t:   t,
		srv: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// URL returns the absolute URL of path on the test server.
func (b *Browser) URL(path string) string { return b.srv.URL + path }

func (b *Browser) Get(path string) *Page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.URL(path), nil)
	require.NoError(b.t, err)
	return b.Do(req)
}

func (b *Browser) PostForm(path string, form url.Values) *Page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.URL(path), strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.Do(req)
}

func (b *Browser) Do(req *http.Request) *Page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)

	loc := resp.Header.Get("Location")
	if u, err := url.Parse(loc); err == nil && loc != "" && u.Host == strings.TrimPrefix(b.srv.URL, "http://") {
		loc = u.RequestURI()
	}
	return &Page{Status: resp.StatusCode, Body: string(raw), Location: loc, Header: resp.Header}
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// CSRFToken extracts the hidden form token from a rendered page.
func (p *Page) CSRFToken() string {
	m := csrfField.FindStringSubmatch(p.Body)
	if m == nil {
		return ""
	}
	return m[1]
}

// Package session keeps per-visitor state in a cache.Store. The cookie holds
// only the session id, sealed with APP_KEY.
//
//	r.Use(manager.Middleware)
//
//	sess := session.FromCtx(r)
//	sess.Set("uid", user.ID)
//	sess.Save(w)
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/farmshop/storefront/pkg/cache"
	"github.com/farmshop/storefront/pkg/crypt"
	"github.com/farmshop/storefront/pkg/logger"
)

type Options struct {
	CookieName string
	TTL        time.Duration
	HTTPOnly   bool
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

func DefaultOptions() Options {
	return Options{
		CookieName: "farmshop_session",
		TTL:        2 * time.Hour,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// Manager loads and persists sessions.
type Manager struct {
	store cache.Store
	box   *crypt.Box
	opts  Options
}

func NewManager(store cache.Store, box *crypt.Box, opts Options) *Manager {
	return &Manager{store: store, box: box, opts: opts}
}

func storeKey(id string) string { return "session:" + id }

func newID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("session: random id: %v", err))
	}
	return hex.EncodeToString(b)
}

// Session is the in-request handle. It is not safe for concurrent use.
type Session struct {
	m        *Manager
	id       string
	data     map[string]any
	fresh    bool // cookie must be (re)issued
	changed  bool
	obsolete []string
}

func (s *Session) ID() string { return s.id }

func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.changed = true
}

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.data[key].(string)
	return v, ok
}

// GetUint reads a numeric value. JSON round-trips turn numbers into
// float64, so both representations are accepted.
func (s *Session) GetUint(key string) (uint, bool) {
	switch n := s.data[key].(type) {
	case float64:
		if n <= 0 {
			return 0, false
		}
		return uint(n), true
	case uint:
		return n, n > 0
	case int:
		return uint(n), n > 0
	}
	return 0, false
}

func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.changed = true
	}
}

// Flash queues a message for the next rendered page.
func (s *Session) Flash(message string) {
	msgs, _ := s.data["_flash"].([]any)
	s.Set("_flash", append(msgs, message))
}

// Flashes returns queued messages and clears them.
func (s *Session) Flashes() []string {
	raw, ok := s.data["_flash"].([]any)
	if !ok {
		return nil
	}
	s.Delete("_flash")
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		if str, ok := m.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// CSRFToken returns the form token bound to this session, minting one on
// first use.
func (s *Session) CSRFToken() string {
	if tok, ok := s.GetString("_csrf"); ok && tok != "" {
		return tok
	}
	tok := newID()
	s.Set("_csrf", tok)
	return tok
}

// Regenerate moves the data to a new id. Call it on login.
func (s *Session) Regenerate() {
	if !s.fresh {
		s.obsolete = append(s.obsolete, s.id)
	}
	s.id = newID()
	s.fresh = true
	s.changed = true
}

// Invalidate clears all data and issues a new id. Used on logout.
func (s *Session) Invalidate() {
	s.data = map[string]any{}
	s.Regenerate()
}

// Save persists a changed session and sets the cookie when the id is new.
// It is a no-op for untouched sessions.
func (s *Session) Save(w http.ResponseWriter) error {
	if !s.changed {
		return nil
	}
	ctx := context.Background()
	m := s.m

	if len(s.obsolete) > 0 {
		keys := make([]string, len(s.obsolete))
		for i, id := range s.obsolete {
			keys[i] = storeKey(id)
		}
		_ = m.store.Del(ctx, keys...)
		s.obsolete = nil
	}

	if err := cache.SetJSON(ctx, m.store, storeKey(s.id), s.data, m.opts.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	if s.fresh {
		sealed, err := m.box.Seal([]byte(s.id))
		if err != nil {
			return fmt.Errorf("session: seal cookie: %w", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.opts.CookieName,
			Value:    sealed,
			Path:     m.opts.Path,
			MaxAge:   int(m.opts.TTL.Seconds()),
			HttpOnly: m.opts.HTTPOnly,
			Secure:   m.opts.Secure,
			SameSite: m.opts.SameSite,
		})
		s.fresh = false
	}
	s.changed = false
	return nil
}

// Load resolves the session for r. Unknown, expired or forged cookies get a
// brand-new empty session.
func (m *Manager) Load(r *http.Request) *Session {
	if c, err := r.Cookie(m.opts.CookieName); err == nil {
		if raw, err := m.box.Open(c.Value); err == nil {
			id := string(raw)
			var data map[string]any
			ok, err := cache.GetJSON(r.Context(), m.store, storeKey(id), &data)
			if err != nil {
				logger.WithCtx(r.Context()).Warn("session: load failed", "error", err)
			}
			if ok && data != nil {
				return &Session{m: m, id: id, data: data}
			}
		}
	}
	return &Session{m: m, id: newID(), data: map[string]any{}, fresh: true}
}

type ctxKey struct{}

// Middleware injects the session into the request context. Sessions touched
// but not explicitly saved by the handler are persisted when it returns.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.Load(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
		if sess.changed && !sess.fresh {
			if err := sess.Save(w); err != nil {
				logger.WithCtx(r.Context()).Error("session: late save failed", "error", err)
			}
		}
	})
}

// FromCtx returns the request's session, or a detached empty one when the
// middleware is not installed.
func FromCtx(r *http.Request) *Session {
	if s, ok := r.Context().Value(ctxKey{}).(*Session); ok {
		return s
	}
	return &Session{m: &Manager{store: cache.NewMemory(), box: crypt.FromAppKey(), opts: DefaultOptions()}, id: newID(), data: map[string]any{}, fresh: true}
}

// Package views holds the embedded HTML pages.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"github.com/farmshop/storefront/pkg/logger"
)

//go:embed templates/*.html
var files embed.FS

// shared templates parsed into every page
var shared = []string{"templates/layout.html", "templates/partials.html"}

// URLFunc resolves a named route, e.g. router.URL.
type URLFunc func(name string, params map[string]string) (string, error)

// Views renders pages by name ("index", "cart", ...). It satisfies
// ctx.Renderer.
type Views struct {
	pages map[string]*template.Template
}

// New parses every page against the shared layout.
func New(urlFor URLFunc) (*Views, error) {
	base, err := template.New("base").Funcs(funcs(urlFor)).ParseFS(files, shared...)
	if err != nil {
		return nil, fmt.Errorf("views: parse layout: %w", err)
	}

	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &Views{pages: make(map[string]*template.Template)}
	for _, path := range names {
		if isShared(path) {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.ParseFS(files, path); err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", path, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		v.pages[name] = page
	}
	return v, nil
}

func isShared(path string) bool {
	for _, s := range shared {
		if s == path {
			return true
		}
	}
	return false
}

// Render executes the named page inside the layout.
func (v *Views) Render(w io.Writer, name string, data map[string]any) error {
	page, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("views: unknown page %q", name)
	}
	return page.ExecuteTemplate(w, "layout", data)
}

// Has reports whether a page exists.
func (v *Views) Has(name string) bool {
	_, ok := v.pages[name]
	return ok
}

func funcs(urlFor URLFunc) template.FuncMap {
	return template.FuncMap{
		"money": Money,
		// url "admin.edit" "id" 7
		"url": func(name string, kv ...any) string {
			params := make(map[string]string, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				params[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
			}
			path, err := urlFor(name, params)
			if err != nil {
				logger.Warn("views: url", "route", name, "error", err)
				return "#"
			}
			return path
		},
	}
}

// Money formats an amount with two decimals.
func Money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

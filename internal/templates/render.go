// Package templates handles HTML template rendering for the review page and
// its Datastar SSE fragments.
package templates

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io/fs"
	"sync"

	"github.com/joeblew999/plat-polymer/internal/color"
)

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// legendColor is the swatch colour of a legend group.
	"legendColor": func(legendID string) template.CSS {
		return template.CSS(color.LegendColor(legendID).String())
	},
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		return template.JS(b), err
	},
	"percent": func(value, max int) int {
		if max <= 0 {
			return 0
		}
		return value * 100 / max
	},
}

// Patterns are the template globs parsed from the file system.
var Patterns = []string{"templates/*.html", "templates/fragments/*.html"}

// Renderer manages page and fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, Patterns...)
}

// New creates a renderer over fsys, typically web.FS or os.DirFS of the web
// directory.
func New(fsys fs.FS) (*Renderer, error) {
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload re-parses the templates (useful for dev hot-reload against a
// directory on disk).
func (r *Renderer) Reload(fsys fs.FS) error {
	tmpl, err := parse(fsys)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}

// Package render compiles template source against a data context.
//
// Handlebars sources (.hbs, .handlebars, .html) go through raymond; Go
// templates (.tmpl, .gohtml) go through html/template. Nothing is cached:
// every call parses the source again.
package render

import (
	"bytes"
	"html/template"
	"path"
	"strings"

	"github.com/aymerick/raymond"

	"cardrender/internal/pkg/errors"
)

// Engine names.
const (
	EngineHandlebars = "handlebars"
	EngineGo         = "go"
)

type Renderer struct {
	helpers map[string]any
}

// New returns a Renderer using helpers, or the default set when nil.
func New(helpers map[string]any) *Renderer {
	if helpers == nil {
		helpers = Helpers()
	}
	return &Renderer{helpers: helpers}
}

// EngineFor picks the engine from the template name's extension.
func EngineFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".tmpl", ".gohtml":
		return EngineGo
	default:
		return EngineHandlebars
	}
}

// Render compiles src and executes it with data.
func (r *Renderer) Render(name, src string, data any) (string, error) {
	if EngineFor(name) == EngineGo {
		return r.renderGo(name, src, data)
	}
	return r.renderHandlebars(name, src, data)
}

func (r *Renderer) renderHandlebars(name, src string, data any) (string, error) {
	tpl, err := raymond.Parse(src)
	if err != nil {
		return "", compileError(err, name, "parse template")
	}
	// Helpers live on this template only, never in raymond's global registry.
	tpl.RegisterHelpers(r.helpers)

	out, err := tpl.Exec(data)
	if err != nil {
		return "", compileError(err, name, "execute template")
	}
	return out, nil
}

func (r *Renderer) renderGo(name, src string, data any) (string, error) {
	tpl, err := template.New(name).Funcs(template.FuncMap(r.helpers)).Parse(src)
	if err != nil {
		return "", compileError(err, name, "parse template")
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", compileError(err, name, "execute template")
	}
	return buf.String(), nil
}

func compileError(err error, name, msg string) error {
	return errors.WrapWithCode(err, errors.CodeTemplateCompile, "render."+EngineFor(name), msg).
		WithField("template", name)
}

package mailer

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/osteele/liquid"
)

var ErrInvalidTemplateName = errors.New("invalid template name")

// Renderer loads templates by name from a file system and renders them with Liquid.
// Undefined variables are errors.
type Renderer struct {
	engine *liquid.Engine
	fsys   fs.FS
	cache  sync.Map // map[string]*liquid.Template
}

func NewRenderer(fsys fs.FS) *Renderer {
	engine := liquid.NewEngine()
	engine.StrictVariables()

	return &Renderer{
		engine: engine,
		fsys:   fsys,
	}
}

// DefaultTemplates returns the templates embedded in this package
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(FS, "templates")
	if err != nil {
		// only fails for an invalid path literal
		panic(err)
	}
	return sub
}

// Render returns *TemplateError on any failure
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	tpl, err := r.load(name)
	if err != nil {
		return "", &TemplateError{Template: name, Err: err}
	}

	out, rErr := tpl.RenderString(data)
	if rErr != nil {
		return "", &TemplateError{Template: name, Err: rErr}
	}
	return out, nil
}

func (r *Renderer) load(name string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(name); ok {
		return cached.(*liquid.Template), nil
	}

	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTemplateName, name)
	}

	source, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	tpl, pErr := r.engine.ParseTemplate(source)
	if pErr != nil {
		return nil, fmt.Errorf("failed to parse template: %w", pErr)
	}

	r.cache.Store(name, tpl)
	return tpl, nil
}

package template

import (
	"fmt"

	"github.com/llmspell/llmspell/pkg/registry"
)

// Registry is keyed by template ID, mirroring pkg/tool.Registry's idiom.
type Registry struct {
	base *registry.BaseRegistry[Template]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Template]()}
}

func (r *Registry) Register(t Template) error {
	id := t.Metadata().ID
	if id == "" {
		return fmt.Errorf("template registry: template has no ID")
	}
	return r.base.Register(id, t)
}

func (r *Registry) Get(id string) (Template, bool) {
	return r.base.Get(id)
}

func (r *Registry) List() []Template {
	return r.base.List()
}

// ByCategory returns every registered template whose Metadata().Category
// matches, or every template when category is empty.
func (r *Registry) ByCategory(category string) []Template {
	if category == "" {
		return r.base.List()
	}
	out := make([]Template, 0)
	for _, t := range r.base.List() {
		if t.Metadata().Category == category {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Remove(id string) error {
	return r.base.Remove(id)
}

func (r *Registry) Count() int {
	return r.base.Count()
}

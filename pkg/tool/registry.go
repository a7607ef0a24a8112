package tool

import (
	"fmt"

	"github.com/llmspell/llmspell/pkg/registry"
)

// entry pairs a registered tool with its registration identity so a
// re-registration under the same name can be checked for Conflict.
type entry struct {
	tool    Tool
	version string
}

// Registry is keyed by tool name. Registration is idempotent per name:
// registering the same (name, version) twice succeeds silently;
// re-registering a name with a different version fails with Conflict.
// Lookup returns a shared handle (the Tool implementations in this package
// are stateless or internally synchronized, so sharing is safe).
type Registry struct {
	base *registry.BaseRegistry[entry]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[entry]()}
}

// ErrConflict is returned when a name is re-registered with a different
// identity.
type ErrConflict struct {
	Name string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("tool %q already registered with a different identity", e.Name)
}

func (r *Registry) Register(t Tool) error {
	if err := ValidateSchemaInvariants(t.Schema()); err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}
	meta := t.Metadata()
	if existing, ok := r.base.Get(meta.Name); ok {
		if existing.version == meta.Version {
			return nil
		}
		return &ErrConflict{Name: meta.Name}
	}
	return r.base.Register(meta.Name, entry{tool: t, version: meta.Version})
}

func (r *Registry) Get(name string) (Tool, bool) {
	e, ok := r.base.Get(name)
	if !ok {
		return nil, false
	}
	return e.tool, true
}

func (r *Registry) List() []Tool {
	entries := r.base.List()
	out := make([]Tool, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.tool)
	}
	return out
}

// Filtered returns the tools matching every predicate, grounded on
// kadirpekel-hector's Toolset-by-Predicate filtering idiom.
func (r *Registry) Filtered(predicates ...Predicate) []Tool {
	all := r.List()
	out := make([]Tool, 0, len(all))
	for _, t := range all {
		if And(predicates...)(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Remove(name string) error {
	return r.base.Remove(name)
}

func (r *Registry) Count() int {
	return r.base.Count()
}

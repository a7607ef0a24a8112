package template

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONProvider implements pkg/runtime.TemplateProvider over a Registry,
// marshaling to the wire shapes spec.md §6 defines for handle_template_*.
type JSONProvider struct {
	registry *Registry
}

func NewJSONProvider(registry *Registry) *JSONProvider {
	return &JSONProvider{registry: registry}
}

type listEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Version     string   `json:"version"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
}

func (p *JSONProvider) List(category string) (json.RawMessage, error) {
	templates := p.registry.ByCategory(category)
	entries := make([]listEntry, 0, len(templates))
	for _, t := range templates {
		entries = append(entries, toListEntry(t.Metadata()))
	}
	return json.Marshal(entries)
}

type infoEntry struct {
	listEntry
	Schema json.RawMessage `json:"schema,omitempty"`
}

func (p *JSONProvider) Info(id string, withSchema bool) (json.RawMessage, error) {
	t, ok := p.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("template: %q not found", id)
	}
	info := infoEntry{listEntry: toListEntry(t.Metadata())}
	if withSchema {
		info.Schema = t.ConfigSchema()
	}
	return json.Marshal(info)
}

func (p *JSONProvider) Exec(ctx context.Context, id string, params json.RawMessage) (json.RawMessage, error) {
	t, ok := p.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("template: %q not found", id)
	}
	out, err := t.Execute(ctx, params, Context{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (p *JSONProvider) Search(query, category string) (json.RawMessage, error) {
	templates := p.registry.ByCategory(category)
	entries := make([]listEntry, 0)
	for _, t := range templates {
		m := t.Metadata()
		if matchesQuery(m, query) {
			entries = append(entries, toListEntry(m))
		}
	}
	return json.Marshal(entries)
}

func (p *JSONProvider) Schema(id string) (json.RawMessage, error) {
	t, ok := p.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("template: %q not found", id)
	}
	return t.ConfigSchema(), nil
}

func toListEntry(m Metadata) listEntry {
	return listEntry{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		Version:     m.Version,
		Author:      m.Author,
		Tags:        m.Tags,
	}
}

func matchesQuery(m Metadata, query string) bool {
	if query == "" {
		return true
	}
	for _, field := range []string{m.Name, m.Description, m.ID} {
		if containsFold(field, query) {
			return true
		}
	}
	for _, tag := range m.Tags {
		if containsFold(tag, query) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

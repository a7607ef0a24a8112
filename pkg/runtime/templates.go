package runtime

import (
	"context"
	"encoding/json"

	"github.com/llmspell/llmspell/pkg/errs"
)

// The template-operation JSON surface from spec.md §4.7/§6: called by the
// host, never by scripts directly. Each method delegates to the
// TemplateProvider (pkg/template, C8) supplied via WithTemplateProvider; a
// Runtime built without one still implements the full surface, returning a
// NotImplemented envelope rather than panicking.

func (r *Runtime) HandleTemplateList(category string) (json.RawMessage, error) {
	if r.templates == nil {
		return nil, errs.NotImplemented("template_list")
	}
	return r.templates.List(category)
}

func (r *Runtime) HandleTemplateInfo(id string, withSchema bool) (json.RawMessage, error) {
	if r.templates == nil {
		return nil, errs.NotImplemented("template_info")
	}
	return r.templates.Info(id, withSchema)
}

func (r *Runtime) HandleTemplateExec(ctx context.Context, id string, params json.RawMessage) (json.RawMessage, error) {
	if r.templates == nil {
		return nil, errs.NotImplemented("template_exec")
	}
	return r.templates.Exec(ctx, id, params)
}

func (r *Runtime) HandleTemplateSearch(query, category string) (json.RawMessage, error) {
	if r.templates == nil {
		return nil, errs.NotImplemented("template_search")
	}
	return r.templates.Search(query, category)
}

func (r *Runtime) HandleTemplateSchema(id string) (json.RawMessage, error) {
	if r.templates == nil {
		return nil, errs.NotImplemented("template_schema")
	}
	return r.templates.Schema(id)
}

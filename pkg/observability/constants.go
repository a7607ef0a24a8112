package observability

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrComponentID    = "component.id"
	AttrComponentType  = "component.type"
	AttrToolName       = "tool.name"
	AttrHookPoint      = "hook.point"
	AttrHookName       = "hook.name"
	AttrTenantID       = "tenant.id"
	AttrPrincipal      = "principal"
	AttrEngineName     = "engine.name"
	AttrTemplateID     = "template.id"
	AttrErrorType      = "error.type"
	AttrErrorKind      = "error.kind"
	AttrStatusCode     = "http.status_code"

	SpanScriptExecution = "runtime.script_execution"
	SpanToolExecution   = "runtime.tool_execution"
	SpanHookDispatch    = "runtime.hook_dispatch"
	SpanTemplateExec    = "runtime.template_execution"
	SpanGraphQuery      = "runtime.graph_query"
	SpanAccessDecision  = "runtime.access_decision"

	DefaultServiceName  = "llmspell"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)

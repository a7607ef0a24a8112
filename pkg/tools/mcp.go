package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/tool"
)

// MCPSourceConfig configures a stdio-transport MCP server as a tool source,
// grounded on kadirpekel-hector's pkg/tool/mcptoolset package (stdio branch
// only — spec.md's tool model has no notion of an HTTP/SSE transport, so
// that half of the teacher's toolset is not carried forward).
type MCPSourceConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Filter  []string
}

// MCPSource connects to an external MCP server over stdio and exposes its
// tools as this package's Tool capability set, per spec.md §4.3's note that
// a tool is "variant over these implementations... and others" — MCP-backed
// tools are discovered rather than statically declared.
type MCPSource struct {
	cfg    MCPSourceConfig
	client *client.Client
}

func NewMCPSource(cfg MCPSourceConfig) *MCPSource {
	return &MCPSource{cfg: cfg}
}

// Connect starts the subprocess, performs the MCP handshake, and lists the
// server's tools. It must be called once before Close.
func (s *MCPSource) Connect(ctx context.Context) ([]tool.Tool, error) {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, envSlice(s.cfg.Env), s.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to create client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: failed to start subprocess: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "llmspell", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("mcp: handshake failed: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("mcp: failed to list tools: %w", err)
	}

	var filter map[string]bool
	if len(s.cfg.Filter) > 0 {
		filter = make(map[string]bool, len(s.cfg.Filter))
		for _, n := range s.cfg.Filter {
			filter[n] = true
		}
	}

	var tools []tool.Tool
	for _, mt := range listResp.Tools {
		if filter != nil && !filter[mt.Name] {
			continue
		}
		schemaJSON, err := json.Marshal(mt.InputSchema)
		if err != nil {
			continue
		}
		validator, err := tool.NewExternalSchemaValidator(schemaJSON)
		if err != nil {
			// A server that advertises a schema this package's JSON Schema
			// implementation cannot compile is skipped rather than failing
			// the whole source, per spec.md's tolerance for partial discovery.
			continue
		}
		tools = append(tools, &mcpTool{
			client:    mcpClient,
			name:      mt.Name,
			desc:      mt.Description,
			validator: validator,
		})
	}

	s.client = mcpClient
	return tools, nil
}

func (s *MCPSource) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// mcpTool adapts one externally-discovered MCP tool to the Tool capability
// set. Its schema is validated by JSON Schema (the tool never had a native
// Parameter list) rather than tool.ValidateAgainstSchema.
type mcpTool struct {
	client    *client.Client
	name      string
	desc      string
	validator *tool.ExternalSchemaValidator
}

func (m *mcpTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: m.name, Version: "mcp"}
}

func (m *mcpTool) Schema() tool.Schema { return tool.Schema{} }

func (m *mcpTool) Category() tool.Category           { return tool.CategoryNetwork }
func (m *mcpTool) SecurityLevel() tool.SecurityLevel { return tool.SecurityRestricted }
func (m *mcpTool) SecurityRequirements() []string    { return []string{"network"} }

func (m *mcpTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: 30 * time.Second}
}

func (m *mcpTool) ValidateInput(input tool.Input) error {
	if err := m.validator.Validate(input); err != nil {
		return errs.Validation("input", err.Error())
	}
	return nil
}

func (m *mcpTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	args := make(map[string]any, len(input))
	for k, raw := range input {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return errorOutput("call", errs.Validation(k, "invalid JSON value")), nil
		}
		args[k] = v
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = m.name
	req.Params.Arguments = args

	bgCtx := context.Background()
	if ctx != nil && ctx.Ctx != nil {
		bgCtx = ctx.Ctx
	}
	resp, err := m.client.CallTool(bgCtx, req)
	if err != nil {
		return errorOutput("call", errs.Component(fmt.Sprintf("mcp call failed: %v", err))), nil
	}

	if resp.IsError {
		msg := "unknown MCP error"
		for _, c := range resp.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				msg = tc.Text
				break
			}
		}
		return errorOutput("call", errs.Component(msg)), nil
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	var result any
	switch len(texts) {
	case 0:
		result = nil
	case 1:
		result = texts[0]
	default:
		result = texts
	}
	return tool.Output{Success: true, Operation: "call", Message: "mcp tool invoked", Result: result}, nil
}

package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmspell/llmspell/pkg/tool"
)

// componentRegistry adapts pkg/tool.Registry + pkg/executor.Executor to the
// narrow engine.ComponentRegistry surface a ScriptEngine is injected with.
// Script tool calls therefore run through the exact same six-step pipeline
// (validate, tracker, hooks, timeout, envelope) a host-initiated tool call
// does -- a script gets no privileged shortcut around C4/C5.
type componentRegistry struct {
	reg  *tool.Registry
	exec executionRunner
}

// executionRunner is satisfied by *executor.Executor; kept as an interface
// here so componentRegistry tests can swap in a trivial stub.
type executionRunner interface {
	Run(ctx context.Context, t tool.Tool, input tool.Input, correlationID string) (tool.Output, error)
}

func (c *componentRegistry) ListTools() []string {
	tools := c.reg.List()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Metadata().Name)
	}
	return names
}

func (c *componentRegistry) InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := c.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}

	var toolInput tool.Input
	if len(input) > 0 {
		if err := json.Unmarshal(input, &toolInput); err != nil {
			return nil, fmt.Errorf("tool %q: decoding input: %w", name, err)
		}
	}

	out, err := c.exec.Run(ctx, t, toolInput, "")
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

package tools

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/sandbox"
	"github.com/llmspell/llmspell/pkg/tool"
)

// Process executor caps, per spec.md §4.3: bounded stdout/stderr, hard
// timeout, disabled stdin.
const (
	maxProcessOutputBytes = 1 << 20
	defaultProcessTimeout = 10 * time.Second
)

// ProcessExecutorTool runs a sandboxed external command. The deny/allow-list
// check, shell-metacharacter rejection, and environment scrubbing are
// delegated to sandbox.ProcessSandbox (C2); this tool owns process spawning,
// output capping, and the timeout/reap contract.
type ProcessExecutorTool struct {
	sb      *sandbox.ProcessSandbox
	timeout time.Duration
}

func NewProcessExecutorTool(sb *sandbox.ProcessSandbox, timeout time.Duration) *ProcessExecutorTool {
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	return &ProcessExecutorTool{sb: sb, timeout: timeout}
}

func (t *ProcessExecutorTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: "process_executor", Version: "1.0.0"}
}

func (t *ProcessExecutorTool) Schema() tool.Schema {
	return tool.Schema{Parameters: []tool.Parameter{
		{Name: "command", Type: tool.TypeString, Required: true},
		{Name: "args", Type: tool.TypeArray, Required: false, ElementType: tool.TypeString},
	}}
}

func (t *ProcessExecutorTool) Category() tool.Category           { return tool.CategorySystem }
func (t *ProcessExecutorTool) SecurityLevel() tool.SecurityLevel { return tool.SecurityPrivileged }
func (t *ProcessExecutorTool) SecurityRequirements() []string    { return []string{"process_execution"} }

func (t *ProcessExecutorTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: t.timeout, MaxOutputBytes: maxProcessOutputBytes}
}

func (t *ProcessExecutorTool) ValidateInput(input tool.Input) error {
	return tool.ValidateAgainstSchema(t.Schema(), input)
}

type processParams struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func (t *ProcessExecutorTool) Execute(toolCtx *tool.Context, input tool.Input) (tool.Output, error) {
	var p processParams
	if err := decodeInput(input, &p); err != nil {
		return errorOutput("execute", err), nil
	}
	base, err := t.sb.ValidateCommand(p.Command)
	if err != nil {
		return errorOutput("execute", err), nil
	}
	for _, a := range p.Args {
		for _, meta := range []string{";", "|", "&", "`", "$", "\n"} {
			if contains(a, meta) {
				return errorOutput("execute", errs.Security("argument contains disallowed character sequence")), nil
			}
		}
	}

	parent := context.Background()
	if toolCtx != nil && toolCtx.Ctx != nil {
		parent = toolCtx.Ctx
	}
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, base, p.Args...)
	cmd.Stdin = nil
	cmd.Env = t.sb.ScrubEnvironment(os.Environ())
	if cmd.Env == nil {
		// A nil Env would make exec inherit the whole parent environment.
		cmd.Env = []string{}
	}

	var stdout, stderr boundedBuffer
	stdout.limit = maxProcessOutputBytes
	stderr.limit = maxProcessOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	timedOut := ctx.Err() == context.DeadlineExceeded
	if timedOut {
		return tool.Output{
			Success:   false,
			Operation: "execute",
			Message:   "process timed out",
			Result: map[string]any{
				"exit_code":       nil,
				"timed_out":       true,
				"stdout":          stdout.String(),
				"stderr":          stderr.String() + "\n[llmspell: process killed after exceeding the configured timeout]",
			},
		}, nil
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				exitCode = status.ExitStatus()
			} else {
				exitCode = 1
			}
		} else {
			return errorOutput("execute", errs.Storage(runErr)), nil
		}
	}

	return tool.Output{
		Success:   exitCode == 0,
		Operation: "execute",
		Message:   "process completed",
		Result: map[string]any{
			"exit_code": exitCode,
			"timed_out": false,
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
		},
	}, nil
}

func contains(haystack, needle string) bool {
	return bytes.Contains([]byte(haystack), []byte(needle))
}

// boundedBuffer caps how many bytes of a process's stdout/stderr are
// retained, per spec.md §4.3's "bounds stdout/stderr bytes".
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
	} else {
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }

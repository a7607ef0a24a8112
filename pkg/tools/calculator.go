// Package tools implements the concrete tool variants named in spec.md §4.3:
// sandboxed file operations, a sandboxed process executor, a calculator, and
// an image metadata inspector. Each implements pkg/tool.Tool.
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/tool"
)

// Complexity analyzer limits, grounded on
// original_source/llmspell-tools/src/util/calculator.rs's two-stage
// ExpressionAnalyzer/EnhancedExpressionAnalyzer (length/nesting/operator-count
// structural limits, then a pattern blacklist) and spec.md §4.3/§8's boundary
// test ("length exactly = cap -> accepted; cap+1 -> rejected").
const (
	maxExpressionLength = 256
	maxNestingDepth     = 32
	maxOperatorCount    = 64
	maxLiteralMagnitude = 1e15
)

var patternBlacklist = []string{"+++", "---", "***", "((((", "))))"}

// CalculatorTool evaluates an arithmetic expression over a variable binding.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (t *CalculatorTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: "calculator", Version: "1.0.0"}
}

func (t *CalculatorTool) Schema() tool.Schema {
	return tool.Schema{Parameters: []tool.Parameter{
		{Name: "operation", Type: tool.TypeEnum, Required: true, Constraint: tool.Constraint{Enum: []string{"evaluate"}}},
		{Name: "input", Type: tool.TypeString, Required: true, Constraint: tool.Constraint{MaxLength: intPtr(maxExpressionLength)}},
		{Name: "variables", Type: tool.TypeObject, Required: false},
	}}
}

func (t *CalculatorTool) Category() tool.Category           { return tool.CategoryUtility }
func (t *CalculatorTool) SecurityLevel() tool.SecurityLevel { return tool.SecuritySafe }
func (t *CalculatorTool) SecurityRequirements() []string    { return nil }

func (t *CalculatorTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: 500 * time.Millisecond, MaxMemoryBytes: 1 << 20}
}

func (t *CalculatorTool) ValidateInput(input tool.Input) error {
	return tool.ValidateAgainstSchema(t.Schema(), input)
}

type calculatorParams struct {
	Operation string             `json:"operation"`
	Input     string             `json:"input"`
	Variables map[string]float64 `json:"variables"`
}

// checkStructuralLimits is the calculator's first analyzer stage.
func checkStructuralLimits(expr string) error {
	if len(expr) > maxExpressionLength {
		return errs.Validation("input", fmt.Sprintf("expression exceeds maximum length of %d", maxExpressionLength))
	}
	depth, maxDepth := 0, 0
	operators := 0
	for _, r := range expr {
		switch r {
		case '(':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')':
			depth--
		case '+', '-', '*', '/', '%', '^':
			operators++
		}
	}
	if maxDepth > maxNestingDepth {
		return errs.Validation("input", "expression nesting depth exceeds the configured limit")
	}
	if operators > maxOperatorCount {
		return errs.Validation("input", "expression operator count exceeds the configured limit")
	}
	return nil
}

// checkPatternBlacklist is the calculator's second analyzer stage.
func checkPatternBlacklist(expr string) error {
	for _, pattern := range patternBlacklist {
		if strings.Contains(expr, pattern) {
			return errs.Validation("input", fmt.Sprintf("expression matches a disallowed pattern %q", pattern))
		}
	}
	return nil
}

func (t *CalculatorTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	var params calculatorParams
	if err := decodeInput(input, &params); err != nil {
		return errorOutput("evaluate", err), nil
	}

	if err := checkStructuralLimits(params.Input); err != nil {
		return errorOutput("evaluate", err), nil
	}
	if err := checkPatternBlacklist(params.Input); err != nil {
		return errorOutput("evaluate", err), nil
	}

	resultCh := make(chan evalResult, 1)
	go func() {
		v, err := evaluateExpression(params.Input, params.Variables)
		resultCh <- evalResult{v, err}
	}()

	var done <-chan struct{}
	if ctx != nil && ctx.Ctx != nil {
		done = ctx.Ctx.Done()
	}
	select {
	case r := <-resultCh:
		if r.err != nil {
			return errorOutput("evaluate", errs.Validation("input", r.err.Error())), nil
		}
		return successOutputForNumber(r.value, ctx), nil
	case <-done:
		return errorOutput("evaluate", errs.Validation("input", "expression evaluation canceled")), nil
	case <-time.After(200 * time.Millisecond):
		return errorOutput("evaluate", errs.Validation("input", "expression evaluation timed out")), nil
	}
}

type evalResult struct {
	value float64
	err   error
}

func successOutputForNumber(v float64, ctx *tool.Context) tool.Output {
	resultType := "float"
	var resultValue any = v
	if math.IsInf(v, 1) {
		resultType = "special"
		resultValue = "Infinity"
	} else if math.IsInf(v, -1) {
		resultType = "special"
		resultValue = "-Infinity"
	} else if math.IsNaN(v) {
		resultType = "special"
		resultValue = "NaN"
	}
	out := tool.Output{
		Success:   true,
		Operation: "evaluate",
		Message:   "expression evaluated",
		Result: map[string]any{
			"result":      resultValue,
			"result_type": resultType,
		},
	}
	if ctx != nil && ctx.Tracker != nil {
		m := ctx.Tracker.Metrics()
		out.ResourceUsage = &tool.ResourceUsage{MemoryBytes: m.MemoryBytes, CPUTimeMs: m.CPUTimeMs, OperationsCount: m.OperationsCount}
	}
	return out
}

func errorOutput(op string, err error) tool.Output {
	e, ok := errs.As(err)
	kind := "application"
	msg := err.Error()
	field := ""
	if ok {
		kind = string(e.Kind)
		msg = e.Message
		field = e.Field
	}
	return tool.Output{
		Success:   false,
		Operation: op,
		Message:   msg,
		Error:     &tool.OutputError{Message: msg, Field: field, Kind: kind},
	}
}

func decodeInput(input tool.Input, v any) error {
	obj := make(map[string]json.RawMessage, len(input))
	for k, raw := range input {
		obj[k] = raw
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

func intPtr(i int) *int { return &i }

// evaluateExpression is a small recursive-descent evaluator for arithmetic
// expressions over +,-,*,/,%,^ with parentheses and a variable binding.
// There is no arithmetic-expression-evaluator library anywhere in the example
// pack (see DESIGN.md); this is exactly the kind of small, security-sensitive
// parser the original hand-rolls behind a DoS-protected analyzer rather than
// importing a general-purpose expression engine for.
func evaluateExpression(expr string, vars map[string]float64) (float64, error) {
	p := &exprParser{input: []rune(expr), vars: vars}
	p.skipSpace()
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character at position %d", p.pos)
	}
	if math.Abs(v) > maxLiteralMagnitude && !math.IsInf(v, 0) {
		return 0, fmt.Errorf("result magnitude exceeds configured limit")
	}
	return v, nil
}

type exprParser struct {
	input []rune
	pos   int
	vars  map[string]float64
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() rune {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and - (lowest precedence).
func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

// parseTerm handles *, /, % (middle precedence).
func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v /= rhs
		case '%':
			p.pos++
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v = math.Mod(v, rhs)
		default:
			return v, nil
		}
	}
}

// parsePower handles ^ (right-associative, highest precedence).
func (p *exprParser) parsePower() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() == '^' {
		p.pos++
		rhs, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, rhs), nil
	}
	return v, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	if p.peek() == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	if p.isDigitStart() {
		for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
			p.pos++
		}
		var v float64
		if _, err := fmt.Sscanf(string(p.input[start:p.pos]), "%g", &v); err != nil {
			return 0, fmt.Errorf("invalid number literal")
		}
		return v, nil
	}
	if isLetter(p.peek()) {
		for p.pos < len(p.input) && (isLetter(p.input[p.pos]) || isDigit(p.input[p.pos]) || p.input[p.pos] == '_') {
			p.pos++
		}
		name := string(p.input[start:p.pos])
		v, ok := p.vars[name]
		if !ok {
			return 0, fmt.Errorf("unknown variable %q", name)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unexpected character at position %d", p.pos)
}

func (p *exprParser) isDigitStart() bool {
	return isDigit(p.peek())
}

func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

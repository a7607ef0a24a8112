package hook

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// defaultSensitiveNames mirrors
// original_source/llmspell-hooks/src/builtin/security.rs's
// SecurityConfig::default sensitive_parameters set.
var defaultSensitiveNames = []string{
	"password", "token", "key", "secret", "api_key", "auth", "authorization",
}

// SecuritySeverity mirrors the Rust original's SecuritySeverity enum.
type SecuritySeverity string

const (
	SeverityInfo     SecuritySeverity = "info"
	SeverityLow      SecuritySeverity = "low"
	SeverityMedium   SecuritySeverity = "medium"
	SeverityHigh     SecuritySeverity = "high"
	SeverityCritical SecuritySeverity = "critical"
)

// SecurityEvent is an audit record emitted by SecurityHook.
type SecurityEvent struct {
	Timestamp     time.Time
	Point         Point
	ComponentID   ComponentID
	CorrelationID string
	Severity      SecuritySeverity
	Description   string
	Blocked       bool
}

// SecurityConfig configures the built-in SecurityHook, per spec.md §4.4 and
// the Rust original's SecurityConfig.
type SecurityConfig struct {
	MaxParameterBytes  int
	SensitiveNames     []string
	BlockOnViolations  bool
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxParameterBytes: 10_000,
		SensitiveNames:    append([]string(nil), defaultSensitiveNames...),
		BlockOnViolations: false,
	}
}

// SecurityHook pre-runs with PriorityHighest, validates parameter sizes,
// redacts sensitive values, and emits structured security events, per
// spec.md §4.4.
type SecurityHook struct {
	cfg       SecurityConfig
	sensitive map[string]bool

	mu     sync.Mutex
	events []SecurityEvent
}

func NewSecurityHook(cfg SecurityConfig) *SecurityHook {
	sensitive := make(map[string]bool, len(cfg.SensitiveNames))
	for _, n := range cfg.SensitiveNames {
		sensitive[strings.ToLower(n)] = true
	}
	return &SecurityHook{cfg: cfg, sensitive: sensitive}
}

func (h *SecurityHook) Metadata() Metadata {
	return Metadata{
		Name:     "security",
		Priority: PriorityHighest,
		Points: []Point{
			PointBeforeToolExecution, PointBeforeAgentExecution,
			PointBeforeStateWrite, PointBeforeStateRead,
		},
	}
}

func (h *SecurityHook) ShouldExecute(ctx *Context) bool { return true }

func (h *SecurityHook) Execute(ctx *Context) (Result, error) {
	violation := ""
	for key, raw := range ctx.Data {
		if len(raw) > h.cfg.MaxParameterBytes {
			violation = "parameter " + key + " exceeds the configured size ceiling"
			break
		}
	}

	redacted := make(map[string]json.RawMessage, len(ctx.Data))
	for key, raw := range ctx.Data {
		if h.sensitive[strings.ToLower(key)] {
			redacted[key] = json.RawMessage(`"***REDACTED***"`)
		} else {
			redacted[key] = raw
		}
	}

	severity := SeverityInfo
	description := "parameter validation passed"
	blocked := false
	if violation != "" {
		severity = SeverityMedium
		description = violation
		blocked = h.cfg.BlockOnViolations
	}

	h.mu.Lock()
	h.events = append(h.events, SecurityEvent{
		Timestamp: time.Now(), Point: ctx.Point, ComponentID: ctx.ComponentID,
		CorrelationID: ctx.CorrelationID, Severity: severity, Description: description, Blocked: blocked,
	})
	h.mu.Unlock()

	if blocked {
		return Cancel("Security violation detected"), nil
	}
	if violation != "" {
		return Modified(redacted), nil
	}
	return Continue(), nil
}

// Events returns a snapshot of recorded security events, newest last.
func (h *SecurityHook) Events() []SecurityEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SecurityEvent, len(h.events))
	copy(out, h.events)
	return out
}

var _ Hook = (*SecurityHook)(nil)

// Package sandbox implements the path-traversal-safe filesystem view and
// process-execution allow/deny lists described in spec.md §4.2. The
// structural approach (reject shell metacharacters before resolution, clear
// the environment by default) is modeled on kadirpekel-hector's
// pkg/tools/command.go, tightened so the deny-list is always authoritative
// and the environment is scrubbed unconditionally rather than only when an
// allow-list is configured.
package sandbox

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/llmspell/llmspell/pkg/errs"
)

func resolveSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// shellMetacharacters are rejected in raw command strings before any path or
// executable resolution is attempted.
var shellMetacharacters = []string{";", "|", "&", "`", "$", "..", "\n"}

// FileSandbox validates filesystem paths against one or more declared roots.
type FileSandbox struct {
	roots        []string
	denyPatterns []string
}

func NewFileSandbox(roots []string, denyPatterns []string) *FileSandbox {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		if a, err := filepath.Abs(r); err == nil {
			abs = append(abs, filepath.Clean(a))
		}
	}
	return &FileSandbox{roots: abs, denyPatterns: denyPatterns}
}

// ValidatePath normalizes input, rejects traversal outside the sandbox's
// declared roots (after symlink resolution), rejects Windows device
// namespaces and null bytes, and rejects host-defined deny patterns. It
// returns the resolved, safe absolute path.
func (s *FileSandbox) ValidatePath(input string) (string, error) {
	if strings.ContainsRune(input, 0) {
		return "", errs.Security("path contains null byte")
	}
	if runtime.GOOS == "windows" {
		lower := strings.ToLower(input)
		if strings.HasPrefix(lower, `\\?\`) || strings.HasPrefix(lower, `\\.\`) {
			return "", errs.Security("path uses a reserved device namespace")
		}
	}
	for _, pat := range s.denyPatterns {
		if matched, _ := filepath.Match(pat, input); matched {
			return "", errs.Security(fmt.Sprintf("path matches denied pattern %q", pat))
		}
	}

	if len(s.roots) == 0 {
		return "", errs.Security("sandbox has no allowed roots configured")
	}

	for _, root := range s.roots {
		candidate := input
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		clean := filepath.Clean(candidate)
		if !withinRoot(clean, root) {
			continue
		}
		resolved, err := resolveSymlinks(clean)
		if err != nil {
			// Path may not exist yet (e.g. a pending write); fall back to the
			// cleaned, unresolved path, which is still root-contained.
			resolved = clean
		}
		if !withinRoot(resolved, root) {
			return "", errs.Security("path escapes sandbox root after symlink resolution")
		}
		return resolved, nil
	}
	return "", errs.Security("path escapes all configured sandbox roots")
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

// ProcessSandbox owns the allow-list/deny-list of executable basenames and
// the set of environment variables forwarded to a spawned process.
type ProcessSandbox struct {
	allowed map[string]bool
	denied  map[string]bool
	envKeep map[string]bool
}

func NewProcessSandbox(allowed, denied, envAllowList []string) *ProcessSandbox {
	p := &ProcessSandbox{
		allowed: toSet(allowed),
		denied:  toSet(denied),
		envKeep: toSet(envAllowList),
	}
	return p
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// ValidateCommand rejects shell metacharacters in the raw command line, then
// checks the resolved base command against the deny-list (which always
// wins) and the allow-list (required unless empty, in which case all
// commands not on the deny-list are permitted).
func (p *ProcessSandbox) ValidateCommand(command string) (baseCommand string, err error) {
	for _, meta := range shellMetacharacters {
		if strings.Contains(command, meta) {
			return "", errs.Security(fmt.Sprintf("command contains disallowed character sequence %q", meta))
		}
	}
	base := extractBaseCommand(command)
	if p.denied[base] {
		return "", errs.Security(fmt.Sprintf("executable %q is not permitted", base))
	}
	if len(p.allowed) > 0 && !p.allowed[base] {
		return "", errs.Security(fmt.Sprintf("executable %q is not permitted", base))
	}
	return base, nil
}

func extractBaseCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

// ScrubEnvironment returns only the entries of env ("KEY=value" pairs) whose
// key is in the sandbox's allow-list. By default (empty allow-list) the
// environment is cleared entirely.
func (p *ProcessSandbox) ScrubEnvironment(env []string) []string {
	if len(p.envKeep) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && p.envKeep[parts[0]] {
			out = append(out, kv)
		}
	}
	return out
}

package tools

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/sandbox"
	"github.com/llmspell/llmspell/pkg/tool"
)

// File-operation caps, per spec.md §4.3: "size, recursion, and
// directory-entry-count caps are enforced before any data is produced."
const (
	maxFileReadBytes  = 10 << 20
	maxFileWriteBytes = 10 << 20
	maxDirEntries     = 10000
	maxCopyDepth      = 32
)

var fileOperations = map[string]bool{
	"read": true, "write": true, "append": true, "delete": true,
	"create_dir": true, "list_dir": true, "copy": true, "move": true,
	"metadata": true, "exists": true,
}

// FileOpsTool performs sandboxed filesystem operations. Atomicity and the
// size/recursion/entry-count ceilings are grounded on spec.md §4.3; path
// containment is delegated entirely to sandbox.FileSandbox (C2).
type FileOpsTool struct {
	sb *sandbox.FileSandbox
}

func NewFileOpsTool(sb *sandbox.FileSandbox) *FileOpsTool {
	return &FileOpsTool{sb: sb}
}

func (t *FileOpsTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: "file_operations", Version: "1.0.0"}
}

func (t *FileOpsTool) Schema() tool.Schema {
	ops := make([]string, 0, len(fileOperations))
	for op := range fileOperations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return tool.Schema{Parameters: []tool.Parameter{
		{Name: "operation", Type: tool.TypeEnum, Required: true, Constraint: tool.Constraint{Enum: ops}},
		{Name: "path", Type: tool.TypeString, Required: true},
		{Name: "destination", Type: tool.TypeString, Required: false},
		{Name: "content", Type: tool.TypeString, Required: false},
	}}
}

func (t *FileOpsTool) Category() tool.Category           { return tool.CategoryFilesystem }
func (t *FileOpsTool) SecurityLevel() tool.SecurityLevel { return tool.SecurityRestricted }
func (t *FileOpsTool) SecurityRequirements() []string    { return []string{"filesystem"} }

func (t *FileOpsTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: 5 * time.Second, MaxOutputBytes: maxFileReadBytes}
}

func (t *FileOpsTool) ValidateInput(input tool.Input) error {
	return tool.ValidateAgainstSchema(t.Schema(), input)
}

type fileOpsParams struct {
	Operation   string `json:"operation"`
	Path        string `json:"path"`
	Destination string `json:"destination"`
	Content     string `json:"content"`
}

func (t *FileOpsTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	var p fileOpsParams
	if err := decodeInput(input, &p); err != nil {
		return errorOutput("", err), nil
	}
	if !fileOperations[p.Operation] {
		return errorOutput(p.Operation, errs.Validation("operation", "unknown file operation")), nil
	}
	resolved, err := t.sb.ValidatePath(p.Path)
	if err != nil {
		return errorOutput(p.Operation, err), nil
	}

	switch p.Operation {
	case "read":
		return t.read(p.Operation, resolved)
	case "write":
		return t.write(p.Operation, resolved, []byte(p.Content), false)
	case "append":
		return t.write(p.Operation, resolved, []byte(p.Content), true)
	case "delete":
		return t.delete(p.Operation, resolved)
	case "create_dir":
		return t.createDir(p.Operation, resolved)
	case "list_dir":
		return t.listDir(p.Operation, resolved)
	case "copy":
		return t.copyOrMove(p.Operation, resolved, p.Destination, false)
	case "move":
		return t.copyOrMove(p.Operation, resolved, p.Destination, true)
	case "metadata":
		return t.metadata(p.Operation, resolved)
	case "exists":
		return t.exists(p.Operation, resolved)
	}
	return errorOutput(p.Operation, errs.Component("unreachable file operation dispatch")), nil
}

func (t *FileOpsTool) read(op, path string) (tool.Output, error) {
	info, err := os.Stat(path)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	if info.IsDir() {
		return errorOutput(op, errs.Validation("path", "cannot read a directory")), nil
	}
	if info.Size() > maxFileReadBytes {
		return errorOutput(op, errs.Resource("file_read_bytes")), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "file read", Result: map[string]any{
		"content": string(data), "size_bytes": len(data),
	}}, nil
}

// write performs an atomic write-temp-then-rename for a fresh write, per
// spec.md §4.3. Append cannot be made atomic against concurrent readers by
// rename, so it opens with O_APPEND directly; this mirrors the asymmetry the
// spec draws between "writes are atomic by default" (full-file writes) and
// append's inherently incremental semantics.
func (t *FileOpsTool) write(op, path string, content []byte, appendMode bool) (tool.Output, error) {
	if len(content) > maxFileWriteBytes {
		return errorOutput(op, errs.Resource("file_write_bytes")), nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return errorOutput(op, errs.Validation("path", "cannot write to a directory")), nil
	}
	if appendMode {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errorOutput(op, errs.Storage(err)), nil
		}
		defer f.Close()
		if _, err := f.Write(content); err != nil {
			return errorOutput(op, errs.Storage(err)), nil
		}
		return tool.Output{Success: true, Operation: op, Message: "content appended", Result: map[string]any{"bytes_written": len(content)}}, nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".llmspell-tmp-*")
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errorOutput(op, errs.Storage(err)), nil
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errorOutput(op, errs.Storage(err)), nil
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "file written", Result: map[string]any{"bytes_written": len(content)}}, nil
}

// delete refuses to cross type: "no delete on directory" per spec.md §4.3.
func (t *FileOpsTool) delete(op, path string) (tool.Output, error) {
	info, err := os.Stat(path)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	if info.IsDir() {
		return errorOutput(op, errs.Validation("path", "delete does not operate on directories")), nil
	}
	if err := os.Remove(path); err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "file deleted"}, nil
}

func (t *FileOpsTool) createDir(op, path string) (tool.Output, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "directory created"}, nil
}

func (t *FileOpsTool) listDir(op, path string) (tool.Output, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	if len(entries) > maxDirEntries {
		return errorOutput(op, errs.Resource("directory_entry_count")), nil
	}
	names := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		names = append(names, map[string]any{"name": e.Name(), "is_dir": e.IsDir()})
	}
	return tool.Output{Success: true, Operation: op, Message: "directory listed", Result: map[string]any{"entries": names}}, nil
}

func (t *FileOpsTool) copyOrMove(op, src, destRaw string, move bool) (tool.Output, error) {
	if destRaw == "" {
		return errorOutput(op, errs.Validation("destination", "required parameter is missing")), nil
	}
	dest, err := t.sb.ValidatePath(destRaw)
	if err != nil {
		return errorOutput(op, err), nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	if info.IsDir() {
		if depth, err := dirDepth(src); err != nil || depth > maxCopyDepth {
			return errorOutput(op, errs.Resource("copy_recursion_depth")), nil
		}
	}
	if move {
		if err := os.Rename(src, dest); err != nil {
			return errorOutput(op, errs.Storage(err)), nil
		}
		return tool.Output{Success: true, Operation: op, Message: "file moved"}, nil
	}
	if info.IsDir() {
		return errorOutput(op, errs.NotImplemented("recursive directory copy")), nil
	}
	if info.Size() > maxFileWriteBytes {
		return errorOutput(op, errs.Resource("file_copy_bytes")), nil
	}
	if err := copyFile(src, dest); err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "file copied"}, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".llmspell-tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func dirDepth(root string) (int, error) {
	max := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		depth := 1
		for _, r := range rel {
			if r == filepath.Separator {
				depth++
			}
		}
		if depth > max {
			max = depth
		}
		return nil
	})
	return max, err
}

func (t *FileOpsTool) metadata(op, path string) (tool.Output, error) {
	info, err := os.Stat(path)
	if err != nil {
		return errorOutput(op, errs.Storage(err)), nil
	}
	return tool.Output{Success: true, Operation: op, Message: "metadata retrieved", Result: map[string]any{
		"size_bytes": info.Size(), "is_dir": info.IsDir(), "modified_at": info.ModTime().UTC().Format(time.RFC3339),
	}}, nil
}

func (t *FileOpsTool) exists(op, path string) (tool.Output, error) {
	_, err := os.Stat(path)
	exists := err == nil
	return tool.Output{Success: true, Operation: op, Message: "existence checked", Result: map[string]any{"exists": exists}}, nil
}

package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/sandbox"
	"github.com/llmspell/llmspell/pkg/tool"
)

func newFileOpsTool(t *testing.T) (*FileOpsTool, string) {
	t.Helper()
	root := t.TempDir()
	sb := sandbox.NewFileSandbox([]string{root}, nil)
	return NewFileOpsTool(sb), root
}

func fileOpInput(op, path, destination, content string) tool.Input {
	in := tool.Input{
		"operation": mustJSON(op),
		"path":      mustJSON(path),
	}
	if destination != "" {
		in["destination"] = mustJSON(destination)
	}
	if content != "" {
		in["content"] = mustJSON(content)
	}
	return in
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestFileOps_WriteThenRead(t *testing.T) {
	ft, root := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	out, err := ft.Execute(ctx, fileOpInput("write", "greeting.txt", "", "hello"))
	require.NoError(t, err)
	require.True(t, out.Success)

	out, err = ft.Execute(ctx, fileOpInput("read", "greeting.txt", "", ""))
	require.NoError(t, err)
	require.True(t, out.Success)
	result := out.Result.(map[string]any)
	assert.Equal(t, "hello", result["content"])

	_, statErr := os.Stat(filepath.Join(root, "greeting.txt"))
	assert.NoError(t, statErr)
}

func TestFileOps_WriteIsAtomic_NoTempLeftOnSuccess(t *testing.T) {
	ft, root := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	out, err := ft.Execute(ctx, fileOpInput("write", "atomic.txt", "", "data"))
	require.NoError(t, err)
	require.True(t, out.Success)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atomic.txt", entries[0].Name())
}

func TestFileOps_DeleteRefusesDirectory(t *testing.T) {
	ft, _ := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	out, err := ft.Execute(ctx, fileOpInput("create_dir", "subdir", "", ""))
	require.NoError(t, err)
	require.True(t, out.Success)

	out, err = ft.Execute(ctx, fileOpInput("delete", "subdir", "", ""))
	require.NoError(t, err)
	assert.False(t, out.Success, "delete must refuse to operate on a directory")
}

func TestFileOps_PathEscapeRejected(t *testing.T) {
	ft, _ := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	out, err := ft.Execute(ctx, fileOpInput("read", "../../etc/passwd", "", ""))
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestFileOps_Exists(t *testing.T) {
	ft, _ := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	out, err := ft.Execute(ctx, fileOpInput("exists", "nope.txt", "", ""))
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, false, out.Result.(map[string]any)["exists"])
}

func TestFileOps_MoveAndList(t *testing.T) {
	ft, _ := newFileOpsTool(t)
	ctx := &tool.Context{Ctx: context.Background()}

	_, err := ft.Execute(ctx, fileOpInput("write", "a.txt", "", "x"))
	require.NoError(t, err)

	out, err := ft.Execute(ctx, fileOpInput("move", "a.txt", "b.txt", ""))
	require.NoError(t, err)
	require.True(t, out.Success)

	out, err = ft.Execute(ctx, fileOpInput("list_dir", ".", "", ""))
	require.NoError(t, err)
	require.True(t, out.Success)
	entries := out.Result.(map[string]any)["entries"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.txt", entries[0]["name"])
}

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/errs"
)

func TestValidatePathWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	sb := NewFileSandbox([]string{root}, nil)
	safe, err := sb.ValidatePath("a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.txt"), safe)
}

func TestValidatePathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	sb := NewFileSandbox([]string{root}, nil)
	_, err := sb.ValidatePath("../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, errs.KindSecurity, errs.KindOf(err))
}

func TestValidatePathNullByte(t *testing.T) {
	root := t.TempDir()
	sb := NewFileSandbox([]string{root}, nil)
	_, err := sb.ValidatePath("a\x00.txt")
	require.Error(t, err)
	assert.Equal(t, errs.KindSecurity, errs.KindOf(err))
}

func TestProcessSandboxDenyListWins(t *testing.T) {
	ps := NewProcessSandbox([]string{"rm"}, []string{"rm"}, nil)
	_, err := ps.ValidateCommand("rm -rf /")
	require.Error(t, err)
	assert.Equal(t, errs.KindSecurity, errs.KindOf(err))
}

func TestProcessSandboxAllowList(t *testing.T) {
	ps := NewProcessSandbox([]string{"echo"}, nil, nil)
	base, err := ps.ValidateCommand("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "echo", base)

	_, err = ps.ValidateCommand("curl http://example.com")
	require.Error(t, err)
}

func TestProcessSandboxShellMetacharacters(t *testing.T) {
	ps := NewProcessSandbox(nil, nil, nil)
	_, err := ps.ValidateCommand("echo hi; rm -rf /")
	require.Error(t, err)
	assert.Equal(t, errs.KindSecurity, errs.KindOf(err))
}

func TestScrubEnvironmentDefaultClears(t *testing.T) {
	ps := NewProcessSandbox(nil, nil, nil)
	out := ps.ScrubEnvironment([]string{"PATH=/usr/bin", "SECRET=xyz"})
	assert.Empty(t, out)
}

func TestScrubEnvironmentAllowList(t *testing.T) {
	ps := NewProcessSandbox(nil, nil, []string{"PATH"})
	out := ps.ScrubEnvironment([]string{"PATH=/usr/bin", "SECRET=xyz"})
	assert.Equal(t, []string{"PATH=/usr/bin"}, out)
}

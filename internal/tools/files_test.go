package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/vfs"
)

func fileRegistry(t *testing.T) (*Registry, vfs.FileSystem) {
	t.Helper()

	fs := vfs.NewMem()
	r := NewRegistry()
	r.RegisterAll(FileTools(fs, "file-browser"))

	return r, fs
}

func run(t *testing.T, r *Registry, name string, args map[string]any) *domain.ToolResult {
	t.Helper()

	tool, err := r.Get(name)
	require.NoError(t, err)
	require.NoError(t, ValidateArgs(tool.Descriptor(), args))

	res, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)

	return res
}

func TestFileWriteAndRead(t *testing.T) {
	t.Parallel()

	r, _ := fileRegistry(t)

	res := run(t, r, "file_write", map[string]any{"path": "/notes/a.txt", "content": "hello"})
	require.True(t, res.Success)
	require.NotNil(t, res.UIUpdate)
	assert.Equal(t, domain.UICreatePath, res.UIUpdate.Type)
	assert.Equal(t, "file-browser", res.UIUpdate.TargetID)
	assert.Equal(t, "/notes/a.txt", res.UIUpdate.Path)

	res = run(t, r, "file_read", map[string]any{"path": "/notes/a.txt"})
	require.True(t, res.Success)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", data["content"])
}

func TestFileListDirectory(t *testing.T) {
	t.Parallel()

	r, fs := fileRegistry(t)
	require.NoError(t, fs.Write("/docs/b.txt", "b"))
	require.NoError(t, fs.Write("/docs/a.txt", "a"))

	res := run(t, r, "file_browser_list_directory", map[string]any{"path": "/docs"})
	require.True(t, res.Success)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"a.txt", "b.txt"}, data["entries"])
	assert.Nil(t, res.UIUpdate, "listing has no visual effect")
}

func TestFileDelete(t *testing.T) {
	t.Parallel()

	r, fs := fileRegistry(t)
	require.NoError(t, fs.Write("/x.txt", "x"))

	res := run(t, r, "file_delete", map[string]any{"path": "/x.txt"})
	require.True(t, res.Success)
	require.NotNil(t, res.UIUpdate)
	assert.Equal(t, domain.UIRemovePath, res.UIUpdate.Type)

	// A failed primitive surfaces as a failed result, not a Go error.
	res = run(t, r, "file_delete", map[string]any{"path": "/x.txt"})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.UIUpdate, "failures produce no visual effect")
}

func TestFileMoveEmitsTwoUpdates(t *testing.T) {
	t.Parallel()

	r, fs := fileRegistry(t)
	require.NoError(t, fs.Write("/a.txt", "a"))

	res := run(t, r, "file_move", map[string]any{"oldPath": "/a.txt", "newPath": "/b.txt"})
	require.True(t, res.Success)
	require.Len(t, res.MultipleUpdates, 2)
	assert.Equal(t, domain.UIRemovePath, res.MultipleUpdates[0].Type)
	assert.Equal(t, "/a.txt", res.MultipleUpdates[0].Path)
	assert.Equal(t, domain.UICreatePath, res.MultipleUpdates[1].Type)
	assert.Equal(t, "/b.txt", res.MultipleUpdates[1].Path)

	got, err := fs.Read("/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestFileCopyAndCreateDirectory(t *testing.T) {
	t.Parallel()

	r, fs := fileRegistry(t)
	require.NoError(t, fs.Write("/src/one.txt", "1"))

	res := run(t, r, "file_copy", map[string]any{"src": "/src", "dst": "/dst"})
	require.True(t, res.Success)

	got, err := fs.Read("/dst/one.txt")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	res = run(t, r, "file_create_directory", map[string]any{"path": "/empty"})
	require.True(t, res.Success)
	require.NotNil(t, res.UIUpdate)
	assert.Equal(t, domain.UICreatePath, res.UIUpdate.Type)
}

func TestFileToolsWithoutTarget(t *testing.T) {
	t.Parallel()

	fs := vfs.NewMem()
	r := NewRegistry()
	r.RegisterAll(FileTools(fs, ""))

	res := run(t, r, "file_write", map[string]any{"path": "/a.txt", "content": "a"})
	require.True(t, res.Success)
	assert.Nil(t, res.UIUpdate)
	assert.Empty(t, res.MultipleUpdates)
}

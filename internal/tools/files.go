package tools

import (
	"context"
	"fmt"

	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/vfs"
)

// FileTools returns the built-in file manipulation tool set operating on fs.
// targetID names the file-browser surface that receives the visual effects;
// an empty targetID suppresses them.
func FileTools(fs vfs.FileSystem, targetID string) []Tool {
	ft := &fileTools{fs: fs, target: targetID}
	return []Tool{
		&Func{Desc: listDirDesc, Run: ft.listDirectory},
		&Func{Desc: readFileDesc, Run: ft.readFile},
		&Func{Desc: writeFileDesc, Run: ft.writeFile},
		&Func{Desc: createDirDesc, Run: ft.createDirectory},
		&Func{Desc: deleteDesc, Run: ft.deletePath},
		&Func{Desc: moveDesc, Run: ft.movePath},
		&Func{Desc: copyDesc, Run: ft.copyPath},
	}
}

type fileTools struct {
	fs     vfs.FileSystem
	target string
}

var pathProp = domain.PropertySchema{Type: "string", Description: "Absolute slash-separated path inside the workspace."}

var listDirDesc = domain.ToolDescriptor{
	Name:        "file_browser_list_directory",
	Description: "List the entries of a workspace directory. Directory names carry a trailing slash.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"path": pathProp,
	}, "path"),
}

var readFileDesc = domain.ToolDescriptor{
	Name:        "file_read",
	Description: "Read the full content of a workspace file.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"path": pathProp,
	}, "path"),
}

var writeFileDesc = domain.ToolDescriptor{
	Name:        "file_write",
	Description: "Write content to a workspace file, creating it and any missing parent directories.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"path":    pathProp,
		"content": {Type: "string", Description: "Full file content to write."},
	}, "path", "content"),
}

var createDirDesc = domain.ToolDescriptor{
	Name:        "file_create_directory",
	Description: "Create a workspace directory, including missing parents.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"path": pathProp,
	}, "path"),
}

var deleteDesc = domain.ToolDescriptor{
	Name:        "file_delete",
	Description: "Delete a workspace file or directory recursively.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"path": pathProp,
	}, "path"),
}

var moveDesc = domain.ToolDescriptor{
	Name:        "file_move",
	Description: "Move or rename a workspace file or directory.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"oldPath": pathProp,
		"newPath": pathProp,
	}, "oldPath", "newPath"),
}

var copyDesc = domain.ToolDescriptor{
	Name:        "file_copy",
	Description: "Copy a workspace file or directory recursively.",
	Parameters: domain.ObjectSchema(map[string]domain.PropertySchema{
		"src": pathProp,
		"dst": pathProp,
	}, "src", "dst"),
}

func (ft *fileTools) listDirectory(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return domain.Fail(err), nil
	}

	entries, err := ft.fs.List(p)
	if err != nil {
		return domain.Fail(err), nil
	}

	return domain.OK(map[string]any{"path": p, "entries": entries}), nil
}

func (ft *fileTools) readFile(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return domain.Fail(err), nil
	}

	content, err := ft.fs.Read(p)
	if err != nil {
		return domain.Fail(err), nil
	}

	return domain.OK(map[string]any{"path": p, "content": content}), nil
}

func (ft *fileTools) writeFile(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return domain.Fail(err), nil
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return domain.Fail(err), nil
	}

	if err := ft.fs.Write(p, content); err != nil {
		return domain.Fail(err), nil
	}

	res := domain.OK(map[string]any{"path": p, "bytesWritten": len(content)})
	res.UIUpdate = ft.pathUpdate(domain.UICreatePath, p)
	return res, nil
}

func (ft *fileTools) createDirectory(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return domain.Fail(err), nil
	}

	if err := ft.fs.CreateDir(p); err != nil {
		return domain.Fail(err), nil
	}

	res := domain.OK(map[string]any{"path": p})
	res.UIUpdate = ft.pathUpdate(domain.UICreatePath, p)
	return res, nil
}

func (ft *fileTools) deletePath(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return domain.Fail(err), nil
	}

	if err := ft.fs.Delete(p); err != nil {
		return domain.Fail(err), nil
	}

	res := domain.OK(map[string]any{"path": p})
	res.UIUpdate = ft.pathUpdate(domain.UIRemovePath, p)
	return res, nil
}

func (ft *fileTools) movePath(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	oldPath, err := stringArg(args, "oldPath")
	if err != nil {
		return domain.Fail(err), nil
	}
	newPath, err := stringArg(args, "newPath")
	if err != nil {
		return domain.Fail(err), nil
	}

	if err := ft.fs.Move(oldPath, newPath); err != nil {
		return domain.Fail(err), nil
	}

	res := domain.OK(map[string]any{"oldPath": oldPath, "newPath": newPath})
	if ft.target != "" {
		res.MultipleUpdates = []domain.UIUpdate{
			*ft.pathUpdate(domain.UIRemovePath, oldPath),
			*ft.pathUpdate(domain.UICreatePath, newPath),
		}
	}
	return res, nil
}

func (ft *fileTools) copyPath(_ context.Context, args map[string]any) (*domain.ToolResult, error) {
	src, err := stringArg(args, "src")
	if err != nil {
		return domain.Fail(err), nil
	}
	dst, err := stringArg(args, "dst")
	if err != nil {
		return domain.Fail(err), nil
	}

	if err := ft.fs.Copy(src, dst); err != nil {
		return domain.Fail(err), nil
	}

	res := domain.OK(map[string]any{"src": src, "dst": dst})
	res.UIUpdate = ft.pathUpdate(domain.UICreatePath, dst)
	return res, nil
}

func (ft *fileTools) pathUpdate(typ domain.UIUpdateType, p string) *domain.UIUpdate {
	if ft.target == "" {
		return nil
	}
	return &domain.UIUpdate{Type: typ, TargetID: ft.target, Path: p}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return s, nil
}

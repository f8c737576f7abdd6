package vfs

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FileSystem is the workspace file surface consumed by the built-in tools.
// Paths are slash-separated and rooted at "/". Every tool action is built
// from these primitives and surfaces their failures verbatim.
type FileSystem interface {
	Read(path string) (string, error)
	Write(path, content string) error
	List(dir string) ([]string, error)
	CreateDir(path string) error
	Delete(path string) error
	Move(oldPath, newPath string) error
	Copy(src, dst string) error
}

// AferoFS adapts an afero backend to the FileSystem contract.
type AferoFS struct {
	fs afero.Fs
}

// NewMem returns an empty in-memory workspace file system.
func NewMem() *AferoFS {
	return &AferoFS{fs: afero.NewMemMapFs()}
}

// New wraps an arbitrary afero backend.
func New(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

func (v *AferoFS) Read(p string) (string, error) {
	data, err := afero.ReadFile(v.fs, clean(p))
	if err != nil {
		return "", fmt.Errorf("vfs.Read(%q): %w", p, err)
	}
	return string(data), nil
}

func (v *AferoFS) Write(p, content string) error {
	p = clean(p)
	if dir := path.Dir(p); dir != "/" {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("vfs.Write(%q): %w", p, err)
		}
	}
	if err := afero.WriteFile(v.fs, p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("vfs.Write(%q): %w", p, err)
	}
	return nil
}

func (v *AferoFS) List(dir string) ([]string, error) {
	infos, err := afero.ReadDir(v.fs, clean(dir))
	if err != nil {
		return nil, fmt.Errorf("vfs.List(%q): %w", dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (v *AferoFS) CreateDir(p string) error {
	if err := v.fs.MkdirAll(clean(p), 0o755); err != nil {
		return fmt.Errorf("vfs.CreateDir(%q): %w", p, err)
	}
	return nil
}

func (v *AferoFS) Delete(p string) error {
	p = clean(p)
	if _, err := v.fs.Stat(p); err != nil {
		return fmt.Errorf("vfs.Delete(%q): %w", p, err)
	}
	if err := v.fs.RemoveAll(p); err != nil {
		return fmt.Errorf("vfs.Delete(%q): %w", p, err)
	}
	return nil
}

func (v *AferoFS) Move(oldPath, newPath string) error {
	oldPath, newPath = clean(oldPath), clean(newPath)
	if dir := path.Dir(newPath); dir != "/" {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("vfs.Move(%q, %q): %w", oldPath, newPath, err)
		}
	}
	if err := v.fs.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("vfs.Move(%q, %q): %w", oldPath, newPath, err)
	}
	return nil
}

func (v *AferoFS) Copy(src, dst string) error {
	src, dst = clean(src), clean(dst)

	info, err := v.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("vfs.Copy(%q, %q): %w", src, dst, err)
	}

	if info.IsDir() {
		err = afero.Walk(v.fs, src, func(p string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			target := dst + strings.TrimPrefix(p, src)
			if fi.IsDir() {
				return v.fs.MkdirAll(target, 0o755)
			}
			return v.copyFile(p, target)
		})
	} else {
		err = v.copyFile(src, dst)
	}
	if err != nil {
		return fmt.Errorf("vfs.Copy(%q, %q): %w", src, dst, err)
	}

	return nil
}

func (v *AferoFS) copyFile(src, dst string) error {
	data, err := afero.ReadFile(v.fs, src)
	if err != nil {
		return err
	}
	if dir := path.Dir(dst); dir != "/" {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(v.fs, dst, data, 0o644)
}

func clean(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return p
}

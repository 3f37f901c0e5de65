// Package volume stores uploaded files on a local directory tree. Each file
// lands in its own <root>/<uuid>/ directory so names never collide.
package volume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvappend/internal/core"
)

// ErrOutsideVolume is returned for paths that do not resolve under the root.
var ErrOutsideVolume = errors.New("path is outside the upload volume")

// Volume is a directory that holds uploaded files.
type Volume struct {
	root string
}

// New creates root if needed and returns a Volume on it.
func New(root string) (*Volume, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve volume path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create volume %s: %w", abs, err)
	}
	return &Volume{root: abs}, nil
}

// Root returns the absolute volume directory.
func (v *Volume) Root() string {
	return v.root
}

// PutFile copies r to <root>/<uuid>/<filename> and returns the stored path.
// A partially written file is removed on error.
func (v *Volume) PutFile(ctx context.Context, r io.Reader, filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	dir := filepath.Join(v.root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.RemoveAll(dir)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// Open opens a stored file for reading.
func (v *Volume) Open(path string) (*os.File, error) {
	clean, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(clean)
}

// RemoveFile deletes a stored file together with its upload directory.
// Removing a file that is already gone is not an error.
func (v *Volume) RemoveFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := v.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(clean)
	if dir == v.root {
		if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.RemoveAll(dir)
}

// ReadDelimitedFile decodes the stored file at path with settings.
func (v *Volume) ReadDelimitedFile(ctx context.Context, path string, settings core.ParseSettings, limit int) (core.ParsedTable, error) {
	f, err := v.Open(path)
	if err != nil {
		return core.ParsedTable{}, err
	}
	defer f.Close()
	return core.ReadDelimited(&ctxReader{ctx: ctx, r: f}, settings, limit)
}

func (v *Volume) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(v.root, clean)
	}
	rel, err := filepath.Rel(v.root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVolume, path)
	}
	return clean, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

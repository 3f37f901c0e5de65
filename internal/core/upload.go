package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// allowedExtensions are the only file types accepted at the upload boundary.
var allowedExtensions = map[string]bool{".csv": true, ".tsv": true}

// CheckUpload applies the upload boundary rules without touching the store.
// size < 0 means the size is not known up front.
func CheckUpload(filename string, size, maxSize int64) error {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return ErrNoFile
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedExtension, filepath.Ext(name))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, maxSize)
	}
	return nil
}

// Upload validates the file and persists it through the store. Extension and
// size are checked before any store call; when size is unknown (< 0) the
// stream is cut off at the limit and the upload fails.
func (s *Service) Upload(ctx context.Context, filename string, size int64, r io.Reader) (UploadedFile, error) {
	if err := CheckUpload(filename, size, s.opts.MaxFileSize); err != nil {
		return UploadedFile{}, stageErr(StageUpload, err)
	}
	name := filepath.Base(strings.TrimSpace(filename))

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrEmptyFile
		}
		return UploadedFile{}, stageErr(StageUpload, err)
	}

	guarded := &sizeGuard{r: br, remaining: s.opts.MaxFileSize}
	path, err := s.store.PutFile(ctx, guarded, name)
	if err != nil {
		return UploadedFile{}, stageErr(StageUpload, err)
	}

	s.logger(ctx).Info("file uploaded", "filename", name, "path", path, "bytes", guarded.read)
	return UploadedFile{
		StoragePath:      path,
		OriginalFilename: name,
		Size:             guarded.read,
		UploadedAt:       time.Now().UTC(),
	}, nil
}

// sizeGuard fails the read that would take the stream past remaining bytes.
type sizeGuard struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	if g.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > g.remaining+1 {
		p = p[:g.remaining+1]
	}
	n, err := g.r.Read(p)
	g.remaining -= int64(n)
	g.read += int64(n)
	if g.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

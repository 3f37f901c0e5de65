package volume

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvappend/internal/core"
)

func newVolume(t *testing.T) *Volume {
	t.Helper()
	v, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func TestPutFile(t *testing.T) {
	v := newVolume(t)

	path, err := v.PutFile(context.Background(), strings.NewReader("id\n1\n"), "sales.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if filepath.Base(path) != "sales.csv" {
		t.Errorf("path = %s, want file named sales.csv", path)
	}
	if filepath.Dir(filepath.Dir(path)) != v.Root() {
		t.Errorf("path = %s, want <root>/<id>/sales.csv", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "id\n1\n" {
		t.Errorf("content = %q", data)
	}
}

func TestPutFile_SameNameTwice(t *testing.T) {
	v := newVolume(t)
	ctx := context.Background()

	first, err := v.PutFile(ctx, strings.NewReader("a"), "x.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	second, err := v.PutFile(ctx, strings.NewReader("b"), "x.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if first == second {
		t.Errorf("both uploads stored at %s", first)
	}
}

func TestPutFile_StripsDirectories(t *testing.T) {
	v := newVolume(t)

	path, err := v.PutFile(context.Background(), strings.NewReader("a"), "../../etc/passwd.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if !strings.HasPrefix(path, v.Root()) {
		t.Errorf("path %s escaped the volume %s", path, v.Root())
	}
	if filepath.Base(path) != "passwd.csv" {
		t.Errorf("base = %s, want passwd.csv", filepath.Base(path))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection dropped") }

func TestPutFile_RemovesPartialFile(t *testing.T) {
	v := newVolume(t)

	_, err := v.PutFile(context.Background(), io.MultiReader(strings.NewReader("id\n"), failingReader{}), "x.csv")
	if err == nil {
		t.Fatal("PutFile() succeeded with failing reader")
	}
	entries, err := os.ReadDir(v.Root())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("volume has %d entries after failed upload, want 0", len(entries))
	}
}

func TestOpen_RejectsOutsidePaths(t *testing.T) {
	v := newVolume(t)

	tests := []string{
		"/etc/passwd",
		"../outside.csv",
		v.Root(),
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			if _, err := v.Open(path); !errors.Is(err, ErrOutsideVolume) {
				t.Errorf("Open(%q) error = %v, want ErrOutsideVolume", path, err)
			}
		})
	}
}

func TestReadDelimitedFile(t *testing.T) {
	v := newVolume(t)
	ctx := context.Background()

	path, err := v.PutFile(ctx, strings.NewReader("id;name\n1;a\n2;b\n"), "x.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}

	settings := core.DefaultParseSettings()
	settings.Delimiter = ";"
	table, err := v.ReadDelimitedFile(ctx, path, settings, 1)
	if err != nil {
		t.Fatalf("ReadDelimitedFile() error = %v", err)
	}
	if len(table.Columns) != 2 || len(table.Rows) != 1 {
		t.Errorf("table = %+v, want 2 columns and 1 row", table)
	}
}

func TestReadDelimitedFile_Cancelled(t *testing.T) {
	v := newVolume(t)

	path, err := v.PutFile(context.Background(), strings.NewReader("id\n1\n"), "x.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.ReadDelimitedFile(ctx, path, core.DefaultParseSettings(), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadDelimitedFile() error = %v, want context.Canceled", err)
	}
}

func TestRemoveFile(t *testing.T) {
	v := newVolume(t)

	path, err := v.PutFile(context.Background(), strings.NewReader("a"), "x.csv")
	if err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if err := v.RemoveFile(context.Background(), path); err != nil {
		t.Fatalf("RemoveFile() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Errorf("upload directory still exists: %v", err)
	}
	if err := v.RemoveFile(context.Background(), path); err != nil {
		t.Errorf("second RemoveFile() error = %v, want nil", err)
	}
}

func TestRemoveFile_OutsideVolume(t *testing.T) {
	v := newVolume(t)
	if err := v.RemoveFile(context.Background(), "/etc/passwd"); !errors.Is(err, ErrOutsideVolume) {
		t.Errorf("RemoveFile() error = %v, want ErrOutsideVolume", err)
	}
}

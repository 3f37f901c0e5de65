package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

// fakeStore is an in-memory TableStore for service tests.
type fakeStore struct {
	mu sync.Mutex

	files  map[string][]byte
	tables map[TableRef]*fakeTable

	putCalls      int
	readCalls     int
	describeCalls int
	insertCalls   int

	removed []string

	describeErr error
	insertErr   error
	removeErr   error
	readHook    func(path string)
}

type fakeTable struct {
	schema TableSchema
	rows   [][]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:  make(map[string][]byte),
		tables: make(map[TableRef]*fakeTable),
	}
}

func (f *fakeStore) addFile(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = []byte(content)
}

func (f *fakeStore) addTable(ref TableRef, cols ...ColumnDef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[ref] = &fakeTable{schema: TableSchema{Columns: cols}}
}

func (f *fakeStore) rowCount(ref TableRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[ref].rows)
}

func (f *fakeStore) ListCatalogs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for ref := range f.tables {
		if !seen[ref.Catalog] {
			seen[ref.Catalog] = true
			out = append(out, ref.Catalog)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for ref := range f.tables {
		if ref.Catalog == catalog && !seen[ref.Schema] {
			seen[ref.Schema] = true
			out = append(out, ref.Schema)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTables(ctx context.Context, catalog, schema string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for ref := range f.tables {
		if ref.Catalog == catalog && ref.Schema == schema {
			out = append(out, ref.Table)
		}
	}
	return out, nil
}

func (f *fakeStore) DescribeTable(ctx context.Context, ref TableRef) (TableSchema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls++
	if f.describeErr != nil {
		return TableSchema{}, f.describeErr
	}
	t, ok := f.tables[ref]
	if !ok {
		return TableSchema{}, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}
	return t.schema, nil
}

func (f *fakeStore) SampleRows(ctx context.Context, ref TableRef, limit int) (ParsedTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[ref]
	if !ok {
		return ParsedTable{}, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}
	out := ParsedTable{Rows: [][]pgtype.Text{}}
	for _, c := range t.schema.Columns {
		out.Columns = append(out.Columns, c.Name)
	}
	for i, row := range t.rows {
		if i >= limit {
			break
		}
		cellsOut := make([]pgtype.Text, len(row))
		for j, v := range row {
			if v != nil {
				cellsOut[j] = pgtype.Text{String: fmt.Sprint(v), Valid: true}
			}
		}
		out.Rows = append(out.Rows, cellsOut)
	}
	return out, nil
}

func (f *fakeStore) ReadDelimitedFile(ctx context.Context, path string, settings ParseSettings, limit int) (ParsedTable, error) {
	f.mu.Lock()
	f.readCalls++
	data, ok := f.files[path]
	hook := f.readHook
	f.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if !ok {
		return ParsedTable{}, fmt.Errorf("file %s not found", path)
	}
	return ReadDelimited(bytes.NewReader(data), settings, limit)
}

func (f *fakeStore) BulkInsert(ctx context.Context, ref TableRef, table ParsedTable) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	t, ok := f.tables[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}

	var converted [][]any
	for _, row := range table.Rows {
		out := make([]any, len(t.schema.Columns))
		for i, col := range t.schema.Columns {
			idx := table.ColumnIndex(col.Name)
			if idx < 0 {
				continue
			}
			v, err := ConvertCell(row[idx], col.Type)
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", col.Name, err)
			}
			out[i] = v
		}
		converted = append(converted, out)
	}
	t.rows = append(t.rows, converted...)
	return int64(len(converted)), nil
}

func (f *fakeStore) PutFile(ctx context.Context, r io.Reader, filename string) (string, error) {
	f.mu.Lock()
	f.putCalls++
	n := f.putCalls
	f.mu.Unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("/volume/%d/%s", n, filename)
	f.addFile(path, string(data))
	return path, nil
}

func (f *fakeStore) RemoveFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeStore) removedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeStore) hasFile(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

// Package sqlite is a TableStore backed by a SQLite database file through
// modernc.org/sqlite. It exposes a single catalog named "sqlite" whose
// schemas are the attached databases (main plus any ATTACHed files).
// Appends run as prepared INSERTs inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/csvappend/internal/config"
	"github.com/JonMunkholm/csvappend/internal/core"
	"github.com/JonMunkholm/csvappend/internal/store"
	"github.com/JonMunkholm/csvappend/internal/store/volume"
)

// Catalog is the only catalog a SQLite store reports.
const Catalog = "sqlite"

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg *config.Config) (core.TableStore, error) {
		return Open(ctx, cfg.Store.SQLitePath, cfg.Store.VolumePath)
	})
}

// Store implements core.TableStore on a database/sql handle.
type Store struct {
	*volume.Volume
	db *sql.DB
}

var _ core.TableStore = (*Store)(nil)

// Open opens the database at dsn and the upload volume at volumePath.
func Open(ctx context.Context, dsn, volumePath string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	vol, err := volume.New(volumePath)
	if err != nil {
		db.Close()
		return nil, err
	}
	return New(db, vol), nil
}

// New wraps an open database.
func New(db *sql.DB, vol *volume.Volume) *Store {
	return &Store{Volume: vol, db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCatalogs(ctx context.Context) ([]string, error) {
	return []string{Catalog}, nil
}

// ListSchemas returns the attached database names, without temp.
func (s *Store) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	if catalog != Catalog {
		return []string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite: database_list: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var (
			seq        int
			name, file string
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, fmt.Errorf("sqlite: database_list: %w", err)
		}
		if name != "temp" {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

func (s *Store) ListTables(ctx context.Context, catalog, schema string) ([]string, error) {
	if catalog != Catalog {
		return []string{}, nil
	}
	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\\_%%' ESCAPE '\\' ORDER BY name",
		quoteIdentifier(schema),
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: list tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DescribeTable reads PRAGMA table_info. Columns declared without a type are
// reported as STRING.
func (s *Store) DescribeTable(ctx context.Context, ref core.TableRef) (core.TableSchema, error) {
	if ref.Catalog != Catalog {
		return core.TableSchema{}, fmt.Errorf("%w: %s", core.ErrTableNotFound, ref)
	}
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteIdentifier(ref.Schema), quoteIdentifier(ref.Table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return core.TableSchema{}, fmt.Errorf("sqlite: describe %s: %w", ref, err)
	}
	defer rows.Close()

	var schema core.TableSchema
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return core.TableSchema{}, fmt.Errorf("sqlite: describe %s: %w", ref, err)
		}
		schema.Columns = append(schema.Columns, core.ColumnDef{
			Name:    name,
			Type:    columnType(typ),
			RawType: typ,
		})
	}
	if err := rows.Err(); err != nil {
		return core.TableSchema{}, fmt.Errorf("sqlite: describe %s: %w", ref, err)
	}
	if len(schema.Columns) == 0 {
		return core.TableSchema{}, fmt.Errorf("%w: %s", core.ErrTableNotFound, ref)
	}
	return schema, nil
}

// SampleRows returns up to limit rows of ref with every value cast to text.
func (s *Store) SampleRows(ctx context.Context, ref core.TableRef, limit int) (core.ParsedTable, error) {
	schema, err := s.DescribeTable(ctx, ref)
	if err != nil {
		return core.ParsedTable{}, err
	}

	cols := make([]string, len(schema.Columns))
	exprs := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = c.Name
		exprs[i] = fmt.Sprintf("CAST(%s AS TEXT)", quoteIdentifier(c.Name))
	}
	query := fmt.Sprintf("SELECT %s FROM %s.%s LIMIT ?",
		strings.Join(exprs, ", "), quoteIdentifier(ref.Schema), quoteIdentifier(ref.Table))

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return core.ParsedTable{}, fmt.Errorf("sqlite: sample %s: %w", ref, err)
	}
	defer rows.Close()

	out := core.ParsedTable{Columns: cols, Rows: [][]pgtype.Text{}}
	for rows.Next() {
		row := make([]pgtype.Text, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return core.ParsedTable{}, fmt.Errorf("sqlite: sample %s: %w", ref, err)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// BulkInsert converts and inserts every row of table in one transaction.
// Nothing is written if any row fails.
func (s *Store) BulkInsert(ctx context.Context, ref core.TableRef, table core.ParsedTable) (int64, error) {
	schema, err := s.DescribeTable(ctx, ref)
	if err != nil {
		return 0, err
	}

	targets := make([]core.ColumnDef, len(table.Columns))
	names := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, name := range table.Columns {
		col, ok := schema.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("sqlite: column %q is not in %s", name, ref)
		}
		targets[i] = col
		names[i] = quoteIdentifier(col.Name)
		placeholders[i] = "?"
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("sqlite: no columns to insert")
	}
	if len(table.Rows) == 0 {
		return 0, nil
	}

	stmtSQL := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdentifier(ref.Schema), quoteIdentifier(ref.Table),
		strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	args := make([]any, len(targets))
	for r, cells := range table.Rows {
		for i, col := range targets {
			v, err := sqliteValue(cells[i], col.Type)
			if err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("sqlite: row %d, column %s: %w", r+1, col.Name, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert row %d: %w", r+1, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// sqliteValue converts a cell for storage. Dates are written as ISO-8601
// text, which is how SQLite's date functions expect them.
func sqliteValue(cell pgtype.Text, declared core.DataType) (any, error) {
	v, err := core.ConvertCell(cell, declared)
	if err != nil || v == nil {
		return v, err
	}
	switch x := v.(type) {
	case time.Time:
		if declared == core.TypeDate {
			return x.Format(time.DateOnly), nil
		}
		return x.Format(time.RFC3339Nano), nil
	case pgtype.Numeric:
		return x.Value()
	case string:
		if declared == core.TypeBinary {
			return []byte(x), nil
		}
	}
	return v, nil
}

// columnType maps a declared SQLite column type onto the core lattice. Any
// type name containing "INT" has INTEGER affinity and stores 64-bit values,
// whatever width the name suggests.
func columnType(declared string) core.DataType {
	if strings.Contains(strings.ToUpper(declared), "INT") {
		return core.TypeBigInt
	}
	return core.ParseDeclaredType(declared)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

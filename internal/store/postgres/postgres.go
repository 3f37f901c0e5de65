// Package postgres is a TableStore backed by PostgreSQL through pgx. The
// connected database is the only catalog; its schemas and tables come from
// information_schema. Appends use COPY inside a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvappend/internal/config"
	"github.com/JonMunkholm/csvappend/internal/core"
	"github.com/JonMunkholm/csvappend/internal/store"
	"github.com/JonMunkholm/csvappend/internal/store/volume"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg *config.Config) (core.TableStore, error) {
		return Open(ctx, cfg)
	})
}

// Store implements core.TableStore on a pgx pool. Uploaded files live on the
// embedded Volume.
type Store struct {
	*volume.Volume
	pool *pgxpool.Pool
}

var _ core.TableStore = (*Store)(nil)

// Open connects to cfg.Database.URL using the configured pool limits.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	vol, err := volume.New(cfg.Store.VolumePath)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool, vol), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, vol *volume.Volume) *Store {
	return &Store{Volume: vol, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ListCatalogs returns the name of the connected database.
func (s *Store) ListCatalogs(ctx context.Context) ([]string, error) {
	var name string
	if err := s.pool.QueryRow(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return nil, fmt.Errorf("query current database: %w", err)
	}
	return []string{name}, nil
}

func (s *Store) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE catalog_name = $1
		  AND schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg\_toast%'
		  AND schema_name NOT LIKE 'pg\_temp%'
		ORDER BY schema_name`
	return s.queryNames(ctx, query, catalog)
}

func (s *Store) ListTables(ctx context.Context, catalog, schema string) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = $1
		  AND table_schema = $2
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	return s.queryNames(ctx, query, catalog, schema)
}

func (s *Store) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan names: %w", err)
	}
	return names, nil
}

// DescribeTable reads the declared columns of ref in ordinal order.
func (s *Store) DescribeTable(ctx context.Context, ref core.TableRef) (core.TableSchema, error) {
	const query = `
		SELECT column_name, data_type, udt_name
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = $2 AND table_name = $3
		ORDER BY ordinal_position`

	rows, err := s.pool.Query(ctx, query, ref.Catalog, ref.Schema, ref.Table)
	if err != nil {
		return core.TableSchema{}, fmt.Errorf("describe %s: %w", ref, err)
	}
	defer rows.Close()

	var schema core.TableSchema
	for rows.Next() {
		var name, dataType, udtName string
		if err := rows.Scan(&name, &dataType, &udtName); err != nil {
			return core.TableSchema{}, fmt.Errorf("describe %s: %w", ref, err)
		}
		raw := rawType(dataType, udtName)
		schema.Columns = append(schema.Columns, core.ColumnDef{
			Name:    name,
			Type:    core.ParseDeclaredType(raw),
			RawType: raw,
		})
	}
	if err := rows.Err(); err != nil {
		return core.TableSchema{}, fmt.Errorf("describe %s: %w", ref, err)
	}
	if len(schema.Columns) == 0 {
		return core.TableSchema{}, fmt.Errorf("%w: %s", core.ErrTableNotFound, ref)
	}
	return schema, nil
}

// rawType picks the most specific spelling information_schema offers.
func rawType(dataType, udtName string) string {
	switch dataType {
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	}
	return dataType
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
		exprs[i] = pgx.Identifier{c.Name}.Sanitize() + "::text"
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT $1",
		strings.Join(exprs, ", "),
		pgx.Identifier{ref.Schema, ref.Table}.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return core.ParsedTable{}, fmt.Errorf("sample %s: %w", ref, err)
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
			return core.ParsedTable{}, fmt.Errorf("sample %s: %w", ref, err)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return core.ParsedTable{}, fmt.Errorf("sample %s: %w", ref, err)
	}
	return out, nil
}

// BulkInsert converts table to the declared column types of ref and copies
// it in one transaction. Table columns the target does not declare are an
// error; declared columns missing from the file are left to their defaults.
func (s *Store) BulkInsert(ctx context.Context, ref core.TableRef, table core.ParsedTable) (int64, error) {
	schema, err := s.DescribeTable(ctx, ref)
	if err != nil {
		return 0, err
	}
	plan, err := planColumns(table, schema)
	if err != nil {
		return 0, err
	}
	if len(table.Rows) == 0 {
		return 0, nil
	}

	rows, err := convertRows(table, plan)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{ref.Schema, ref.Table}, plan.names(), pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into %s: %s (%s): %w", ref, pgErr.Detail, pgErr.SQLState(), err)
		}
		return 0, fmt.Errorf("copy into %s: %w", ref, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// insertColumn pairs a file column with the declared target column.
type insertColumn struct {
	source int
	target core.ColumnDef
}

type insertPlan []insertColumn

func (p insertPlan) names() []string {
	names := make([]string, len(p))
	for i, c := range p {
		names[i] = c.target.Name
	}
	return names
}

// planColumns matches file columns to declared columns ignoring case and
// uses the declared spelling.
func planColumns(table core.ParsedTable, schema core.TableSchema) (insertPlan, error) {
	plan := make(insertPlan, 0, len(table.Columns))
	for i, name := range table.Columns {
		col, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("column %q is not in the target table", name)
		}
		plan = append(plan, insertColumn{source: i, target: col})
	}
	if len(plan) == 0 {
		return nil, errors.New("no columns to insert")
	}
	return plan, nil
}

func convertRows(table core.ParsedTable, plan insertPlan) ([][]any, error) {
	rows := make([][]any, len(table.Rows))
	for r, cells := range table.Rows {
		row := make([]any, len(plan))
		for i, c := range plan {
			v, err := core.ConvertCell(cells[c.source], c.target.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", r+1, c.target.Name, err)
			}
			if s, ok := v.(string); ok && c.target.Type == core.TypeBinary {
				v = []byte(s)
			}
			row[i] = v
		}
		rows[r] = row
	}
	return rows, nil
}

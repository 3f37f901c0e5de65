package core

import (
	"context"
	"io"
)

// TableStore is the warehouse and file volume the service works against.
//
// ReadDelimitedFile decodes a stored file with the given settings; limit > 0
// bounds the data rows returned and limit == 0 returns them all. BulkInsert
// matches the table's columns by name (case-insensitive), converts each cell
// to the declared column type and inserts every row in one transaction,
// returning the number of rows inserted. RemoveFile deletes a file written by
// PutFile; removing a missing file succeeds.
type TableStore interface {
	ListCatalogs(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, schema string) ([]string, error)
	DescribeTable(ctx context.Context, ref TableRef) (TableSchema, error)
	SampleRows(ctx context.Context, ref TableRef, limit int) (ParsedTable, error)

	ReadDelimitedFile(ctx context.Context, path string, settings ParseSettings, limit int) (ParsedTable, error)
	BulkInsert(ctx context.Context, ref TableRef, table ParsedTable) (int64, error)
	PutFile(ctx context.Context, r io.Reader, filename string) (string, error)
	RemoveFile(ctx context.Context, path string) error

	Ping(ctx context.Context) error
	Close() error
}

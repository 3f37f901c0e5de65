package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DataType is a warehouse column type, reduced to the vocabulary the
// validator reasons about.
type DataType string

const (
	TypeTinyInt   DataType = "TINYINT"
	TypeSmallInt  DataType = "SMALLINT"
	TypeInt       DataType = "INT"
	TypeBigInt    DataType = "BIGINT"
	TypeFloat     DataType = "FLOAT"
	TypeDouble    DataType = "DOUBLE"
	TypeDecimal   DataType = "DECIMAL"
	TypeBoolean   DataType = "BOOLEAN"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeDate      DataType = "DATE"
	TypeString    DataType = "STRING"
	TypeBinary    DataType = "BINARY"
	TypeArray     DataType = "ARRAY"
	TypeMap       DataType = "MAP"
	TypeStruct    DataType = "STRUCT"
	TypeVariant   DataType = "VARIANT"
)

// IsInteger reports whether t is one of the fixed-width integer types.
func (t DataType) IsInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt:
		return true
	}
	return false
}

// IsNumeric reports whether t has a rank in the numeric widening order.
func (t DataType) IsNumeric() bool {
	_, ok := numericRank[t]
	return ok
}

// RescuedDataColumn is the auxiliary column some warehouse readers attach to
// hold unparseable content. It is never shown, validated or inserted.
const RescuedDataColumn = "_rescued_data"

// TableRef identifies a warehouse table as catalog.schema.table.
type TableRef struct {
	Catalog string `json:"catalog" yaml:"catalog"`
	Schema  string `json:"schema" yaml:"schema"`
	Table   string `json:"table" yaml:"table"`
}

func (r TableRef) String() string {
	return r.Catalog + "." + r.Schema + "." + r.Table
}

// IsZero reports whether no part of the reference is set.
func (r TableRef) IsZero() bool {
	return r == TableRef{}
}

// Validate checks that all three parts are present.
func (r TableRef) Validate() error {
	if strings.TrimSpace(r.Catalog) == "" || strings.TrimSpace(r.Schema) == "" || strings.TrimSpace(r.Table) == "" {
		return fmt.Errorf("%w: catalog, schema and table are all required", ErrNoTarget)
	}
	return nil
}

// ParseTableRef parses "catalog.schema.table".
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("%w: %q is not catalog.schema.table", ErrNoTarget, s)
	}
	ref := TableRef{Catalog: parts[0], Schema: parts[1], Table: parts[2]}
	if err := ref.Validate(); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

// ParsedTable is a decoded file: ordered column names and positional rows.
// A cell with Valid=false is null. Rows always have len(Columns) cells.
type ParsedTable struct {
	Columns []string        `json:"columns"`
	Rows    [][]pgtype.Text `json:"rows"`
}

// EmptyTable returns a table with no columns and no rows.
func EmptyTable() ParsedTable {
	return ParsedTable{Columns: []string{}, Rows: [][]pgtype.Text{}}
}

// ColumnIndex returns the position of name (case-insensitive), or -1.
func (t ParsedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Value returns the cell at row for column, and false if either is unknown.
func (t ParsedTable) Value(row int, column string) (pgtype.Text, bool) {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return pgtype.Text{}, false
	}
	return t.Rows[row][i], true
}

// ColumnValues returns every cell of column i in row order.
func (t ParsedTable) ColumnValues(i int) []pgtype.Text {
	values := make([]pgtype.Text, len(t.Rows))
	for r, row := range t.Rows {
		values[r] = row[i]
	}
	return values
}

// WithoutRescued returns a copy of t without the rescued-data column.
// t is returned unchanged when it has no such column.
func (t ParsedTable) WithoutRescued() ParsedTable {
	drop := t.ColumnIndex(RescuedDataColumn)
	if drop < 0 {
		return t
	}

	out := ParsedTable{
		Columns: make([]string, 0, len(t.Columns)-1),
		Rows:    make([][]pgtype.Text, len(t.Rows)),
	}
	out.Columns = append(out.Columns, t.Columns[:drop]...)
	out.Columns = append(out.Columns, t.Columns[drop+1:]...)
	for r, row := range t.Rows {
		cells := make([]pgtype.Text, 0, len(row)-1)
		cells = append(cells, row[:drop]...)
		cells = append(cells, row[drop+1:]...)
		out.Rows[r] = cells
	}
	return out
}

// ColumnDef is one declared column of a target table.
type ColumnDef struct {
	Name    string   `json:"name" yaml:"name"`
	Type    DataType `json:"type" yaml:"type"`
	RawType string   `json:"raw_type,omitempty" yaml:"raw_type,omitempty"`
}

// TableSchema is the ordered list of declared columns of a target table.
type TableSchema struct {
	Columns []ColumnDef `json:"columns" yaml:"columns"`
}

// Lookup returns the declared column matching name case-insensitively.
func (s TableSchema) Lookup(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// WithoutRescued drops the rescued-data column from the declared columns.
func (s TableSchema) WithoutRescued() TableSchema {
	out := TableSchema{Columns: make([]ColumnDef, 0, len(s.Columns))}
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, RescuedDataColumn) {
			continue
		}
		out.Columns = append(out.Columns, c)
	}
	return out
}

// TypeIssue reports a column whose inferred file type cannot be stored in
// the declared column type.
type TypeIssue struct {
	Column   string   `json:"column" yaml:"column"`
	Inferred DataType `json:"inferred" yaml:"inferred"`
	Declared DataType `json:"declared" yaml:"declared"`
	Reason   string   `json:"reason" yaml:"reason"`
}

// ValueIssue reports cells that do not parse as the declared column type.
type ValueIssue struct {
	Column       string   `json:"column" yaml:"column"`
	Declared     DataType `json:"declared" yaml:"declared"`
	InvalidCount int      `json:"invalid_count" yaml:"invalid_count"`
	Samples      []string `json:"samples" yaml:"samples"`
}

// ValidationReport is the outcome of one validation run.
type ValidationReport struct {
	Target         TableRef     `json:"target" yaml:"target"`
	MissingColumns []string     `json:"missing_columns" yaml:"missing_columns"`
	ExtraColumns   []string     `json:"extra_columns" yaml:"extra_columns"`
	TypeIssues     []TypeIssue  `json:"type_issues" yaml:"type_issues"`
	ValueIssues    []ValueIssue `json:"value_issues" yaml:"value_issues"`
	RowsChecked    int          `json:"rows_checked" yaml:"rows_checked"`
	Error          string       `json:"error,omitempty" yaml:"error,omitempty"`
	Passed         bool         `json:"passed" yaml:"passed"`
}

// failedReport builds the single-finding report produced when a run cannot
// inspect the file or the target table.
func failedReport(target TableRef, err error) ValidationReport {
	return ValidationReport{
		Target:         target,
		MissingColumns: []string{},
		ExtraColumns:   []string{},
		TypeIssues:     []TypeIssue{},
		ValueIssues:    []ValueIssue{},
		Error:          err.Error(),
	}
}

// UploadedFile is a file persisted on the volume.
type UploadedFile struct {
	StoragePath      string    `json:"storage_path"`
	OriginalFilename string    `json:"original_filename"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

package core

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Infer returns the narrowest primitive type every non-null value satisfies,
// trying numeric, then timestamp, then boolean, then falling back to STRING.
// A numeric column is FLOAT if any value has a fractional part or exponent,
// otherwise INT. A column with no non-null values is STRING.
func Infer(values []pgtype.Text) DataType {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if !v.Valid {
			continue
		}
		if s := strings.TrimSpace(v.String); s != "" {
			present = append(present, s)
		}
	}
	if len(present) == 0 {
		return TypeString
	}

	if t, ok := inferNumeric(present); ok {
		return t
	}
	if allMatch(present, func(s string) bool { _, err := ParseDateTime(s); return err == nil }) {
		return TypeTimestamp
	}
	if allMatch(present, func(s string) bool { _, err := ParseBoolean(s); return err == nil }) {
		return TypeBoolean
	}
	return TypeString
}

// InferColumns infers a type for every column of t.
func InferColumns(t ParsedTable) []DataType {
	types := make([]DataType, len(t.Columns))
	for i := range t.Columns {
		types[i] = Infer(t.ColumnValues(i))
	}
	return types
}

func inferNumeric(values []string) (DataType, bool) {
	fractional := false
	for _, s := range values {
		if isIntegerLiteral(s) {
			continue
		}
		if !isFloatLiteral(s) {
			return "", false
		}
		fractional = true
	}
	if fractional {
		return TypeFloat, true
	}
	return TypeInt, true
}

func allMatch(values []string, ok func(string) bool) bool {
	for _, s := range values {
		if !ok(s) {
			return false
		}
	}
	return true
}

package core

// convert.go holds the value parsers shared by inference, value validation
// and insert conversion, so that a cell accepted by one is accepted by all.
//
// Text cells are converted to Go values that both pgx (COPY) and
// database/sql drivers accept: int64, float64, bool, time.Time, string and
// pgtype.Numeric for DECIMAL columns.

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation. Currency
// symbols and thousands separators are deliberately not accepted.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999 -0700",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"Jan 2, 2006 15:04:05",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

var booleanLiterals = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "1": true,
	"false": false, "f": false, "no": false, "n": false, "0": false,
}

// nullableText converts a raw field to a cell. Empty fields are null.
func nullableText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// isIntegerLiteral reports whether s is a base-10 integer of any magnitude.
func isIntegerLiteral(s string) bool {
	return integerRegex.MatchString(s)
}

// isFloatLiteral reports whether s is a finite decimal or scientific number.
func isFloatLiteral(s string) bool {
	if !numericRegex.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0)
}

// ParseInteger parses s as a base-10 integer that fits in bits.
func ParseInteger(s string, bits int) (int64, error) {
	s = strings.TrimSpace(s)
	if !isIntegerLiteral(s) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(s, "+"), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: out of range for %d-bit integer", s, bits)
	}
	return n, nil
}

// ParseFloat parses s as a finite float of the given bit size.
func ParseFloat(s string, bits int) (float64, error) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q: out of range", s)
	}
	return f, nil
}

// ParseBoolean parses the boolean vocabulary true/false, yes/no, t/f, y/n, 1/0.
func ParseBoolean(s string) (bool, error) {
	b, ok := booleanLiterals[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return b, nil
}

// ParseDateTime parses s as a timestamp or a date. Values without a zone are
// taken as UTC. Two-digit years are resolved with TwoDigitYearPivot.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Returns invalid if the string is empty or not a finite number.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(expandExponent(s)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// expandExponent rewrites scientific notation as a plain decimal string, which
// is the only form pgtype.Numeric scans. Other input is returned unchanged.
func expandExponent(s string) string {
	i := strings.IndexAny(s, "eE")
	if i < 0 {
		return s
	}
	exp, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return s
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return s
	}
	scale := 0
	if dot := strings.IndexByte(s[:i], '.'); dot >= 0 {
		scale = i - dot - 1
	}
	scale -= exp
	if scale < 0 {
		scale = 0
	}
	return r.FloatString(scale)
}

// integerBits returns the width of an integer type.
func integerBits(t DataType) int {
	switch t {
	case TypeTinyInt:
		return 8
	case TypeSmallInt:
		return 16
	case TypeInt:
		return 32
	default:
		return 64
	}
}

// CheckValue reports whether a non-null cell can be stored in a column of
// type declared. Types without a textual check always pass.
func CheckValue(s string, declared DataType) error {
	_, err := ConvertCell(pgtype.Text{String: s, Valid: true}, declared)
	return err
}

// ConvertCell converts a text cell to the Go value inserted for a column of
// type declared. Null cells convert to nil.
func ConvertCell(v pgtype.Text, declared DataType) (any, error) {
	if !v.Valid {
		return nil, nil
	}

	switch {
	case declared.IsInteger():
		return ParseInteger(v.String, integerBits(declared))
	case declared == TypeFloat:
		f, err := ParseFloat(v.String, 32)
		return f, err
	case declared == TypeDouble:
		return ParseFloat(v.String, 64)
	case declared == TypeDecimal:
		if _, err := ParseFloat(v.String, 64); err != nil {
			return nil, err
		}
		n := ToPgNumeric(v.String)
		if !n.Valid {
			return nil, fmt.Errorf("invalid number %q", v.String)
		}
		return n, nil
	case declared == TypeBoolean:
		return ParseBoolean(v.String)
	case declared == TypeTimestamp:
		return ParseDateTime(v.String)
	case declared == TypeDate:
		t, err := ParseDateTime(v.String)
		if err != nil {
			return nil, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	default:
		return v.String, nil
	}
}

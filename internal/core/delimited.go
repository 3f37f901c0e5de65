package core

// delimited.go decodes a delimited text file into a ParsedTable.
//
// Files quoted and escaped the RFC 4180 way (quote '"', escape '"') go through
// encoding/csv. Any other quote/escape combination goes through
// quotedRecordReader, because encoding/csv hard-codes the double quote.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// recordSource yields one record per call and io.EOF at the end. line is the
// 1-based line the record started on.
type recordSource interface {
	next() (record []string, line int, err error)
}

// ReadDelimited decodes r with settings. limit > 0 stops after that many data
// rows; limit == 0 reads the whole file. The header record, when present, is
// not counted against limit.
func ReadDelimited(r io.Reader, settings ParseSettings, limit int) (ParsedTable, error) {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return ParsedTable{}, err
	}

	text, err := DecodeReader(r, settings.Encoding)
	if err != nil {
		return ParsedTable{}, err
	}
	src := newRecordSource(text, settings)

	first, _, err := src.next()
	if errors.Is(err, io.EOF) {
		return ParsedTable{}, ErrEmptyFile
	}
	if err != nil {
		return ParsedTable{}, err
	}

	table := ParsedTable{Rows: [][]pgtype.Text{}}
	width := len(first)
	if settings.Header {
		table.Columns = HeaderNames(first)
	} else {
		table.Columns = SyntheticNames(width)
		table.Rows = append(table.Rows, toCells(first))
	}

	for limit <= 0 || len(table.Rows) < limit {
		record, line, err := src.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParsedTable{}, err
		}
		if len(record) != width {
			return ParsedTable{}, fmt.Errorf("%w: line %d has %d fields, expected %d", ErrRaggedRow, line, len(record), width)
		}
		table.Rows = append(table.Rows, toCells(record))
	}

	return table, nil
}

// SyntheticNames returns col_0 … col_{n-1}.
func SyntheticNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "col_" + strconv.Itoa(i)
	}
	return names
}

// HeaderNames turns a header record into unique column names. Names are
// trimmed, a blank name becomes col_<i>, and a name that repeats an earlier
// one (ignoring case) gets the suffix _<i>.
func HeaderNames(record []string) []string {
	names := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, raw := range record {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = "col_" + strconv.Itoa(i)
		}
		for seen[strings.ToLower(name)] {
			name = name + "_" + strconv.Itoa(i)
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func toCells(record []string) []pgtype.Text {
	cells := make([]pgtype.Text, len(record))
	for i, v := range record {
		cells[i] = nullableText(v)
	}
	return cells
}

func newRecordSource(r io.Reader, s ParseSettings) recordSource {
	if s.QuoteChar == `"` && s.EscapeChar == `"` {
		cr := csv.NewReader(r)
		cr.Comma = s.delimiterRune()
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = false
		return &csvSource{r: cr}
	}
	return &quotedRecordReader{
		r:      bufio.NewReader(r),
		delim:  s.delimiterRune(),
		quote:  s.quoteRune(),
		escape: s.escapeRune(),
		line:   1,
	}
}

type csvSource struct {
	r *csv.Reader
}

func (c *csvSource) next() ([]string, int, error) {
	record, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, pe.StartLine, fmt.Errorf("invalid csv: %w", err)
		}
		return nil, 0, err
	}
	line, _ := c.r.FieldPos(0)
	return record, line, nil
}

// quotedRecordReader splits records for arbitrary quote and escape runes.
//
// Inside a quoted field the escape rune makes the next rune literal. When the
// escape rune equals the quote rune, or there is no escape rune, a doubled
// quote is a literal quote. A quote that does not open a field is kept as
// data. Blank lines are skipped.
type quotedRecordReader struct {
	r      *bufio.Reader
	delim  rune
	quote  rune
	escape rune
	line   int
}

func (q *quotedRecordReader) next() ([]string, int, error) {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
		quoted   bool
		started  bool
		start    = q.line
	)

	for {
		c, _, err := q.r.ReadRune()
		if errors.Is(err, io.EOF) {
			if inQuotes {
				return nil, start, fmt.Errorf("%w starting on line %d", ErrUnterminatedQuote, start)
			}
			if !started {
				return nil, 0, io.EOF
			}
			return append(fields, field.String()), start, nil
		}
		if err != nil {
			return nil, start, err
		}

		if inQuotes {
			switch {
			case q.escape != 0 && q.escape != q.quote && c == q.escape:
				nextRune, _, err := q.r.ReadRune()
				if err != nil {
					field.WriteRune(c)
					continue
				}
				if nextRune == '\n' {
					q.line++
				}
				field.WriteRune(nextRune)
			case c == q.quote:
				if q.escape == q.quote || q.escape == 0 {
					if peek, _, err := q.r.ReadRune(); err == nil {
						if peek == q.quote {
							field.WriteRune(q.quote)
							continue
						}
						_ = q.r.UnreadRune()
					}
				}
				inQuotes = false
			default:
				if c == '\n' {
					q.line++
				}
				field.WriteRune(c)
			}
			continue
		}

		switch {
		case c == q.delim:
			started = true
			fields = append(fields, field.String())
			field.Reset()
			quoted = false
		case c == '\r' || c == '\n':
			if c == '\r' {
				if peek, _, err := q.r.ReadRune(); err == nil && peek != '\n' {
					_ = q.r.UnreadRune()
				}
			}
			q.line++
			if !started && field.Len() == 0 && !quoted {
				start = q.line
				continue
			}
			return append(fields, field.String()), start, nil
		case q.quote != 0 && c == q.quote && field.Len() == 0 && !quoted:
			started = true
			inQuotes = true
			quoted = true
		default:
			started = true
			field.WriteRune(c)
		}
	}
}

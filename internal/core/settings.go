package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ParseSettings controls how an uploaded file is decoded. It is a
// comparable value: two runs used the same settings iff the structs are ==.
type ParseSettings struct {
	Delimiter  string `json:"delimiter" yaml:"delimiter"`
	QuoteChar  string `json:"quote_char" yaml:"quote_char"`
	EscapeChar string `json:"escape_char" yaml:"escape_char"`
	Header     bool   `json:"header" yaml:"header"`
	Encoding   string `json:"encoding" yaml:"encoding"`
}

// DefaultParseSettings returns comma-delimited, double-quoted, headered UTF-8.
func DefaultParseSettings() ParseSettings {
	return ParseSettings{
		Delimiter:  ",",
		QuoteChar:  `"`,
		EscapeChar: `"`,
		Header:     true,
		Encoding:   EncodingUTF8,
	}
}

// SettingsForFile returns the default settings for filename. TSV files
// default to a tab delimiter.
func SettingsForFile(filename string) ParseSettings {
	s := DefaultParseSettings()
	if strings.EqualFold(filepath.Ext(filename), ".tsv") {
		s.Delimiter = "\t"
	}
	return s
}

// Normalize fills an empty delimiter or encoding with the default and
// canonicalises the encoding name. The quote and escape characters are kept
// as given: empty means "none".
func (s ParseSettings) Normalize() ParseSettings {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.Delimiter == `\t` {
		s.Delimiter = "\t"
	}
	if strings.TrimSpace(s.Encoding) == "" {
		s.Encoding = EncodingUTF8
	}
	s.Encoding = canonicalEncoding(s.Encoding)
	return s
}

// Validate reports settings the reader cannot honour.
func (s ParseSettings) Validate() error {
	var problems []string

	if utf8.RuneCountInString(s.Delimiter) != 1 {
		problems = append(problems, fmt.Sprintf("delimiter %q must be a single character", s.Delimiter))
	} else if s.Delimiter == "\n" || s.Delimiter == "\r" {
		problems = append(problems, "delimiter cannot be a line break")
	}
	if utf8.RuneCountInString(s.QuoteChar) > 1 {
		problems = append(problems, fmt.Sprintf("quote character %q must be a single character or empty", s.QuoteChar))
	}
	if utf8.RuneCountInString(s.EscapeChar) > 1 {
		problems = append(problems, fmt.Sprintf("escape character %q must be a single character or empty", s.EscapeChar))
	}
	if s.QuoteChar != "" && s.QuoteChar == s.Delimiter {
		problems = append(problems, "quote character and delimiter must differ")
	}
	if s.EscapeChar != "" && s.EscapeChar == s.Delimiter {
		problems = append(problems, "escape character and delimiter must differ")
	}
	if !IsSupportedEncoding(s.Encoding) {
		problems = append(problems, fmt.Sprintf("encoding %q is not one of %s", s.Encoding, strings.Join(SupportedEncodings, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// delimiterRune and friends assume Validate has passed. 0 means "none".
func (s ParseSettings) delimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(s.Delimiter)
	return r
}

func (s ParseSettings) quoteRune() rune {
	if s.QuoteChar == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.QuoteChar)
	return r
}

func (s ParseSettings) escapeRune() rune {
	if s.EscapeChar == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.EscapeChar)
	return r
}

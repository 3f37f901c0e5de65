package core

// encoding.go turns raw file bytes into UTF-8 text for the delimited reader.
//
//   - utf-8:      leading BOM stripped, invalid sequences become U+FFFD
//   - ascii:      any byte >= 0x80 is an encoding error
//   - iso-8859-1: every byte maps to the rune of the same value
//   - utf-16:     big endian unless a BOM says otherwise

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingASCII  = "ascii"
	EncodingLatin1 = "iso-8859-1"
	EncodingUTF16  = "utf-16"
)

// SupportedEncodings lists the encodings offered in the settings panel.
var SupportedEncodings = []string{EncodingUTF8, EncodingASCII, EncodingLatin1, EncodingUTF16}

var encodingAliases = map[string]string{
	"utf8":       EncodingUTF8,
	"us-ascii":   EncodingASCII,
	"latin1":     EncodingLatin1,
	"latin-1":    EncodingLatin1,
	"iso8859-1":  EncodingLatin1,
	"iso_8859-1": EncodingLatin1,
	"utf16":      EncodingUTF16,
}

func canonicalEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canon, ok := encodingAliases[name]; ok {
		return canon
	}
	return name
}

// IsSupportedEncoding reports whether name (or an alias of it) can be decoded.
func IsSupportedEncoding(name string) bool {
	name = canonicalEncoding(name)
	for _, e := range SupportedEncodings {
		if e == name {
			return true
		}
	}
	return false
}

// DecodeReader wraps r so that reads yield UTF-8 text decoded from encoding.
func DecodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch canonicalEncoding(encoding) {
	case EncodingUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	case EncodingASCII:
		return transform.NewReader(r, &asciiValidator{}), nil
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case EncodingUTF16:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidSettings, encoding)
	}
}

// asciiValidator copies 7-bit bytes through and fails on anything else.
type asciiValidator struct {
	transform.NopResetter
	offset int64
}

func (a *asciiValidator) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
		err = transform.ErrShortDst
	}
	for i := 0; i < n; i++ {
		if src[i] >= 0x80 {
			copy(dst, src[:i])
			a.offset += int64(i)
			return i, i, fmt.Errorf("%w: byte 0x%02x at offset %d is not ascii", ErrInvalidEncoding, src[i], a.offset)
		}
	}
	copy(dst, src[:n])
	a.offset += int64(n)
	return n, n, err
}

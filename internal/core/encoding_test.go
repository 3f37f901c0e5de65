package core

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func decodeAll(t *testing.T, data []byte, encoding string) (string, error) {
	t.Helper()
	r, err := DecodeReader(strings.NewReader(string(data)), encoding)
	if err != nil {
		t.Fatalf("DecodeReader(%q) error = %v", encoding, err)
	}
	out, err := io.ReadAll(r)
	return string(out), err
}

func TestDecodeReader(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		encoding string
		want     string
	}{
		{"utf-8 plain", []byte("a,b\n1,2\n"), "utf-8", "a,b\n1,2\n"},
		{"utf-8 strips BOM", []byte("\xEF\xBB\xBFid\n1\n"), "utf-8", "id\n1\n"},
		{"utf-8 keeps multibyte", []byte("名前\nJosé\n"), "UTF8", "名前\nJosé\n"},
		{"utf-8 replaces invalid bytes", []byte("a\xffb"), "utf-8", "a\uFFFDb"},
		{"ascii", []byte("plain,text\n"), "ascii", "plain,text\n"},
		{"latin1", []byte("caf\xe9\n"), "iso-8859-1", "café\n"},
		{"utf-16 little endian with BOM", []byte("\xFF\xFEa\x00,\x00b\x00"), "utf-16", "a,b"},
		{"utf-16 big endian with BOM", []byte("\xFE\xFF\x00a\x00,\x00b"), "utf-16", "a,b"},
		{"utf-16 without BOM is big endian", []byte("\x00x\x00y"), "utf-16", "xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAll(t, tt.data, tt.encoding)
			if err != nil {
				t.Fatalf("read error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decoded = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeReader_ASCIIRejectsHighBytes(t *testing.T) {
	_, err := decodeAll(t, []byte("ok\ncaf\xe9\n"), "ascii")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("error = %v, want ErrInvalidEncoding", err)
	}
	if !strings.Contains(err.Error(), "offset 6") {
		t.Errorf("error should report the byte offset: %v", err)
	}
}

func TestDecodeReader_Unsupported(t *testing.T) {
	if _, err := DecodeReader(strings.NewReader(""), "ebcdic"); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("error = %v, want ErrInvalidSettings", err)
	}
}

func TestIsSupportedEncoding(t *testing.T) {
	for _, name := range []string{"utf-8", "UTF-8", "utf8", "ascii", "us-ascii", "latin1", "ISO-8859-1", "utf-16"} {
		if !IsSupportedEncoding(name) {
			t.Errorf("IsSupportedEncoding(%q) = false, want true", name)
		}
	}
	if IsSupportedEncoding("windows-1252") {
		t.Error("IsSupportedEncoding(windows-1252) = true, want false")
	}
}

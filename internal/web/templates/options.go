// Package templates renders the HTML pages of the upload tool. The .templ
// files are the source; the *_templ.go files are generated from them with
// `templ generate`. Pages are thin shells and the inline script fetches data
// from the JSON API.
package templates

import (
	"github.com/JonMunkholm/csvappend/internal/core"
)

// Option is one entry of a settings drop-down.
type Option struct {
	Value string
	Label string
}

var (
	DelimiterOptions = []Option{
		{",", "Comma (,)"}, {";", "Semicolon (;)"}, {`\t`, "Tab"}, {"|", "Pipe (|)"}, {" ", "Space"},
	}
	QuoteOptions = []Option{
		{`"`, `Double quote (")`}, {"'", "Single quote (')"}, {"", "None"},
	}
	EscapeOptions = []Option{
		{`"`, `Double quote (")`}, {"'", "Single quote (')"}, {`\`, `Backslash (\)`}, {"", "None"},
	}
)

// delimiterValue maps a tab to the escaped form the drop-down uses.
func delimiterValue(d string) string {
	if d == "\t" {
		return `\t`
	}
	return d
}

func previewSummary(p core.PreviewResult) string {
	if !p.OK() {
		return p.Error
	}
	return p.Summary
}

func typeAt(types []core.DataType, i int) string {
	if i < len(types) {
		return string(types[i])
	}
	return ""
}

const baseCSS = `
body{font-family:system-ui,sans-serif;margin:0;color:#1f2937}
nav{padding:.75rem 1.5rem;background:#111827}
nav a{color:#f9fafb;margin-right:1rem;text-decoration:none}
main{padding:1.5rem;max-width:72rem}
fieldset{border:1px solid #d1d5db;margin-bottom:1rem}
table{border-collapse:collapse;font-size:.875rem}
th,td{border:1px solid #e5e7eb;padding:.25rem .5rem;text-align:left}
th small{display:block;color:#6b7280}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:.5rem;margin:.5rem 0}
.ok{color:#047857}.bad{color:#b91c1c}
`

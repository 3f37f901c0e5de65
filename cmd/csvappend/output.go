package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvappend/internal/core"
)

// render writes v in the requested output format. Text output is produced
// by text; json and yaml follow the types' json tags.
func render[T any](w io.Writer, format string, v T, text func(io.Writer, T) error) error {
	switch strings.ToLower(format) {
	case "", "text":
		return text(w, v)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		return writeYAML(w, v)
	}
	return fmt.Errorf("unknown output format %q: use text, json or yaml", format)
}

// writeYAML converts v through its JSON form, so cells and nulls print the
// same way in both formats and field order is kept.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func writeNamesText(w io.Writer, names []string) error {
	for _, n := range names {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}

func writePreviewText(w io.Writer, res core.PreviewResult) error {
	if !res.OK() {
		_, err := fmt.Fprintln(w, res.Error)
		return err
	}
	if err := writeTable(w, res.Table, res.Types); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, res.Summary)
	return err
}

func writeTablePreviewText(w io.Writer, p core.TablePreview) error {
	fmt.Fprintf(w, "%s\n\n", p.Target)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tDECLARED")
	for _, c := range p.Schema.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Type, c.RawType)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(p.Sample.Rows) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return writeTable(w, p.Sample, nil)
}

func writeTable(w io.Writer, t core.ParsedTable, types []core.DataType) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	if len(types) == len(t.Columns) && len(types) > 0 {
		names := make([]string, len(types))
		for i, dt := range types {
			names[i] = string(dt)
		}
		fmt.Fprintln(tw, strings.Join(names, "\t"))
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c.Valid {
				cells[i] = c.String
			} else {
				cells[i] = "NULL"
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func writeReportText(w io.Writer, r core.ValidationReport) error {
	if r.Passed {
		_, err := fmt.Fprintf(w, "PASSED: %d rows checked against %s\n", r.RowsChecked, r.Target)
		return err
	}

	fmt.Fprintf(w, "FAILED: %s\n", r.Target)
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	if len(r.MissingColumns) > 0 {
		fmt.Fprintf(w, "  missing columns: %s\n", strings.Join(r.MissingColumns, ", "))
	}
	if len(r.ExtraColumns) > 0 {
		fmt.Fprintf(w, "  extra columns: %s\n", strings.Join(r.ExtraColumns, ", "))
	}
	for _, ti := range r.TypeIssues {
		fmt.Fprintf(w, "  type: %s is %s, table expects %s (%s)\n", ti.Column, ti.Inferred, ti.Declared, ti.Reason)
	}
	for _, vi := range r.ValueIssues {
		fmt.Fprintf(w, "  values: %s has %d invalid %s values, e.g. %s\n",
			vi.Column, vi.InvalidCount, vi.Declared, strings.Join(vi.Samples, ", "))
	}
	return nil
}

func writeAppendText(w io.Writer, r appendResult) error {
	_, err := fmt.Fprintf(w, "Appended %d rows to %s\n", r.RowsInserted, r.Target)
	return err
}

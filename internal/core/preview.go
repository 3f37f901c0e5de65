package core

import (
	"context"
	"fmt"
)

// PreviewResult is what the preview pane renders. On failure Table is empty
// and Error holds a human-readable message.
type PreviewResult struct {
	Table   ParsedTable `json:"table"`
	Types   []DataType  `json:"types"`
	Summary string      `json:"summary,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK reports whether the preview succeeded.
func (p PreviewResult) OK() bool {
	return p.Error == ""
}

// Preview decodes up to limit data rows of the file at path with settings.
// limit == 0 decodes the whole file and a negative limit uses the configured
// preview row count. Preview never fails: errors are folded
// into the result so the pane can show them in place of the table.
func (s *Service) Preview(ctx context.Context, path string, settings ParseSettings, limit int) PreviewResult {
	if limit < 0 {
		limit = s.opts.PreviewRows
	}

	table, err := s.store.ReadDelimitedFile(ctx, path, settings, limit)
	if err != nil {
		s.logger(ctx).Debug("preview failed", "path", path, "error", err)
		return PreviewResult{
			Table: EmptyTable(),
			Types: []DataType{},
			Error: fmt.Sprintf("Error reading file: %v", err),
		}
	}

	table = table.WithoutRescued()
	return PreviewResult{
		Table:   table,
		Types:   InferColumns(table),
		Summary: fmt.Sprintf("Showing %d rows, %d columns", len(table.Rows), len(table.Columns)),
	}
}

package core

// validate.go compares a parsed file with a target table's declared schema.
//
// Findings are collected in four lists and aggregated before gating:
//  1. Missing columns: declared in the table, absent from the file
//  2. Extra columns: present in the file, not declared in the table
//  3. Type issues: the column's inferred type cannot widen to the declared type
//  4. Value issues: individual cells that do not parse as the declared type
//
// Column names are matched case-insensitively.

import (
	"context"
	"strings"
)

// maxValueSamples bounds the offending values kept per column.
const maxValueSamples = 5

// CheckSchema validates table against schema. It is pure: the same inputs
// always produce the same report. The rescued-data column is ignored on both
// sides.
func CheckSchema(table ParsedTable, schema TableSchema) ValidationReport {
	table = table.WithoutRescued()
	schema = schema.WithoutRescued()

	report := ValidationReport{
		MissingColumns: []string{},
		ExtraColumns:   []string{},
		TypeIssues:     []TypeIssue{},
		ValueIssues:    []ValueIssue{},
		RowsChecked:    len(table.Rows),
	}

	for _, col := range schema.Columns {
		if table.ColumnIndex(col.Name) < 0 {
			report.MissingColumns = append(report.MissingColumns, col.Name)
		}
	}

	type shared struct {
		index int
		name  string
		decl  DataType
	}
	var common []shared
	for i, name := range table.Columns {
		col, ok := schema.Lookup(name)
		if !ok {
			report.ExtraColumns = append(report.ExtraColumns, name)
			continue
		}
		common = append(common, shared{index: i, name: name, decl: col.Type})
	}

	for _, c := range common {
		inferred := Infer(table.ColumnValues(c.index))
		if !Compatible(inferred, c.decl) {
			report.TypeIssues = append(report.TypeIssues, TypeIssue{
				Column:   c.name,
				Inferred: inferred,
				Declared: c.decl,
				Reason:   IncompatibilityReason(inferred, c.decl),
			})
		}
	}

	for _, c := range common {
		if !needsValueCheck(c.decl) {
			continue
		}
		if issue, bad := checkColumnValues(table, c.index, c.name, c.decl); bad {
			report.ValueIssues = append(report.ValueIssues, issue)
		}
	}

	report.Passed = len(report.MissingColumns) == 0 &&
		len(report.ExtraColumns) == 0 &&
		len(report.TypeIssues) == 0 &&
		len(report.ValueIssues) == 0
	return report
}

func needsValueCheck(t DataType) bool {
	return t.IsNumeric() || t == TypeDate || t == TypeTimestamp || t == TypeBoolean
}

func checkColumnValues(table ParsedTable, index int, name string, declared DataType) (ValueIssue, bool) {
	issue := ValueIssue{Column: name, Declared: declared, Samples: []string{}}
	for _, row := range table.Rows {
		cell := row[index]
		if !cell.Valid || strings.TrimSpace(cell.String) == "" {
			continue
		}
		if err := CheckValue(cell.String, declared); err != nil {
			issue.InvalidCount++
			if len(issue.Samples) < maxValueSamples {
				issue.Samples = append(issue.Samples, cell.String)
			}
		}
	}
	return issue, issue.InvalidCount > 0
}

// Validate runs one validation of the file at path against target. Failures
// to describe the table or read the file come back as a report with Error
// set and Passed false; Validate never returns an error.
func (s *Service) Validate(ctx context.Context, path string, target TableRef, settings ParseSettings) ValidationReport {
	logger := s.logger(ctx).With("path", path, "target", target.String())

	if err := target.Validate(); err != nil {
		return failedReport(target, stageErr(StageValidate, err))
	}

	release, err := s.limiter.Acquire(ctx, StageValidate)
	if err != nil {
		return failedReport(target, stageErr(StageValidate, err))
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	schema, err := s.store.DescribeTable(ctx, target)
	if err != nil {
		logger.Warn("validation could not describe table", "error", err)
		return failedReport(target, stageErr(StageValidate, err))
	}

	table, err := s.store.ReadDelimitedFile(ctx, path, settings, 0)
	if err != nil {
		logger.Warn("validation could not read file", "error", err)
		return failedReport(target, stageErr(StageValidate, err))
	}

	report := CheckSchema(table, schema)
	report.Target = target

	logger.Info("validation finished",
		"passed", report.Passed,
		"rows", report.RowsChecked,
		"missing", len(report.MissingColumns),
		"extra", len(report.ExtraColumns),
		"type_issues", len(report.TypeIssues),
		"value_issues", len(report.ValueIssues),
	)
	return report
}

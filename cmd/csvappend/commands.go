package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvappend/internal/core"
)

// errValidationFailed is returned when a file does not pass validation.
var errValidationFailed = errors.New("validation failed")

func newPreviewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the first rows of a file as the parse settings decode them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeStore, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := uploadArg(cmd, svc, args[0])
			if err != nil {
				return err
			}
			defer svc.EndSession(context.WithoutCancel(ctx), sess)
			res := svc.PreviewSession(ctx, sess, opts.settings(cmd, args[0]))
			if err := render(cmd.OutOrStdout(), opts.output, res, writePreviewText); err != nil {
				return err
			}
			if !res.OK() {
				return errors.New(res.Error)
			}
			return nil
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "validate FILE --table CATALOG.SCHEMA.TABLE",
		Short: "Check a file against a table without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := core.ParseTableRef(table)
			if err != nil {
				return err
			}
			svc, closeStore, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := uploadArg(cmd, svc, args[0])
			if err != nil {
				return err
			}
			defer svc.EndSession(context.WithoutCancel(ctx), sess)
			if err := sess.SelectTarget(target); err != nil {
				return err
			}
			report, err := svc.ValidateSession(ctx, sess, opts.settings(cmd, args[0]))
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), opts.output, report, writeReportText); err != nil {
				return err
			}
			if !report.Passed {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "target table as catalog.schema.table")
	cmd.MarkFlagRequired("table")
	return cmd
}

// appendResult is the outcome of the append command.
type appendResult struct {
	Target       core.TableRef         `json:"target" yaml:"target"`
	RowsInserted int64                 `json:"rows_inserted" yaml:"rows_inserted"`
	Report       core.ValidationReport `json:"report" yaml:"report"`
}

func newAppendCmd(opts *options) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "append FILE --table CATALOG.SCHEMA.TABLE",
		Short: "Validate a file and append it to a table if it passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := core.ParseTableRef(table)
			if err != nil {
				return err
			}
			svc, closeStore, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := uploadArg(cmd, svc, args[0])
			if err != nil {
				return err
			}
			defer svc.EndSession(context.WithoutCancel(ctx), sess)
			if err := sess.SelectTarget(target); err != nil {
				return err
			}
			settings := opts.settings(cmd, args[0])
			report, err := svc.ValidateSession(ctx, sess, settings)
			if err != nil {
				return err
			}
			if !report.Passed {
				if err := render(cmd.OutOrStdout(), opts.output, report, writeReportText); err != nil {
					return err
				}
				return errValidationFailed
			}

			inserted, err := svc.AppendSession(ctx, sess, settings)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, appendResult{
				Target:       target,
				RowsInserted: inserted,
				Report:       report,
			}, writeAppendText)
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "target table as catalog.schema.table")
	cmd.MarkFlagRequired("table")
	return cmd
}

func newCatalogsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogs",
		Short: "List catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := svc.ListCatalogs(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, names, writeNamesText)
		},
	}
}

func newSchemasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas CATALOG",
		Short: "List the schemas of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := svc.ListSchemas(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, names, writeNamesText)
		},
	}
}

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables CATALOG.SCHEMA",
		Short: "List the tables of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, schema, ok := strings.Cut(args[0], ".")
			if !ok || catalog == "" || schema == "" {
				return fmt.Errorf("%q is not catalog.schema", args[0])
			}
			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := svc.ListTables(cmd.Context(), catalog, schema)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, names, writeNamesText)
		},
	}
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe CATALOG.SCHEMA.TABLE",
		Short: "Show a table's columns and a few of its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := core.ParseTableRef(args[0])
			if err != nil {
				return err
			}
			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			preview, err := svc.TablePreview(cmd.Context(), target)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, preview, writeTablePreviewText)
		},
	}
}

// uploadArg copies the file at path onto the store's volume and returns a
// fresh session holding it. Callers end the session when the command is done
// so the stored copy does not outlive the run.
func uploadArg(cmd *cobra.Command, svc *core.Service, path string) (*core.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	sess := svc.Sessions().Create()
	if _, err := svc.UploadToSession(cmd.Context(), sess, filepath.Base(path), info.Size(), f); err != nil {
		svc.Sessions().Delete(sess.ID)
		return nil, err
	}
	return sess, nil
}

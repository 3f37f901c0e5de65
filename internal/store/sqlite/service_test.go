package sqlite

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvappend/internal/core"
)

// TestServiceFlow drives upload, preview, validation and append through the
// core service against a real SQLite database.
func TestServiceFlow(t *testing.T) {
	s := openTestStore(t, "CREATE TABLE orders (id INTEGER, amount DOUBLE, region TEXT)")
	ordersRef := core.TableRef{Catalog: Catalog, Schema: "main", Table: "orders"}
	svc, err := core.NewServiceWithOptions(s, core.Options{})
	if err != nil {
		t.Fatalf("NewServiceWithOptions() error = %v", err)
	}
	ctx := context.Background()
	sess := svc.Sessions().Create()

	content := "id;amount;region\n1;12,5;EU\n2;3;US\n"
	if _, err := svc.UploadToSession(ctx, sess, "sales.csv", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}
	if err := sess.SelectTarget(ordersRef); err != nil {
		t.Fatalf("SelectTarget() error = %v", err)
	}

	// With the default comma delimiter the "12,5" row is ragged.
	preview := svc.PreviewSession(ctx, sess, core.DefaultParseSettings())
	if preview.OK() || !strings.Contains(preview.Error, "line 2") {
		t.Fatalf("preview with comma = %+v, want ragged row error on line 2", preview)
	}

	settings := core.DefaultParseSettings()
	settings.Delimiter = ";"
	preview = svc.PreviewSession(ctx, sess, settings)
	if preview.Summary != "Showing 2 rows, 3 columns" {
		t.Errorf("Summary = %q", preview.Summary)
	}

	// "12,5" is not a number, so amount fails validation.
	report, err := svc.ValidateSession(ctx, sess, settings)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if report.Passed || len(report.TypeIssues) != 1 || report.TypeIssues[0].Column != "amount" {
		t.Fatalf("report = %+v, want one type issue on amount", report)
	}
	if _, err := svc.AppendSession(ctx, sess, settings); !errors.Is(err, core.ErrNotValidated) {
		t.Fatalf("AppendSession() error = %v, want ErrNotValidated", err)
	}

	content = "id;amount;region\n1;12.5;EU\n2;3;US\n"
	if _, err := svc.UploadToSession(ctx, sess, "sales.csv", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}
	if err := sess.SelectTarget(ordersRef); err != nil {
		t.Fatalf("SelectTarget() error = %v", err)
	}

	report, err = svc.ValidateSession(ctx, sess, settings)
	if err != nil || !report.Passed {
		t.Fatalf("ValidateSession() = %+v, %v; want passing report", report, err)
	}
	inserted, err := svc.AppendSession(ctx, sess, settings)
	if err != nil {
		t.Fatalf("AppendSession() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	tp, err := svc.TablePreview(ctx, ordersRef)
	if err != nil {
		t.Fatalf("TablePreview() error = %v", err)
	}
	if len(tp.Sample.Rows) != 2 || len(tp.Schema.Columns) != 3 {
		t.Errorf("TablePreview() = %d rows, %d columns; want 2 and 3", len(tp.Sample.Rows), len(tp.Schema.Columns))
	}
}

// TestServiceFlow_LargeIntegers appends values past the 32-bit range into an
// INTEGER column, which SQLite stores as 64 bits.
func TestServiceFlow_LargeIntegers(t *testing.T) {
	s := openTestStore(t, "CREATE TABLE big (id INTEGER)")
	ref := core.TableRef{Catalog: Catalog, Schema: "main", Table: "big"}
	svc, err := core.NewServiceWithOptions(s, core.Options{})
	if err != nil {
		t.Fatalf("NewServiceWithOptions() error = %v", err)
	}
	ctx := context.Background()
	sess := svc.Sessions().Create()

	content := "id\n3000000000\n-9000000000\n"
	if _, err := svc.UploadToSession(ctx, sess, "big.csv", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}
	if err := sess.SelectTarget(ref); err != nil {
		t.Fatalf("SelectTarget() error = %v", err)
	}

	report, err := svc.ValidateSession(ctx, sess, core.DefaultParseSettings())
	if err != nil || !report.Passed {
		t.Fatalf("ValidateSession() = %+v, %v; want passing report", report, err)
	}
	if _, err := svc.AppendSession(ctx, sess, core.DefaultParseSettings()); err != nil {
		t.Fatalf("AppendSession() error = %v", err)
	}

	var largest int64
	if err := s.db.QueryRow("SELECT MAX(id) FROM big").Scan(&largest); err != nil {
		t.Fatalf("max: %v", err)
	}
	if largest != 3000000000 {
		t.Errorf("MAX(id) = %d, want 3000000000", largest)
	}
}

func TestUploadToSession_ReplacesStoredFile(t *testing.T) {
	s := openTestStore(t)
	svc, err := core.NewServiceWithOptions(s, core.Options{})
	if err != nil {
		t.Fatalf("NewServiceWithOptions() error = %v", err)
	}
	ctx := context.Background()
	sess := svc.Sessions().Create()

	for _, name := range []string{"first.csv", "second.csv"} {
		content := "id\n1\n"
		if _, err := svc.UploadToSession(ctx, sess, name, int64(len(content)), strings.NewReader(content)); err != nil {
			t.Fatalf("UploadToSession(%s) error = %v", name, err)
		}
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("volume holds %d uploads, want 1", len(entries))
	}
	file, _ := sess.File()
	if _, err := os.Stat(file.StoragePath); err != nil {
		t.Errorf("current upload missing: %v", err)
	}
}

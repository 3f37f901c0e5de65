package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var salesRef = TableRef{Catalog: "main", Schema: "finance", Table: "sales"}

func newTestService(t *testing.T, store *fakeStore, opts Options) *Service {
	t.Helper()
	svc, err := NewServiceWithOptions(store, opts)
	if err != nil {
		t.Fatalf("NewServiceWithOptions() error = %v", err)
	}
	return svc
}

// uploadSession creates a session holding content as filename with target selected.
func uploadSession(t *testing.T, svc *Service, filename, content string, target TableRef) *Session {
	t.Helper()
	sess := svc.Sessions().Create()
	if _, err := svc.UploadToSession(context.Background(), sess, filename, int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}
	if !target.IsZero() {
		if err := sess.SelectTarget(target); err != nil {
			t.Fatalf("SelectTarget() error = %v", err)
		}
	}
	return sess
}

func TestNewServiceWithOptions_RequiresStore(t *testing.T) {
	if _, err := NewServiceWithOptions(nil, Options{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestNewServiceWithOptions_Defaults(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero", Options{}},
		{"negative", Options{MaxFileSize: -1, PreviewRows: -1, SampleRows: -1, MaxConcurrentRuns: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newFakeStore(), tt.opts)
			if got, want := svc.Options(), DefaultOptions(); got != want {
				t.Errorf("Options() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestTablePreview_DefaultSample(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeBigInt})
	for i := 1; i <= 7; i++ {
		store.tables[salesRef].rows = append(store.tables[salesRef].rows, []any{int64(i)})
	}
	svc := newTestService(t, store, Options{})

	tp, err := svc.TablePreview(context.Background(), salesRef)
	if err != nil {
		t.Fatalf("TablePreview() error = %v", err)
	}
	if got, want := len(tp.Sample.Rows), DefaultOptions().SampleRows; got != want {
		t.Errorf("sample rows = %d, want %d", got, want)
	}
}

func TestValidate_IntegerColumnPasses(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/ids.csv", "id\n1\n2\n")
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt, RawType: "int"})
	svc := newTestService(t, store, Options{})

	report := svc.Validate(context.Background(), "/volume/ids.csv", salesRef, DefaultParseSettings())

	if !report.Passed {
		t.Fatalf("Passed = false, report = %+v", report)
	}
	if report.RowsChecked != 2 {
		t.Errorf("RowsChecked = %d, want 2", report.RowsChecked)
	}
	if report.Target != salesRef {
		t.Errorf("Target = %v, want %v", report.Target, salesRef)
	}
}

func TestValidate_StringValuesInDoubleColumn(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/amounts.csv", "amount\n12.5\nabc\n")
	store.addTable(salesRef, ColumnDef{Name: "amount", Type: TypeDouble, RawType: "double precision"})
	svc := newTestService(t, store, Options{})

	report := svc.Validate(context.Background(), "/volume/amounts.csv", salesRef, DefaultParseSettings())

	if report.Passed {
		t.Fatal("Passed = true, want false")
	}
	if len(report.TypeIssues) != 1 {
		t.Fatalf("TypeIssues = %+v, want one issue", report.TypeIssues)
	}
	issue := report.TypeIssues[0]
	if issue.Column != "amount" || issue.Inferred != TypeString || issue.Declared != TypeDouble {
		t.Errorf("TypeIssue = %+v, want amount STRING -> DOUBLE", issue)
	}
	if len(report.ValueIssues) != 1 || !reflect.DeepEqual(report.ValueIssues[0].Samples, []string{"abc"}) {
		t.Errorf("ValueIssues = %+v, want samples [abc]", report.ValueIssues)
	}
}

func TestValidate_DescribeFailureIsReported(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/ids.csv", "id\n1\n")
	svc := newTestService(t, store, Options{})

	report := svc.Validate(context.Background(), "/volume/ids.csv", salesRef, DefaultParseSettings())

	if report.Passed {
		t.Fatal("Passed = true, want false")
	}
	if !strings.Contains(report.Error, "table not found") {
		t.Errorf("Error = %q, want it to mention the missing table", report.Error)
	}
	if store.readCalls != 0 {
		t.Errorf("readCalls = %d, want 0 when the table cannot be described", store.readCalls)
	}
}

func TestValidate_RequiresTarget(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})

	report := svc.Validate(context.Background(), "/volume/x.csv", TableRef{Catalog: "main"}, DefaultParseSettings())
	if report.Passed || report.Error == "" {
		t.Errorf("report = %+v, want failed report with error", report)
	}
	if store.describeCalls != 0 {
		t.Errorf("describeCalls = %d, want 0", store.describeCalls)
	}
}

func TestSession_MissingColumnBlocksAppend(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef,
		ColumnDef{Name: "id", Type: TypeInt},
		ColumnDef{Name: "region", Type: TypeString},
	)
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "sales.csv", "id\n1\n2\n", salesRef)
	ctx := context.Background()

	report, err := svc.ValidateSession(ctx, sess, DefaultParseSettings())
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if report.Passed {
		t.Fatal("Passed = true, want false")
	}
	if !reflect.DeepEqual(report.MissingColumns, []string{"region"}) {
		t.Errorf("MissingColumns = %v, want [region]", report.MissingColumns)
	}
	if got := sess.State().Validation; got != ValidationFailed {
		t.Errorf("Validation = %s, want %s", got, ValidationFailed)
	}

	_, err = svc.AppendSession(ctx, sess, DefaultParseSettings())
	if !errors.Is(err, ErrNotValidated) {
		t.Fatalf("AppendSession() error = %v, want ErrNotValidated", err)
	}
	if store.insertCalls != 0 {
		t.Errorf("insertCalls = %d, want 0", store.insertCalls)
	}
}

func TestSession_AppendAfterPassingValidation(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef,
		ColumnDef{Name: "id", Type: TypeBigInt},
		ColumnDef{Name: "amount", Type: TypeDouble},
	)
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "sales.csv", "ID,Amount\n1,12.5\n2,\n", salesRef)
	ctx := context.Background()

	report, err := svc.ValidateSession(ctx, sess, DefaultParseSettings())
	if err != nil || !report.Passed {
		t.Fatalf("ValidateSession() = %+v, %v; want passing report", report, err)
	}
	if !sess.State().CanAppend {
		t.Fatal("CanAppend = false after passing validation")
	}

	inserted, err := svc.AppendSession(ctx, sess, DefaultParseSettings())
	if err != nil {
		t.Fatalf("AppendSession() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if got := store.rowCount(salesRef); got != 2 {
		t.Errorf("table rows = %d, want 2", got)
	}

	// The gate closes after a successful append.
	if _, err := svc.AppendSession(ctx, sess, DefaultParseSettings()); !errors.Is(err, ErrNotValidated) {
		t.Errorf("second AppendSession() error = %v, want ErrNotValidated", err)
	}
	if got := store.rowCount(salesRef); got != 2 {
		t.Errorf("table rows after second append = %d, want 2", got)
	}
}

func TestSession_SettingsChangeClosesGate(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)
	ctx := context.Background()

	if report, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); err != nil || !report.Passed {
		t.Fatalf("ValidateSession() = %+v, %v", report, err)
	}

	changed := DefaultParseSettings()
	changed.Delimiter = ";"
	if _, err := svc.AppendSession(ctx, sess, changed); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("AppendSession() with changed settings error = %v, want ErrNotValidated", err)
	}
	if store.insertCalls != 0 {
		t.Fatalf("insertCalls = %d, want 0", store.insertCalls)
	}

	// Restoring the validated settings reopens the gate.
	if _, err := svc.AppendSession(ctx, sess, DefaultParseSettings()); err != nil {
		t.Fatalf("AppendSession() with validated settings error = %v", err)
	}
}

func TestSession_TargetChangeClosesGate(t *testing.T) {
	other := TableRef{Catalog: "main", Schema: "finance", Table: "refunds"}
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	store.addTable(other, ColumnDef{Name: "id", Type: TypeInt})
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)
	ctx := context.Background()

	if _, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if err := sess.SelectTarget(other); err != nil {
		t.Fatalf("SelectTarget() error = %v", err)
	}
	if _, err := svc.AppendSession(ctx, sess, DefaultParseSettings()); !errors.Is(err, ErrNotValidated) {
		t.Errorf("AppendSession() error = %v, want ErrNotValidated", err)
	}
}

func TestSession_NewUploadResetsState(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)
	ctx := context.Background()

	if _, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}

	content := "id\t2\n"
	if _, err := svc.UploadToSession(ctx, sess, "more.tsv", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}

	st := sess.State()
	if st.Validation != ValidationIdle || st.Report != nil || st.CanAppend {
		t.Errorf("state after upload = %+v, want idle with no report", st)
	}
	if st.Target != nil {
		t.Errorf("Target = %v, want cleared", st.Target)
	}
	if st.Settings.Delimiter != "\t" {
		t.Errorf("Delimiter = %q, want tab for .tsv", st.Settings.Delimiter)
	}
}

func TestUploadToSession_RemovesReplacedFile(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "first.csv", "id\n1\n", TableRef{})
	first, _ := sess.File()

	content := "id\n2\n"
	second, err := svc.UploadToSession(context.Background(), sess, "second.csv", int64(len(content)), strings.NewReader(content))
	if err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}

	if want := []string{first.StoragePath}; !reflect.DeepEqual(store.removedPaths(), want) {
		t.Errorf("removed = %v, want %v", store.removedPaths(), want)
	}
	if !store.hasFile(second.StoragePath) {
		t.Errorf("new file %s was removed", second.StoragePath)
	}
}

func TestUploadToSession_RemoveFailureKeepsUpload(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "first.csv", "id\n1\n", TableRef{})
	store.removeErr = errors.New("volume offline")

	content := "id\n2\n"
	second, err := svc.UploadToSession(context.Background(), sess, "second.csv", int64(len(content)), strings.NewReader(content))
	if err != nil {
		t.Fatalf("UploadToSession() error = %v, want nil", err)
	}
	if got, _ := sess.File(); got.StoragePath != second.StoragePath {
		t.Errorf("session file = %s, want %s", got.StoragePath, second.StoragePath)
	}
}

func TestUploadToSession_DuringAppendDefersRemoval(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "first.csv", "id\n1\n", salesRef)
	first, _ := sess.File()
	ctx := context.Background()

	if report, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); err != nil || !report.Passed {
		t.Fatalf("ValidateSession() = %+v, %v; want passing report", report, err)
	}

	started, unblock := blockReads(store)
	appended := make(chan error, 1)
	go func() {
		_, err := svc.AppendSession(ctx, sess, DefaultParseSettings())
		appended <- err
	}()
	<-started

	content := "id\n2\n"
	if _, err := svc.UploadToSession(ctx, sess, "second.csv", int64(len(content)), strings.NewReader(content)); err != nil {
		t.Fatalf("UploadToSession() error = %v", err)
	}
	if !store.hasFile(first.StoragePath) {
		t.Error("file removed while the append was still reading it")
	}

	unblock()
	if err := <-appended; err != nil {
		t.Fatalf("AppendSession() error = %v", err)
	}
	if store.hasFile(first.StoragePath) {
		t.Error("replaced file kept after the append finished")
	}
	if got := store.rowCount(salesRef); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}

func TestEndSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", TableRef{})
	file, _ := sess.File()

	svc.EndSession(context.Background(), sess)

	if _, ok := svc.Sessions().Get(sess.ID); ok {
		t.Error("session still present after EndSession")
	}
	if store.hasFile(file.StoragePath) {
		t.Errorf("file %s still stored after EndSession", file.StoragePath)
	}
}

func TestSession_RequiresFileAndTarget(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	ctx := context.Background()

	sess := svc.Sessions().Create()
	if _, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); !errors.Is(err, ErrNoFile) {
		t.Errorf("ValidateSession() without file error = %v, want ErrNoFile", err)
	}

	sess = uploadSession(t, svc, "ids.csv", "id\n1\n", TableRef{})
	if _, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); !errors.Is(err, ErrNoTarget) {
		t.Errorf("ValidateSession() without target error = %v, want ErrNoTarget", err)
	}
	if _, err := svc.AppendSession(ctx, sess, DefaultParseSettings()); !errors.Is(err, ErrNoTarget) {
		t.Errorf("AppendSession() without target error = %v, want ErrNoTarget", err)
	}
}

func TestSession_InvalidSettingsRejected(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)

	bad := DefaultParseSettings()
	bad.Delimiter = "::"
	res := svc.PreviewSession(context.Background(), sess, bad)
	if res.OK() {
		t.Fatal("PreviewSession() OK with invalid delimiter")
	}
	if got := sess.Settings().Delimiter; got != "," {
		t.Errorf("Delimiter = %q, want previous value kept", got)
	}
}

func TestUpload_RejectsOversizeBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})

	_, err := svc.Upload(context.Background(), "big.csv", 100<<20+1, strings.NewReader("id\n"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Upload() error = %v, want ErrFileTooLarge", err)
	}
	if store.putCalls != 0 {
		t.Errorf("putCalls = %d, want 0", store.putCalls)
	}
}

func TestUpload_ExactLimitAccepted(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{MaxFileSize: 8})

	file, err := svc.Upload(context.Background(), "ok.csv", 8, strings.NewReader("id\n1\n2\n3"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if file.Size != 8 || file.OriginalFilename != "ok.csv" {
		t.Errorf("file = %+v, want 8 bytes named ok.csv", file)
	}
}

func TestUpload_UnknownSizeCutOff(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{MaxFileSize: 8})

	_, err := svc.Upload(context.Background(), "big.csv", -1, strings.NewReader(strings.Repeat("x", 20)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Upload() error = %v, want ErrFileTooLarge", err)
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		content  string
		want     error
	}{
		{"bad extension", "report.xlsx", 3, "abc", ErrUnsupportedExtension},
		{"no name", "", 3, "abc", ErrNoFile},
		{"declared empty", "empty.csv", 0, "", ErrEmptyFile},
		{"stream empty", "empty.csv", -1, "", ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(t, store, Options{})

			_, err := svc.Upload(context.Background(), tt.filename, tt.size, strings.NewReader(tt.content))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.want)
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != StageUpload {
				t.Errorf("error %v is not an upload StageError", err)
			}
			if store.putCalls != 0 {
				t.Errorf("putCalls = %d, want 0", store.putCalls)
			}
		})
	}
}

func TestUpload_FailureKeepsPreviousFile(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)

	if _, err := svc.UploadToSession(context.Background(), sess, "notes.txt", 3, strings.NewReader("abc")); err == nil {
		t.Fatal("UploadToSession() accepted a .txt file")
	}
	file, ok := sess.File()
	if !ok || file.OriginalFilename != "ids.csv" {
		t.Errorf("File() = %+v, %v; want ids.csv kept", file, ok)
	}
	if sess.Target() != salesRef {
		t.Errorf("Target() = %v, want %v kept", sess.Target(), salesRef)
	}
}

func TestPreview_HeaderlessKeepsFirstRow(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/raw.csv", "a,b,c\n1,2,3\n")
	svc := newTestService(t, store, Options{})

	settings := DefaultParseSettings()
	settings.Header = false
	res := svc.Preview(context.Background(), "/volume/raw.csv", settings, -1)

	if !res.OK() {
		t.Fatalf("Preview() error = %s", res.Error)
	}
	if want := []string{"col_0", "col_1", "col_2"}; !reflect.DeepEqual(res.Table.Columns, want) {
		t.Errorf("Columns = %v, want %v", res.Table.Columns, want)
	}
	if got := rowStrings(res.Table.Rows); !reflect.DeepEqual(got, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}) {
		t.Errorf("Rows = %v", got)
	}
	if res.Summary != "Showing 2 rows, 3 columns" {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestPreview_LimitAndTypes(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/p.csv", "id,name,_rescued_data\n1,a,\n2,b,\n3,c,\n")
	svc := newTestService(t, store, Options{PreviewRows: 2})

	res := svc.Preview(context.Background(), "/volume/p.csv", DefaultParseSettings(), -1)

	if len(res.Table.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(res.Table.Rows))
	}
	if want := []string{"id", "name"}; !reflect.DeepEqual(res.Table.Columns, want) {
		t.Errorf("Columns = %v, want %v", res.Table.Columns, want)
	}
	if want := []DataType{TypeInt, TypeString}; !reflect.DeepEqual(res.Types, want) {
		t.Errorf("Types = %v, want %v", res.Types, want)
	}
}

func TestPreview_ErrorFoldedIntoResult(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/bad.csv", "a,b\n1,2\n3\n")
	svc := newTestService(t, store, Options{})

	res := svc.Preview(context.Background(), "/volume/bad.csv", DefaultParseSettings(), 0)

	if res.OK() {
		t.Fatal("Preview() OK for ragged file")
	}
	if !strings.HasPrefix(res.Error, "Error reading file: ") {
		t.Errorf("Error = %q, want Error reading file prefix", res.Error)
	}
	if len(res.Table.Columns) != 0 || len(res.Table.Rows) != 0 {
		t.Errorf("Table = %+v, want empty", res.Table)
	}
}

func TestPreviewAsync_NewestWins(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", TableRef{})

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	store.readHook = func(string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
	}

	var staleDelivered atomic.Bool
	first := svc.PreviewAsync(context.Background(), sess, DefaultParseSettings(), func(PreviewResult) {
		staleDelivered.Store(true)
	})
	<-started

	headerless := DefaultParseSettings()
	headerless.Header = false
	latest := svc.PreviewSession(context.Background(), sess, headerless)

	close(release)
	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first preview did not finish")
	}

	if staleDelivered.Load() {
		t.Error("superseded preview was delivered")
	}
	got, ok := sess.LastPreview()
	if !ok || !reflect.DeepEqual(got, latest) {
		t.Errorf("LastPreview() = %+v, want newest result %+v", got, latest)
	}
}

func TestPreviewAsync_DeliversWithoutFile(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	sess := svc.Sessions().Create()

	results := make(chan PreviewResult, 1)
	done := svc.PreviewAsync(context.Background(), sess, DefaultParseSettings(), func(r PreviewResult) {
		results <- r
	})
	<-done

	res := <-results
	if res.OK() {
		t.Fatal("PreviewAsync() OK without a file")
	}
}

func TestAppend_InsertErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.addFile("/volume/ids.csv", "id\n1\n")
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	store.insertErr = errors.New("connection reset")
	svc := newTestService(t, store, Options{})

	_, err := svc.Append(context.Background(), "/volume/ids.csv", salesRef, DefaultParseSettings())
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Append() error = %v, want insert error", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAppend {
		t.Errorf("error %v is not an append StageError", err)
	}
}

func TestSession_FailedAppendKeepsGateOpen(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef, ColumnDef{Name: "id", Type: TypeInt})
	svc := newTestService(t, store, Options{})
	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", salesRef)
	ctx := context.Background()

	if _, err := svc.ValidateSession(ctx, sess, DefaultParseSettings()); err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	store.insertErr = errors.New("warehouse unavailable")
	if _, err := svc.AppendSession(ctx, sess, DefaultParseSettings()); err == nil {
		t.Fatal("AppendSession() succeeded with failing store")
	}
	if !sess.State().CanAppend {
		t.Error("CanAppend = false after failed append, want retry allowed")
	}
}

func TestTablePreview(t *testing.T) {
	store := newFakeStore()
	store.addTable(salesRef,
		ColumnDef{Name: "id", Type: TypeInt},
		ColumnDef{Name: RescuedDataColumn, Type: TypeString},
	)
	store.tables[salesRef].rows = [][]any{{int64(1), nil}, {int64(2), nil}, {int64(3), nil}}
	svc := newTestService(t, store, Options{SampleRows: 2})

	tp, err := svc.TablePreview(context.Background(), salesRef)
	if err != nil {
		t.Fatalf("TablePreview() error = %v", err)
	}
	if len(tp.Schema.Columns) != 1 || tp.Schema.Columns[0].Name != "id" {
		t.Errorf("Schema = %+v, want only id", tp.Schema)
	}
	if got := rowStrings(tp.Sample.Rows); !reflect.DeepEqual(got, [][]string{{"1"}, {"2"}}) {
		t.Errorf("Sample = %v", got)
	}
}

func TestTablePreview_UnknownTable(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	if _, err := svc.TablePreview(context.Background(), salesRef); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("TablePreview() error = %v, want ErrTableNotFound", err)
	}
}

func TestListCatalogs_Sorted(t *testing.T) {
	store := newFakeStore()
	store.addTable(TableRef{Catalog: "zeta", Schema: "s", Table: "t"})
	store.addTable(TableRef{Catalog: "alpha", Schema: "s", Table: "t"})
	svc := newTestService(t, store, Options{})

	got, err := svc.ListCatalogs(context.Background())
	if err != nil {
		t.Fatalf("ListCatalogs() error = %v", err)
	}
	if want := []string{"alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListCatalogs() = %v, want %v", got, want)
	}
}

func TestSessionStore_ExpiryAndSweep(t *testing.T) {
	st := NewSessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	idle := st.Create()
	busy := st.Create()
	busy.appending = true

	now = now.Add(2 * time.Minute)

	if removed, files := st.Sweep(); removed != 1 || len(files) != 0 {
		t.Errorf("Sweep() = %d, %v, want 1 and no files", removed, files)
	}
	if _, ok := st.Get(idle.ID); ok {
		t.Error("idle session survived sweep")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}

	busy.appending = false
	if _, ok := st.Get(busy.ID); ok {
		t.Error("expired session returned by Get")
	}
}

func TestSessionStore_GetLeavesExpiredForSweep(t *testing.T) {
	st := NewSessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	sess := st.Create()
	sess.reset(UploadedFile{StoragePath: "/volume/1/a.csv"}, DefaultParseSettings())
	now = now.Add(2 * time.Minute)

	if _, ok := st.Get(sess.ID); ok {
		t.Fatal("expired session returned by Get")
	}
	removed, files := st.Sweep()
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if want := []string{"/volume/1/a.csv"}; !reflect.DeepEqual(files, want) {
		t.Errorf("Sweep() files = %v, want %v", files, want)
	}
}

func TestSweepSessions_RemovesExpiredFiles(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, Options{SessionTTL: time.Minute})
	now := time.Now()
	svc.Sessions().now = func() time.Time { return now }

	sess := uploadSession(t, svc, "ids.csv", "id\n1\n", TableRef{})
	file, _ := sess.File()

	now = now.Add(2 * time.Minute)
	svc.sweepSessions(context.Background())

	if store.hasFile(file.StoragePath) {
		t.Errorf("file %s still stored after sweep", file.StoragePath)
	}
	if svc.Sessions().Len() != 0 {
		t.Errorf("Len() = %d, want 0", svc.Sessions().Len())
	}
}

func TestSessionStore_GetTouches(t *testing.T) {
	st := NewSessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	sess := st.Create()
	for i := 0; i < 3; i++ {
		now = now.Add(45 * time.Second)
		if _, ok := st.Get(sess.ID); !ok {
			t.Fatalf("Get() after %d touches: session expired", i)
		}
	}
}

func TestStartSessionJanitor_StopsOnCancel(t *testing.T) {
	svc := newTestService(t, newFakeStore(), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartSessionJanitor(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

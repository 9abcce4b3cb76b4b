package commentsync

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tordrt/commentsync/internal/db"
	"github.com/tordrt/commentsync/internal/formatter"
	"github.com/tordrt/commentsync/internal/overrides"
	"github.com/tordrt/commentsync/internal/reconcile"
	"github.com/tordrt/commentsync/internal/schema"
)

// fakeCatalog records writes and applies them to its table
type fakeCatalog struct {
	table     schema.Table
	getErr    error
	failWith  map[string]error
	gets      int
	writes    []schema.ColumnComment
	batches   int
	batchErr  error
	closed    bool
}

func (f *fakeCatalog) GetTable(_ context.Context, database, table string) (*schema.Table, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if table != f.table.Name {
		return nil, &db.NotFoundError{Database: database, Table: table}
	}
	t := f.table.Clone()
	return &t, nil
}

func (f *fakeCatalog) UpdateColumnComment(_ context.Context, _, _, column, comment string) error {
	if err := f.failWith[column]; err != nil {
		return err
	}
	f.writes = append(f.writes, schema.ColumnComment{Column: column, Comment: comment})
	return nil
}

func (f *fakeCatalog) Close() error {
	f.closed = true
	return nil
}

// fakeBatchCatalog additionally supports all-or-nothing updates
type fakeBatchCatalog struct {
	*fakeCatalog
}

func (f fakeBatchCatalog) UpdateColumnComments(_ context.Context, _, _ string, comments []schema.ColumnComment) error {
	f.batches++
	if f.batchErr != nil {
		return f.batchErr
	}
	f.writes = append(f.writes, comments...)
	return nil
}

func ordersTable() schema.Table {
	return schema.Table{
		Database: "sales",
		Name:     "orders",
		Columns: []schema.Column{
			{Name: "id", Type: "bigint", Comment: "primary key"},
			{Name: "amount", Type: "int", Comment: ""},
			{Name: "region", Type: "string", Comment: ""},
		},
	}
}

func readClassification(t *testing.T, path string) reconcile.Classification {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var c reconcile.Classification
	require.NoError(t, json.Unmarshal(data, &c))
	return c
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("check")
	require.NoError(t, err)
	assert.Equal(t, ModeCheck, m)

	m, err = ParseMode(" Update ")
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, m)

	_, err = ParseMode("sync")
	assert.Error(t, err)
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	cat := &fakeCatalog{table: ordersTable()}

	result, err := Run(context.Background(), cat, &Options{
		Database:  "sales",
		Table:     "orders",
		Mode:      ModeCheck,
		OutputDir: dir,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Nil(t, result.Updated)
	assert.Empty(t, result.Changes)
	assert.Empty(t, cat.writes)

	assert.Equal(t, filepath.Join(dir, formatter.DefaultFile), result.DefaultPath)
	got := readClassification(t, result.DefaultPath)
	assert.Equal(t, map[string]string{"id": "primary key"}, got.DefaultValues)
	assert.Equal(t, map[string]string{"amount": "", "region": ""}, got.MissingColumns)

	_, err = os.Stat(filepath.Join(dir, formatter.UpdatedFile))
	assert.True(t, os.IsNotExist(err), "check mode must not write the updated file")
}

func TestRunCheckDoesNotReadOverrides(t *testing.T) {
	cat := &fakeCatalog{table: ordersTable()}

	_, err := Run(context.Background(), cat, &Options{
		Table:         "orders",
		Mode:          ModeCheck,
		OverridesPath: filepath.Join(t.TempDir(), "missing.json"),
		OutputDir:     t.TempDir(),
	})
	assert.NoError(t, err)
}

func TestRunUpdateBatch(t *testing.T) {
	dir := t.TempDir()
	cat := fakeBatchCatalog{&fakeCatalog{table: ordersTable()}}

	result, err := Run(context.Background(), cat, &Options{
		Database:  "sales",
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents", "region": "sales region code"},
		Atomic:    true,
		OutputDir: dir,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.batches)
	assert.Equal(t, []schema.ColumnComment{
		{Column: "amount", Comment: "order total in cents"},
		{Column: "region", Comment: "sales region code"},
	}, cat.writes)

	require.Len(t, result.Changes, 2)
	for _, c := range result.Changes {
		assert.Equal(t, formatter.StatusApplied, c.Status)
	}

	updated := readClassification(t, result.UpdatedPath)
	assert.Empty(t, updated.MissingColumns)
	assert.Equal(t, map[string]string{
		"id":     "primary key",
		"amount": "order total in cents",
		"region": "sales region code",
	}, updated.DefaultValues)

	// The default artifact still reflects the table as fetched.
	defaults := readClassification(t, result.DefaultPath)
	assert.Len(t, defaults.MissingColumns, 2)
}

func TestRunUpdateBatchFailureChangesNothing(t *testing.T) {
	denied := &db.AuthError{Backend: "glue", Err: errors.New("AccessDeniedException")}
	cat := fakeBatchCatalog{&fakeCatalog{table: ordersTable(), batchErr: denied}}

	result, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents", "region": "sales region code"},
		Atomic:    true,
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrAuth)

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, []string{"amount", "region"}, updateErr.Failed)
	assert.Empty(t, updateErr.Succeeded)

	require.NotNil(t, result)
	updated := readClassification(t, result.UpdatedPath)
	assert.Len(t, updated.MissingColumns, 2)
}

func TestRunUpdateSequentialPartialFailure(t *testing.T) {
	cat := &fakeCatalog{
		table: ordersTable(),
		failWith: map[string]error{
			"amount": errors.New("throttled"),
		},
	}

	result, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents", "region": "sales region code"},
		Atomic:    true,
		OutputDir: t.TempDir(),
	})

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, []string{"region"}, updateErr.Succeeded)
	assert.Equal(t, []string{"amount"}, updateErr.Failed)
	assert.Empty(t, updateErr.Skipped)
	assert.Contains(t, err.Error(), "column amount: throttled")

	assert.Equal(t, []schema.ColumnComment{{Column: "region", Comment: "sales region code"}}, cat.writes)

	updated := readClassification(t, result.UpdatedPath)
	assert.Equal(t, map[string]string{"amount": ""}, updated.MissingColumns)
	assert.Equal(t, "sales region code", updated.DefaultValues["region"])
}

func TestRunUpdateSequentialAbortsOnAuthError(t *testing.T) {
	cat := &fakeCatalog{
		table: ordersTable(),
		failWith: map[string]error{
			"amount": &db.AuthError{Backend: "unity", Err: errors.New("token expired")},
		},
	}

	_, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents", "region": "sales region code"},
		OutputDir: t.TempDir(),
	})

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, []string{"amount"}, updateErr.Failed)
	assert.Equal(t, []string{"region"}, updateErr.Skipped)
	assert.ErrorIs(t, err, db.ErrAuth)
	assert.Empty(t, cat.writes)
}

func TestRunUpdateNonAtomicUsesSingleWrites(t *testing.T) {
	cat := fakeBatchCatalog{&fakeCatalog{table: ordersTable()}}

	_, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents"},
		Atomic:    false,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cat.batches)
	assert.Len(t, cat.writes, 1)
}

func TestRunUpdateUnmatchedKeysFailBeforeWriting(t *testing.T) {
	cat := &fakeCatalog{table: ordersTable()}

	_, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents", "amonut": "typo"},
		OutputDir: t.TempDir(),
	})

	var unmatched *reconcile.UnmatchedKeysError
	require.ErrorAs(t, err, &unmatched)
	assert.Equal(t, []string{"amonut"}, unmatched.Keys)
	assert.Empty(t, cat.writes)
}

func TestRunUpdateAllowUnmatchedWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cat := &fakeCatalog{table: ordersTable()}

	result, err := Run(context.Background(), cat, &Options{
		Table:          "orders",
		Mode:           ModeUpdate,
		Overrides:      map[string]string{"amount": "order total in cents", "amonut": "typo"},
		AllowUnmatched: true,
		OutputDir:      t.TempDir(),
		Logger:         zap.New(core),
	})
	require.NoError(t, err)
	assert.Equal(t, []schema.ColumnComment{{Column: "amount", Comment: "order total in cents"}}, cat.writes)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "ignoring override keys that match no column", warnings[0].Message)

	for _, entry := range logs.All() {
		assert.Equal(t, result.RunID, entry.ContextMap()["run_id"])
	}
}

func TestRunUpdateOnlyMissing(t *testing.T) {
	cat := &fakeCatalog{table: ordersTable()}

	result, err := Run(context.Background(), cat, &Options{
		Table:       "orders",
		Mode:        ModeUpdate,
		Overrides:   map[string]string{"id": "surrogate key", "amount": "order total in cents"},
		OnlyMissing: true,
		OutputDir:   t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, []schema.ColumnComment{{Column: "amount", Comment: "order total in cents"}}, cat.writes)
	assert.Equal(t, "primary key", result.Updated.DefaultValues["id"])
}

func TestRunUpdateReplacesExistingComments(t *testing.T) {
	cat := &fakeCatalog{table: ordersTable()}

	result, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"id": "surrogate key"},
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "primary key", result.Changes[0].Old)
	assert.Equal(t, "surrogate key", result.Changes[0].New)
	assert.Equal(t, "surrogate key", result.Updated.DefaultValues["id"])
}

func TestRunUpdateDryRun(t *testing.T) {
	cat := fakeBatchCatalog{&fakeCatalog{table: ordersTable()}}

	result, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"amount": "order total in cents"},
		Atomic:    true,
		DryRun:    true,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Empty(t, cat.writes)
	assert.Equal(t, 0, cat.batches)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, formatter.StatusPlanned, result.Changes[0].Status)

	updated := readClassification(t, result.UpdatedPath)
	assert.Equal(t, "order total in cents", updated.DefaultValues["amount"])
}

func TestRunUpdateNoChanges(t *testing.T) {
	cat := fakeBatchCatalog{&fakeCatalog{table: ordersTable()}}

	result, err := Run(context.Background(), cat, &Options{
		Table:     "orders",
		Mode:      ModeUpdate,
		Overrides: map[string]string{"id": "primary key"},
		Atomic:    true,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Changes)
	assert.Equal(t, 0, cat.batches)
}

func TestRunUpdateMalformedOverridesSkipsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new_values.json")
	require.NoError(t, os.WriteFile(path, []byte(`["amount"]`), 0644))
	cat := &fakeCatalog{table: ordersTable()}

	_, err := Run(context.Background(), cat, &Options{
		Table:         "orders",
		Mode:          ModeUpdate,
		OverridesPath: path,
		OutputDir:     t.TempDir(),
	})
	assert.ErrorIs(t, err, overrides.ErrMalformed)
	assert.Equal(t, 0, cat.gets)
}

func TestRunUpdateReadsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new_values.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"region": "sales region code"}`), 0644))
	cat := &fakeCatalog{table: ordersTable()}

	_, err := Run(context.Background(), cat, &Options{
		Table:         "orders",
		Mode:          ModeUpdate,
		OverridesPath: path,
		OutputDir:     t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, []schema.ColumnComment{{Column: "region", Comment: "sales region code"}}, cat.writes)
}

func TestRunTableNotFound(t *testing.T) {
	cat := &fakeCatalog{table: ordersTable()}

	_, err := Run(context.Background(), cat, &Options{
		Database:  "sales",
		Table:     "refunds",
		OutputDir: t.TempDir(),
	})
	assert.ErrorIs(t, err, db.ErrNotFound)

	var notFound *db.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "refunds", notFound.Table)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	_, err := Run(context.Background(), &fakeCatalog{table: ordersTable()}, &Options{Table: "orders", Mode: "sync"})
	assert.Error(t, err)
}

func TestResultReport(t *testing.T) {
	result, err := Run(context.Background(), &fakeCatalog{table: ordersTable()}, &Options{
		Table:     "orders",
		Mode:      ModeCheck,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	r := result.Report()
	assert.Equal(t, "check", r.Mode)
	assert.Equal(t, 2, r.Missing())
}

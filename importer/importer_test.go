package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeStore struct {
	err   error
	saves int
}

func (s *fakeStore) Obtain(ctx context.Context) (*Credential, error) {
	if s.err != nil {
		return nil, s.err
	}

	return &Credential{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	}, nil
}

func (s *fakeStore) Save(credential *Credential) error {
	s.saves++
	return nil
}

type fakeLister struct {
	sheets []Sheet
	calls  int
}

func (l *fakeLister) List(ctx context.Context, mimeType string) ([]Sheet, error) {
	l.calls++
	return l.sheets, nil
}

type fakeFetcher struct {
	grid  [][]string
	areas []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, documentID, area string) ([][]string, error) {
	f.areas = append(f.areas, area)
	return f.grid, nil
}

type load struct {
	dataset string
	table   string
	staged  bool
}

type fakeWarehouse struct {
	datasets  []string
	requested []string
	loads     []load
	loadErr   error
}

func (w *fakeWarehouse) EnsureDataset(ctx context.Context, name string) error {
	w.datasets = append(w.datasets, name)
	return nil
}

func (w *fakeWarehouse) EnsureTable(ctx context.Context, dataset, table string) (string, error) {
	w.requested = append(w.requested, dataset+"."+table)
	return normaliseTableName(table), nil
}

func (w *fakeWarehouse) Load(ctx context.Context, dataset, table, path string) error {
	_, err := os.Stat(path)

	w.loads = append(w.loads, load{
		dataset: dataset,
		table:   table,
		staged:  err == nil,
	})

	return w.loadErr
}

func testDial(lister Lister, fetcher Fetcher, warehouse Warehouse) DialFunc {
	return func(ctx context.Context, source oauth2.TokenSource) (*Services, error) {
		return &Services{
			Drive:     lister,
			Sheets:    fetcher,
			Warehouse: warehouse,
		}, nil
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunImportsAllSheets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	store := fakeStore{}
	lister := fakeLister{sheets: []Sheet{{Name: "capacity-plan", ID: "1LqB6"}}}
	fetcher := fakeFetcher{grid: [][]string{
		{"plan", "owner"},
		{"2024-Q1", "alice"},
		{"2024-Q2", "bob"},
	}}
	warehouse := fakeWarehouse{}

	imp := New(cfg, &store, testDial(&lister, &fetcher, &warehouse),
		WithClock(fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))))

	message, err := imp.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "DONE: imported all sheets", message)

	require.Equal(t, []string{"sheets_to_bq", "sheets_to_bq_history"}, warehouse.datasets)
	require.Equal(t, []string{"capacity-plan!7:10000"}, fetcher.areas)

	// table names as requested, before warehouse-side normalisation
	require.Equal(t, []string{
		"sheets_to_bq.capacity-plan",
		"sheets_to_bq_history.capacity-plan_202401011200",
	}, warehouse.requested)

	require.Equal(t, []load{
		{dataset: "sheets_to_bq", table: "capacity_plan", staged: true},
		{dataset: "sheets_to_bq_history", table: "capacity_plan_202401011200", staged: true},
	}, warehouse.loads)

	// staged file removed after both loads
	_, err = os.Stat(filepath.Join(cfg.TempDir, "capacity-plan.csv"))
	require.True(t, os.IsNotExist(err))

	require.Equal(t, 1, store.saves)
}

func TestRunWithoutCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	store := fakeStore{err: fmt.Errorf("%w (no key file)", ErrNoCredentials)}
	lister := fakeLister{sheets: []Sheet{{Name: "capacity-plan", ID: "1LqB6"}}}
	warehouse := fakeWarehouse{}

	imp := New(cfg, &store, testDial(&lister, &fakeFetcher{}, &warehouse))

	_, err := imp.Run(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)

	// zero document processing
	require.Zero(t, lister.calls)
	require.Empty(t, warehouse.datasets)
	require.Empty(t, warehouse.loads)
	require.Zero(t, store.saves)
}

func TestRunHistoryTablesDistinctAcrossRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	store := fakeStore{}
	lister := fakeLister{sheets: []Sheet{{Name: "capacity-plan", ID: "1LqB6"}}}
	fetcher := fakeFetcher{grid: [][]string{{"plan"}, {"2024-Q1"}}}
	warehouse := fakeWarehouse{}

	for i, at := range []time.Time{
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC),
	} {
		imp := New(cfg, &store, testDial(&lister, &fetcher, &warehouse), WithClock(fixedClock(at)))

		if _, err := imp.Run(context.Background()); err != nil {
			t.Fatalf("Unexpected error on run %v (%v)", i+1, err)
		}
	}

	require.Equal(t, []load{
		{dataset: "sheets_to_bq", table: "capacity_plan", staged: true},
		{dataset: "sheets_to_bq_history", table: "capacity_plan_202401011200", staged: true},
		{dataset: "sheets_to_bq", table: "capacity_plan", staged: true},
		{dataset: "sheets_to_bq_history", table: "capacity_plan_202401011201", staged: true},
	}, warehouse.loads)
}

func TestRunSharesTimestampAcrossSheets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	lister := fakeLister{sheets: []Sheet{
		{Name: "capacity-plan", ID: "1"},
		{Name: "head-count", ID: "2"},
	}}
	fetcher := fakeFetcher{grid: [][]string{{"a"}, {"b"}}}
	warehouse := fakeWarehouse{}

	imp := New(cfg, &fakeStore{}, testDial(&lister, &fetcher, &warehouse),
		WithClock(fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))))

	_, err := imp.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{
		"sheets_to_bq.capacity-plan",
		"sheets_to_bq_history.capacity-plan_202401011200",
		"sheets_to_bq.head-count",
		"sheets_to_bq_history.head-count_202401011200",
	}, warehouse.requested)
}

func TestRunRemovesStagedFileOnLoadFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	lister := fakeLister{sheets: []Sheet{{Name: "capacity-plan", ID: "1LqB6"}}}
	fetcher := fakeFetcher{grid: [][]string{{"plan"}, {"2024-Q1"}}}
	warehouse := fakeWarehouse{loadErr: fmt.Errorf("load job failed")}

	imp := New(cfg, &fakeStore{}, testDial(&lister, &fetcher, &warehouse))

	_, err := imp.Run(context.Background())
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(cfg.TempDir, "capacity-plan.csv"))
	require.True(t, os.IsNotExist(err))
}

func TestRunCountsSheets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()

	lister := fakeLister{sheets: []Sheet{
		{Name: "capacity-plan", ID: "1"},
		{Name: "head-count", ID: "2"},
	}}
	fetcher := fakeFetcher{grid: [][]string{{"a"}}}

	collector := countingCollector{}

	imp := New(cfg, &fakeStore{}, testDial(&lister, &fetcher, &fakeWarehouse{}),
		WithCollector(&collector))

	_, err := imp.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"capacity-plan", "head-count"}, collector.sheets)
	require.Equal(t, []string{"ok"}, collector.runs)
}

type countingCollector struct {
	runs   []string
	sheets []string
}

func (c *countingCollector) RunCompleted(status string)  { c.runs = append(c.runs, status) }
func (c *countingCollector) SheetImported(sheet string) { c.sheets = append(c.sheets, sheet) }

package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Done is returned by Run on full success.
const Done = "DONE: imported all sheets"

// History tables are named {sheet}_{timestamp} at minute granularity, so a
// sheet is loaded at most once per minute per run.
const timestampFormat = "200601021504"

// Lister enumerates the spreadsheet documents shared with the credential.
type Lister interface {
	List(ctx context.Context, mimeType string) ([]Sheet, error)
}

// Fetcher retrieves the grid of cell values for a document and range.
type Fetcher interface {
	Fetch(ctx context.Context, documentID, area string) ([][]string, error)
}

// Warehouse manages the warehouse-side datasets and tables and loads staged
// files into them.
type Warehouse interface {
	EnsureDataset(ctx context.Context, name string) error
	EnsureTable(ctx context.Context, dataset, table string) (string, error)
	Load(ctx context.Context, dataset, table, path string) error
}

// CredentialStore resolves the credential at the start of a run and persists
// the token at the end.
type CredentialStore interface {
	Obtain(ctx context.Context) (*Credential, error)
	Save(credential *Credential) error
}

// Services bundles the remote collaborators for one run.
type Services struct {
	Drive     Lister
	Sheets    Fetcher
	Warehouse Warehouse
	Close     func() error
}

// DialFunc builds the remote collaborators from the run's token source.
type DialFunc func(ctx context.Context, source oauth2.TokenSource) (*Services, error)

// Dial returns the production DialFunc, connecting the Drive, Sheets and
// BigQuery clients with the run's token source.
func Dial(project string, logger zerolog.Logger) DialFunc {
	return func(ctx context.Context, source oauth2.TokenSource) (*Services, error) {
		gdrive, err := drive.NewService(ctx, option.WithTokenSource(source))
		if err != nil {
			return nil, fmt.Errorf("unable to create new Drive client (%v)", err)
		}

		gsheets, err := sheets.NewService(ctx, option.WithTokenSource(source))
		if err != nil {
			return nil, fmt.Errorf("unable to create new Sheets client (%v)", err)
		}

		bq, err := bigquery.NewClient(ctx, project, option.WithTokenSource(source))
		if err != nil {
			return nil, fmt.Errorf("unable to create new BigQuery client (%v)", err)
		}

		return &Services{
			Drive:     NewDrive(gdrive),
			Sheets:    NewSheetsSource(gsheets),
			Warehouse: NewBigQuery(bq, logger),
			Close:     bq.Close,
		}, nil
	}
}

// Importer drives the fetch-stage-load pipeline, strictly sequentially: one
// run at a time, one document at a time.
type Importer struct {
	config  Config
	store   CredentialStore
	dial    DialFunc
	clock   func() time.Time
	metrics Collector
	logger  zerolog.Logger
}

type Option func(*Importer)

func WithClock(clock func() time.Time) Option {
	return func(imp *Importer) {
		imp.clock = clock
	}
}

func WithCollector(collector Collector) Option {
	return func(imp *Importer) {
		imp.metrics = collector
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(imp *Importer) {
		imp.logger = logger
	}
}

func New(config Config, store CredentialStore, dial DialFunc, options ...Option) *Importer {
	imp := Importer{
		config:  config,
		store:   store,
		dial:    dial,
		clock:   time.Now,
		metrics: Noop(),
		logger:  zerolog.Nop(),
	}

	for _, option := range options {
		option(&imp)
	}

	return &imp
}

// Run executes one end-to-end import: acquire credentials, ensure the
// primary and history datasets, enumerate the shared spreadsheets and import
// each in turn, then persist the token back to the cache. Any failure aborts
// the run; loads already committed for earlier documents are not rolled back.
func (imp *Importer) Run(ctx context.Context) (string, error) {
	message, err := imp.run(ctx)
	if err != nil {
		imp.metrics.RunCompleted("failed")
		return "", err
	}

	imp.metrics.RunCompleted("ok")

	return message, nil
}

func (imp *Importer) run(ctx context.Context) (string, error) {
	logger := imp.logger.With().Str("run", uuid.NewString()).Logger()

	credential, err := imp.store.Obtain(ctx)
	if err != nil {
		return "", err
	}

	services, err := imp.dial(ctx, credential.TokenSource())
	if err != nil {
		return "", err
	}

	if services.Close != nil {
		defer services.Close()
	}

	if err := services.Warehouse.EnsureDataset(ctx, imp.config.Dataset); err != nil {
		return "", err
	}

	if err := services.Warehouse.EnsureDataset(ctx, imp.config.HistoryDataset()); err != nil {
		return "", err
	}

	// One timestamp per run - every document's history table shares it.
	timestamp := imp.clock().Format(timestampFormat)

	list, err := services.Drive.List(ctx, imp.config.MimeType)
	if err != nil {
		return "", err
	}

	for _, sheet := range list {
		if err := imp.importSheet(ctx, services, sheet, timestamp, logger); err != nil {
			return "", err
		}

		imp.metrics.SheetImported(sheet.Name)
	}

	if err := imp.store.Save(credential); err != nil {
		logger.Warn().Err(err).Msg("unable to persist token cache")
	}

	return Done, nil
}

func (imp *Importer) importSheet(ctx context.Context, services *Services, sheet Sheet, timestamp string, logger zerolog.Logger) error {
	logger = logger.With().Str("sheet", sheet.Name).Logger()
	logger.Info().Str("id", sheet.ID).Msg("importing sheet")

	grid, err := services.Sheets.Fetch(ctx, sheet.ID, imp.config.Range())
	if err != nil {
		return err
	}

	staged := filepath.Join(imp.config.TempDir, sheet.Name+".csv")
	if err := Stage(grid, staged); err != nil {
		return err
	}

	// The staged file never outlives this document, failed loads included. A
	// file that is already gone is not an error.
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			logger.Error().Err(err).Msg("unable to remove staged file")
		}
	}()

	table, err := services.Warehouse.EnsureTable(ctx, imp.config.Dataset, sheet.Name)
	if err != nil {
		return err
	}

	if err := services.Warehouse.Load(ctx, imp.config.Dataset, table, staged); err != nil {
		return err
	}

	history, err := services.Warehouse.EnsureTable(ctx, imp.config.HistoryDataset(), fmt.Sprintf("%s_%s", sheet.Name, timestamp))
	if err != nil {
		return err
	}

	if err := services.Warehouse.Load(ctx, imp.config.HistoryDataset(), history, staged); err != nil {
		return err
	}

	logger.Info().Int("rows", len(grid)).Msg("sheet imported")

	return nil
}

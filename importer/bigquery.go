package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// ErrPermissionDenied marks a dataset or table the credential is not allowed
// to access. It is surfaced as an explicit error so that the run aborts
// instead of continuing with an unusable handle.
var ErrPermissionDenied = errors.New("permission denied")

// BigQuery ensures warehouse-side containers exist and bulk-loads staged
// files into them.
type BigQuery struct {
	client *bigquery.Client
	logger zerolog.Logger
}

func NewBigQuery(client *bigquery.Client, logger zerolog.Logger) *BigQuery {
	return &BigQuery{
		client: client,
		logger: logger,
	}
}

// EnsureDataset looks up the dataset by name, creating it if it does not
// exist yet.
func (w *BigQuery) EnsureDataset(ctx context.Context, name string) error {
	dataset := w.client.Dataset(name)

	_, err := dataset.Metadata(ctx)
	switch {
	case err == nil:
		return nil

	case isPermissionDenied(err):
		w.logger.Error().Err(err).Str("dataset", name).Msg("dataset access denied")
		return fmt.Errorf("dataset %s: %w", name, ErrPermissionDenied)

	case isNotFound(err):
		w.logger.Info().Str("dataset", name).Msg("creating dataset")
		if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return fmt.Errorf("unable to create dataset %s (%v)", name, err)
		}
		return nil

	default:
		return fmt.Errorf("unable to look up dataset %s (%v)", name, err)
	}
}

// EnsureTable looks up the table by name under the dataset, creating it if it
// does not exist yet, and returns the name actually used: hyphens are not
// legal in BigQuery table names and are replaced with underscores.
func (w *BigQuery) EnsureTable(ctx context.Context, dataset, table string) (string, error) {
	name := normaliseTableName(table)
	handle := w.client.Dataset(dataset).Table(name)

	_, err := handle.Metadata(ctx)
	switch {
	case err == nil:
		return name, nil

	case isPermissionDenied(err):
		w.logger.Error().Err(err).Str("table", dataset+"."+name).Msg("table access denied")
		return "", fmt.Errorf("table %s.%s: %w", dataset, name, ErrPermissionDenied)

	case isNotFound(err):
		w.logger.Info().Str("table", dataset+"."+name).Msg("creating table")
		// No schema - it is autodetected from the first load.
		if err := handle.Create(ctx, nil); err != nil {
			return "", fmt.Errorf("unable to create table %s.%s (%v)", dataset, name, err)
		}
		return name, nil

	default:
		return "", fmt.Errorf("unable to look up table %s.%s (%v)", dataset, name, err)
	}
}

// Load bulk-loads the staged CSV file into the table, replacing any existing
// content, and blocks until the load job reaches a terminal state.
//
// SkipLeadingRows is 1 because the fetched range starts at the row holding
// the column headers in the source spreadsheets, and the staging writer
// stages the grid verbatim.
func (w *BigQuery) Load(ctx context.Context, dataset, table, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open staging file (%w)", err)
	}
	defer f.Close()

	source := bigquery.NewReaderSource(f)
	source.SourceFormat = bigquery.CSV
	source.SkipLeadingRows = 1
	source.AutoDetect = true

	loader := w.client.Dataset(dataset).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("unable to start load job for %s.%s (%v)", dataset, table, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("error waiting for load job for %s.%s (%v)", dataset, table, err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("load job for %s.%s failed (%v)", dataset, table, err)
	}

	return nil
}

func normaliseTableName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func isNotFound(err error) bool {
	var apierr *googleapi.Error

	return errors.As(err, &apierr) && apierr.Code == http.StatusNotFound
}

func isPermissionDenied(err error) bool {
	var apierr *googleapi.Error

	return errors.As(err, &apierr) && apierr.Code == http.StatusForbidden
}

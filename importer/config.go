package importer

import (
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// BigQuery streaming insert scope. Not covered by a client library constant.
const insertDataScope = "https://www.googleapis.com/auth/bigquery.insertdata"

// Config collects the knobs for a single import run. The zero value is not
// usable - start from DefaultConfig and override.
type Config struct {
	// Dataset is the BigQuery dataset that receives the primary tables. The
	// history dataset is Dataset + HistorySuffix.
	Dataset       string
	HistorySuffix string

	// MimeType filters the Drive listing to spreadsheet documents.
	MimeType string

	// Scopes are requested when constructing credentials from a
	// service-account key. Changing them invalidates any cached token.
	Scopes []string

	// Worksheet and RangeTemplate select the range fetched from every
	// document, e.g. 'capacity-plan' + '%s!7:10000'.
	Worksheet     string
	RangeTemplate string

	// TempDir holds the staged CSV files, the downloaded service-account key
	// and the token cache.
	TempDir string

	// KeyBucket/KeyObject locate the service-account key blob in GCS.
	KeyBucket string
	KeyObject string

	// CredentialsFile and TokenFile are the scratch file names for the
	// downloaded key and the cached token.
	CredentialsFile string
	TokenFile       string

	// Project is the billing project for the BigQuery client. Defaults to
	// detecting it from the credentials.
	Project string
}

func DefaultConfig() Config {
	return Config{
		Dataset:       "sheets_to_bq",
		HistorySuffix: "_history",
		MimeType:      "application/vnd.google-apps.spreadsheet",
		Scopes: []string{
			drive.DriveScope,
			sheets.SpreadsheetsReadonlyScope,
			bigquery.Scope,
			insertDataScope,
		},
		Worksheet:       "capacity-plan",
		RangeTemplate:   "%s!7:10000",
		TempDir:         os.TempDir(),
		KeyBucket:       "sheets_to_bq",
		KeyObject:       "credentials.json",
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		Project:         bigquery.DetectProjectID,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Dataset) == "" {
		return fmt.Errorf("missing dataset name")
	}

	if strings.TrimSpace(c.MimeType) == "" {
		return fmt.Errorf("missing MIME type filter")
	}

	if len(c.Scopes) == 0 {
		return fmt.Errorf("missing OAuth2 scopes")
	}

	if strings.TrimSpace(c.Worksheet) == "" {
		return fmt.Errorf("missing worksheet name")
	}

	if !strings.Contains(c.RangeTemplate, "%s") {
		return fmt.Errorf("invalid range template '%s' - expected something like '%%s!7:10000'", c.RangeTemplate)
	}

	if strings.TrimSpace(c.TempDir) == "" {
		return fmt.Errorf("missing temp directory")
	}

	if strings.TrimSpace(c.KeyBucket) == "" || strings.TrimSpace(c.KeyObject) == "" {
		return fmt.Errorf("missing service-account key location")
	}

	return nil
}

// Range renders the worksheet name into the range template.
func (c Config) Range() string {
	return fmt.Sprintf(c.RangeTemplate, c.Worksheet)
}

// HistoryDataset is the dataset that receives the timestamped history tables.
func (c Config) HistoryDataset() string {
	return c.Dataset + c.HistorySuffix
}

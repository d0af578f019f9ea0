package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/alioualarbi/sheet-to-bq/importer"
)

const APP = "sheet-to-bq"
const VERSION = "v0.1.0"

type Options struct {
	Debug bool
}

// Command is the interface implemented by the CLI subcommands.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Help()
	FlagSet() *flag.FlagSet
	Execute(args ...any) error
}

// command holds the pipeline flags shared by the 'run' and 'serve' commands.
type command struct {
	dataset   string
	suffix    string
	worksheet string
	template  string
	bucket    string
	key       string
	tempdir   string
	project   string
	debug     bool
}

// flagset builds the shared flag set. Defaults come from the built-in
// configuration, overridable by environment variables (including a .env file
// loaded by main), overridable in turn by the flags themselves.
func (c *command) flagset(name string) *flag.FlagSet {
	cfg := importer.DefaultConfig()
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&c.dataset, "dataset", envOr("SHEET_TO_BQ_DATASET", cfg.Dataset), "BigQuery dataset for the primary tables")
	flagset.StringVar(&c.suffix, "history-suffix", envOr("SHEET_TO_BQ_HISTORY_SUFFIX", cfg.HistorySuffix), "Suffix appended to the dataset name for the history dataset")
	flagset.StringVar(&c.worksheet, "worksheet", envOr("SHEET_TO_BQ_WORKSHEET", cfg.Worksheet), "Worksheet name fetched from every spreadsheet document")
	flagset.StringVar(&c.template, "range", envOr("SHEET_TO_BQ_RANGE", cfg.RangeTemplate), "Row range template e.g. '%s!7:10000'")
	flagset.StringVar(&c.bucket, "key-bucket", envOr("SHEET_TO_BQ_KEY_BUCKET", cfg.KeyBucket), "GCS bucket holding the service-account key")
	flagset.StringVar(&c.key, "key-object", envOr("SHEET_TO_BQ_KEY_OBJECT", cfg.KeyObject), "GCS object name of the service-account key")
	flagset.StringVar(&c.tempdir, "tempdir", envOr("SHEET_TO_BQ_TEMPDIR", cfg.TempDir), "Directory for staged CSV files, the key file and the token cache")
	flagset.StringVar(&c.project, "project", envOr("SHEET_TO_BQ_PROJECT", cfg.Project), "BigQuery billing project. Defaults to detecting it from the credentials")

	return flagset
}

func (c *command) config() importer.Config {
	cfg := importer.DefaultConfig()

	cfg.Dataset = c.dataset
	cfg.HistorySuffix = c.suffix
	cfg.Worksheet = c.worksheet
	cfg.RangeTemplate = c.template
	cfg.KeyBucket = c.bucket
	cfg.KeyObject = c.key
	cfg.TempDir = c.tempdir
	cfg.Project = c.project

	return cfg
}

func (c *command) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if c.debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// pipeline wires the production collaborators for the configuration.
func (c *command) pipeline(cfg importer.Config, logger zerolog.Logger, options ...importer.Option) *importer.Importer {
	keys := importer.NewBucketKeyStorage(cfg.KeyBucket, cfg.KeyObject)
	store := importer.NewStore(cfg, keys, logger)
	options = append([]importer.Option{importer.WithLogger(logger)}, options...)

	return importer.New(cfg, store, importer.Dial(cfg.Project, logger), options...)
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}

	return fallback
}

func helpOptions(flagset *flag.FlagSet) {
	fmt.Println("  Options:")
	fmt.Println()

	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-15s %s\n", f.Name, f.Usage)
	})
}

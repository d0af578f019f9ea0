package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/alioualarbi/sheet-to-bq/importer"
)

var RunCmd = Run{}

// Run executes a single end-to-end import of all shared spreadsheets.
type Run struct {
	command
}

func (cmd *Run) Name() string {
	return "run"
}

func (cmd *Run) Description() string {
	return "Imports all shared spreadsheet documents into BigQuery once"
}

func (cmd *Run) Usage() string {
	return "[--dataset <name>] [--worksheet <name>] [--key-bucket <bucket>]"
}

func (cmd *Run) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] run [options]\n", APP)
	fmt.Println()
	fmt.Println("  Fetches every spreadsheet document shared with the service account, stages it")
	fmt.Println("  as CSV and loads it into the primary and history BigQuery tables")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf(`    %s run --dataset "sheets_to_bq" --worksheet "capacity-plan"`, APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Run) FlagSet() *flag.FlagSet {
	return cmd.flagset("run")
}

func (cmd *Run) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	cfg := cmd.config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cmd.logger()

	message, err := cmd.pipeline(cfg, logger).Run(context.Background())
	if err != nil {
		if errors.Is(err, importer.ErrNoCredentials) {
			return fmt.Errorf("could not fetch credentials (%v)", err)
		}

		return err
	}

	fmt.Println(message)

	return nil
}

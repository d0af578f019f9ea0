package commands

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/alioualarbi/sheet-to-bq/importer"
)

var ServeCmd = Serve{
	listen: ":8080",
}

// Serve exposes the import pipeline as an HTTP trigger, for deployments
// where a scheduler POSTs to the service instead of invoking the CLI.
type Serve struct {
	command
	listen string
}

type runner interface {
	Run(ctx context.Context) (string, error)
}

func (cmd *Serve) Name() string {
	return "serve"
}

func (cmd *Serve) Description() string {
	return "Runs an HTTP server that imports all shared spreadsheets on POST /v1/import"
}

func (cmd *Serve) Usage() string {
	return "[--listen <address>] [--dataset <name>]"
}

func (cmd *Serve) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] serve [options]\n", APP)
	fmt.Println()
	fmt.Println("  Starts an HTTP server. POST /v1/import runs the pipeline and responds with")
	fmt.Println("  the import result; GET /metrics exposes Prometheus counters")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf(`    %s serve --listen ":8080" --dataset "sheets_to_bq"`, APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Serve) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("serve")

	flagset.StringVar(&cmd.listen, "listen", cmd.listen, "Address the HTTP server listens on")

	return flagset
}

func (cmd *Serve) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	cfg := cmd.config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cmd.logger()

	metrics, err := importer.NewPrometheusCollector(nil)
	if err != nil {
		return fmt.Errorf("unable to register metrics (%v)", err)
	}

	imp := cmd.pipeline(cfg, logger, importer.WithCollector(metrics))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, rq *http.Request) {
		w.Write([]byte("OK"))
	})

	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Post("/v1/import", importHandler(imp, logger))

	server := &http.Server{
		Addr:              cmd.listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("listen", cmd.listen).Msg("starting server")

	return server.ListenAndServe()
}

// importHandler runs the pipeline for a trigger request. Runs are serialised
// with a mutex - two concurrent runs would race on the token cache and the
// staged files.
func importHandler(imp runner, logger zerolog.Logger) http.HandlerFunc {
	var busy sync.Mutex

	return func(w http.ResponseWriter, rq *http.Request) {
		busy.Lock()
		defer busy.Unlock()

		message, err := imp.Run(rq.Context())
		if err != nil {
			logger.Error().Err(err).Msg("import run failed")
			http.Error(w, "import failed", http.StatusInternalServerError)
			return
		}

		w.Write([]byte(message))
	}
}

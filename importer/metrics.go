package importer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures the counters emitted by the pipeline. Implementations
// should be inexpensive to call - they run inline with the import loop.
type Collector interface {
	RunCompleted(status string)
	SheetImported(sheet string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) RunCompleted(string)  {}
func (noopCollector) SheetImported(string) {}

// PrometheusCollector exposes pipeline counters via Prometheus.
type PrometheusCollector struct {
	runs   *prometheus.CounterVec
	sheets *prometheus.CounterVec
}

// NewPrometheusCollector registers the pipeline metrics with the provided
// registerer (defaulting to the global one).
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runs, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "sheet_to_bq_runs_total",
		Help: "Number of completed import runs by terminal status.",
	}, []string{"status"})
	if err != nil {
		return nil, err
	}

	sheets, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "sheet_to_bq_sheets_imported_total",
		Help: "Number of spreadsheet documents imported, per sheet name.",
	}, []string{"sheet"})
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		runs:   runs,
		sheets: sheets,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, labels)

	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}

		return nil, err
	}

	return counter, nil
}

// RunCompleted increments the run counter for the terminal status.
func (p *PrometheusCollector) RunCompleted(status string) {
	if p == nil || p.runs == nil {
		return
	}

	p.runs.WithLabelValues(status).Inc()
}

// SheetImported records a successfully imported document.
func (p *PrometheusCollector) SheetImported(sheet string) {
	if p == nil || p.sheets == nil {
		return
	}

	p.sheets.WithLabelValues(sheet).Inc()
}

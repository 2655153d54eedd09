package jit

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	compilationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exprjit",
			Name:      "compilations_total",
			Help:      "Compilations by result: ok or the failure kind.",
		},
		[]string{"result"},
	)

	codeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "exprjit",
			Name:      "machine_code_bytes",
			Help:      "Size of the machine code of compiled functions.",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(compilationsTotal, codeBytes)
}

// observe records the outcome of one compilation
func observe(err error, size int) {
	if err != nil {
		result := "unknown"
		if ce, ok := err.(*CompileError); ok {
			result = ce.Kind.label()
		}
		compilationsTotal.WithLabelValues(result).Inc()
		return
	}
	compilationsTotal.WithLabelValues("ok").Inc()
	codeBytes.Observe(float64(size))
}

// WriteMetrics writes the exprjit metrics of g in the Prometheus text format
func WriteMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "exprjit_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "failed to write metrics")
		}
	}
	return nil
}

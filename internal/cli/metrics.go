package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/roach88/evarconv/internal/harness"
	"github.com/roach88/evarconv/internal/unify"
)

// engineMetrics collects the counters of every engine a command builds.
type engineMetrics struct {
	reg     *prometheus.Registry
	metrics *unify.Metrics
}

func newEngineMetrics() *engineMetrics {
	reg := prometheus.NewRegistry()
	return &engineMetrics{reg: reg, metrics: unify.NewMetrics(reg)}
}

func (em *engineMetrics) option() harness.Option {
	return harness.WithEngineOptions(unify.WithMetrics(em.metrics))
}

// totals flattens the registry into name{label="value"} keys. Histograms
// contribute their _count and _sum.
func (em *engineMetrics) totals() (map[string]float64, error) {
	families, err := em.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			suffix := ""
			if len(labels) > 0 {
				suffix = "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()+suffix] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()+"_count"+suffix] = float64(m.GetHistogram().GetSampleCount())
				out[mf.GetName()+"_sum"+suffix] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}

func printMetrics(w io.Writer, totals map[string]float64) {
	keys := lo.Keys(totals)
	slices.Sort(keys)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Metrics:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %g\n", k, totals[k])
	}
}

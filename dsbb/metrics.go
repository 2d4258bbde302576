package dsbb

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/filecoin-project/go-dssim/internal/measurements"
)

var (
	meter = otel.Meter("dssim/dsbb")

	attrDecided = attribute.String("outcome", "decided")
	attrBottom  = attribute.String("outcome", "bottom")

	metrics = struct {
		runs        metric.Int64Counter
		rounds      metric.Int64Counter
		echoes      metric.Int64Counter
		convictions metric.Int64Counter
		decisions   metric.Int64Counter
	}{
		runs:        measurements.Must(meter.Int64Counter("dssim_runs", metric.WithDescription("Number of runs initialized"))),
		rounds:      measurements.Must(meter.Int64Counter("dssim_rounds", metric.WithDescription("Number of protocol rounds executed"))),
		echoes:      measurements.Must(meter.Int64Counter("dssim_echoes", metric.WithDescription("Number of echo messages produced"))),
		convictions: measurements.Must(meter.Int64Counter("dssim_convictions", metric.WithDescription("Number of value convictions recorded"))),
		decisions:   measurements.Must(meter.Int64Counter("dssim_decisions", metric.WithDescription("Number of final decisions, by outcome"))),
	}
)

func decisionAttr(d Decision) attribute.KeyValue {
	if d.IsBottom() {
		return attrBottom
	}
	return attrDecided
}

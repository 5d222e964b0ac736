package tasks

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for aggregate writes and generation.
type Metrics struct {
	AggregateOps  *prometheus.CounterVec
	StoreWrites   *prometheus.CounterVec
	GenerationOps *prometheus.CounterVec
}

// NewMetrics registers the collectors on the default registry once per
// process and returns the shared instance.
//
//   - taskflow_aggregate_operations_total{op,result}
//   - taskflow_store_writes_total{op,result}
//   - taskflow_generation_requests_total{kind,result}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			AggregateOps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskflow_aggregate_operations_total",
					Help: "Aggregate create/update/delete operations by result",
				},
				[]string{"op", "result"},
			),
			StoreWrites: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskflow_store_writes_total",
					Help: "Single-document writes and deletes issued by the coordinator",
				},
				[]string{"op", "result"},
			),
			GenerationOps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskflow_generation_requests_total",
					Help: "Draft generation requests by kind and result",
				},
				[]string{"kind", "result"},
			),
		}
	})
	return globalMetrics
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

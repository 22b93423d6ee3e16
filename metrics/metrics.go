// Package metrics declares the opencensus measures and views of the orchestration layer.
package metrics

import (
	"context"
	"time"

	"github.com/mohitkumar/txflow/model"
	"go.opencensus.io/plugin/ocgrpc"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyKind    = tag.MustNewKey("kind")
	KeyOutcome = tag.MustNewKey("outcome")

	OperationsSubmitted = stats.Int64("txflow/operations_submitted", "operations accepted by the ledger", stats.UnitDimensionless)
	SubmissionsRejected = stats.Int64("txflow/submissions_rejected", "operations rejected before reaching the ledger", stats.UnitDimensionless)
	OperationOutcomes   = stats.Int64("txflow/operation_outcomes", "terminal outcomes by kind", stats.UnitDimensionless)
	TrackerRetries      = stats.Int64("txflow/tracker_retries", "transient status query failures", stats.UnitDimensionless)
	Invalidations       = stats.Int64("txflow/cache_invalidations", "cache patterns invalidated", stats.UnitDimensionless)
	ConfirmationLatency = stats.Float64("txflow/confirmation_latency", "time from submission to terminal outcome", stats.UnitMilliseconds)
)

var Views = []*view.View{
	{Name: OperationsSubmitted.Name(), Measure: OperationsSubmitted, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
	{Name: SubmissionsRejected.Name(), Measure: SubmissionsRejected, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
	{Name: OperationOutcomes.Name(), Measure: OperationOutcomes, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind, KeyOutcome}},
	{Name: TrackerRetries.Name(), Measure: TrackerRetries, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
	{Name: Invalidations.Name(), Measure: Invalidations, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
	{
		Name:        ConfirmationLatency.Name(),
		Measure:     ConfirmationLatency,
		Aggregation: view.Distribution(1000, 5000, 10000, 30000, 60000, 120000, 300000),
		TagKeys:     []tag.Key{KeyKind, KeyOutcome},
	},
}

// Register registers the views of this package plus the grpc client views of the ledger transport.
func Register() error {
	all := append([]*view.View{}, Views...)
	all = append(all, ocgrpc.DefaultClientViews...)
	return view.Register(all...)
}

func record(ctx context.Context, mutators []tag.Mutator, m stats.Measurement) {
	_ = stats.RecordWithTags(ctx, mutators, m)
}

func RecordSubmitted(ctx context.Context, kind model.OperationKind) {
	record(ctx, []tag.Mutator{tag.Upsert(KeyKind, string(kind))}, OperationsSubmitted.M(1))
}

func RecordRejected(ctx context.Context, kind model.OperationKind) {
	record(ctx, []tag.Mutator{tag.Upsert(KeyKind, string(kind))}, SubmissionsRejected.M(1))
}

func RecordOutcome(ctx context.Context, kind model.OperationKind, outcome model.Outcome, elapsed time.Duration) {
	mutators := []tag.Mutator{tag.Upsert(KeyKind, string(kind)), tag.Upsert(KeyOutcome, outcome.Kind.String())}
	record(ctx, mutators, OperationOutcomes.M(1))
	record(ctx, mutators, ConfirmationLatency.M(float64(elapsed)/float64(time.Millisecond)))
}

func RecordTrackerRetry(ctx context.Context, kind model.OperationKind) {
	record(ctx, []tag.Mutator{tag.Upsert(KeyKind, string(kind))}, TrackerRetries.M(1))
}

func RecordInvalidation(ctx context.Context, kind model.OperationKind) {
	record(ctx, []tag.Mutator{tag.Upsert(KeyKind, string(kind))}, Invalidations.M(1))
}

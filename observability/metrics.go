package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/XiangYd616/runq/event"
)

// meterName is the instrumentation scope name for runq metrics.
const meterName = "github.com/XiangYd616/runq"

// Metrics holds the queue's OTel instruments.
//
// Instruments:
//   - runq.job.transitions (Int64Counter): lifecycle transitions, with
//     attributes: type, class, priority
//   - runq.job.duration (Float64Histogram): execution time in seconds
//     of completed jobs, with attributes: class, priority
//   - runq.job.queue_wait (Float64Histogram): time spent pending
//     before first admission, in seconds
type Metrics struct {
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
	queueWait   metric.Float64Histogram
}

// NewMetrics creates Metrics on the global MeterProvider.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates Metrics on the provided meter, for
// callers that inject their own MeterProvider.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}
	var err error

	// On error the OTel API returns noop instruments, so the listener
	// degrades gracefully.
	m.transitions, err = meter.Int64Counter(
		"runq.job.transitions",
		metric.WithDescription("Job lifecycle transitions"),
		metric.WithUnit("{transition}"),
	)
	_ = err

	m.duration, err = meter.Float64Histogram(
		"runq.job.duration",
		metric.WithDescription("Execution time of completed jobs"),
		metric.WithUnit("s"),
	)
	_ = err

	m.queueWait, err = meter.Float64Histogram(
		"runq.job.queue_wait",
		metric.WithDescription("Time spent pending before admission"),
		metric.WithUnit("s"),
	)
	_ = err

	return m
}

// Bind attaches the metrics listener to a bus. The returned function
// detaches it.
func (m *Metrics) Bind(bus *event.Bus) func() {
	return bus.AddListener(m.Listener())
}

// Listener returns the event listener that feeds the instruments.
func (m *Metrics) Listener() event.Listener {
	return func(evt event.Event) {
		if evt.Job == nil {
			return
		}
		ctx := context.Background()
		attrs := metric.WithAttributes(
			attribute.String("type", string(evt.Type)),
			attribute.String("class", string(evt.Job.Class)),
			attribute.String("priority", string(evt.Job.Priority)),
		)
		m.transitions.Add(ctx, 1, attrs)

		jobAttrs := metric.WithAttributes(
			attribute.String("class", string(evt.Job.Class)),
			attribute.String("priority", string(evt.Job.Priority)),
		)

		switch evt.Type {
		case event.TypeStarted:
			if evt.Job.StartedAt != nil {
				m.queueWait.Record(ctx, evt.Job.StartedAt.Sub(evt.Job.QueuedAt).Seconds(), jobAttrs)
			}
		case event.TypeCompleted:
			if evt.Job.StartedAt != nil && evt.Job.FinishedAt != nil {
				m.duration.Record(ctx, evt.Job.FinishedAt.Sub(*evt.Job.StartedAt).Seconds(), jobAttrs)
			}
		}
	}
}

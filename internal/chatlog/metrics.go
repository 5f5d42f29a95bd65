package chatlog

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/MikeSquared-Agency/labguard/internal/chatlog"

type metrics struct {
	enqueued         metric.Int64Counter
	flushed          metric.Int64Counter
	flushFailures    metric.Int64Counter
	resolutionMisses metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	return &metrics{
		enqueued:         counter(meter, "labguard.chatlog.enqueued", "Chat log entries appended to the buffer"),
		flushed:          counter(meter, "labguard.chatlog.flushed", "Chat log entries persisted by a flush"),
		flushFailures:    counter(meter, "labguard.chatlog.flush_failures", "Flushes whose batch insert failed after the buffer was drained"),
		resolutionMisses: counter(meter, "labguard.chatlog.resolution_misses", "External identifiers that resolved to no record"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

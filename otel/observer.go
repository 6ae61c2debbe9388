package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/perfect-catch/pricebook-bridge/bridge"
)

// BridgeObserver records tool dispatches and resource reads into
// OpenTelemetry.
type BridgeObserver struct {
	tracer trace.Tracer

	dispatches    metric.Int64Counter
	resourceReads metric.Int64Counter
	latency       metric.Float64Histogram
}

// NewBridgeObserver creates a bridge observer bound to the provided meter/tracer.
func NewBridgeObserver(meter metric.Meter, tracer trace.Tracer) (*BridgeObserver, error) {
	dispatches, err := meter.Int64Counter(
		"pricebook.bridge.dispatches",
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	resourceReads, err := meter.Int64Counter(
		"pricebook.bridge.resource.reads",
		metric.WithDescription("Number of resource reads"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"pricebook.bridge.latency",
		metric.WithDescription("Dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &BridgeObserver{
		tracer:        tracer,
		dispatches:    dispatches,
		resourceReads: resourceReads,
		latency:       latency,
	}, nil
}

// ObserveDispatch records one tool dispatch outcome.
func (o *BridgeObserver) ObserveDispatch(observation bridge.DispatchObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", observation.Tool),
		attribute.String("transport", string(observation.Transport)),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.dispatches.Add(ctx, 1, options)
	o.latency.Record(ctx, float64(time.Duration(observation.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "bridge.dispatch", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveResource records one resource read outcome.
func (o *BridgeObserver) ObserveResource(observation bridge.ResourceObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("uri", observation.URI),
		attribute.String("transport", string(observation.Transport)),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.resourceReads.Add(ctx, 1, options)
	o.latency.Record(ctx, float64(time.Duration(observation.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "bridge.resource.read", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

var _ bridge.Observer = (*BridgeObserver)(nil)

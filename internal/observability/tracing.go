package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// BusinessMetrics holds custom business metrics
type BusinessMetrics struct {
	sharesCreated    metric.Int64Counter
	sharesResolved   metric.Int64Counter
	noticesDelivered metric.Int64Counter
	noticeFailures   metric.Int64Counter
	visitorRecords   metric.Int64Counter
	documentUploads  metric.Int64Counter
	authAttempts     metric.Int64Counter
	connectedClients metric.Int64UpDownCounter
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	sharesCreated, err := meter.Int64Counter(
		"visitreg.shares.created",
		metric.WithDescription("Total number of shares created"),
		metric.WithUnit("{shares}"),
	)
	if err != nil {
		return nil, err
	}

	sharesResolved, err := meter.Int64Counter(
		"visitreg.shares.resolved",
		metric.WithDescription("Total number of shares accepted or revoked"),
		metric.WithUnit("{shares}"),
	)
	if err != nil {
		return nil, err
	}

	noticesDelivered, err := meter.Int64Counter(
		"visitreg.notices.delivered",
		metric.WithDescription("Total number of share notifications delivered"),
		metric.WithUnit("{notices}"),
	)
	if err != nil {
		return nil, err
	}

	noticeFailures, err := meter.Int64Counter(
		"visitreg.notices.failures",
		metric.WithDescription("Total number of failed notification deliveries"),
		metric.WithUnit("{notices}"),
	)
	if err != nil {
		return nil, err
	}

	visitorRecords, err := meter.Int64Counter(
		"visitreg.visitors.registered",
		metric.WithDescription("Total number of visitor register entries created"),
		metric.WithUnit("{visitors}"),
	)
	if err != nil {
		return nil, err
	}

	documentUploads, err := meter.Int64Counter(
		"visitreg.documents.uploads",
		metric.WithDescription("Total number of document uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	authAttempts, err := meter.Int64Counter(
		"visitreg.auth.attempts",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	connectedClients, err := meter.Int64UpDownCounter(
		"visitreg.websocket.clients",
		metric.WithDescription("Number of connected WebSocket clients"),
		metric.WithUnit("{clients}"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		sharesCreated:    sharesCreated,
		sharesResolved:   sharesResolved,
		noticesDelivered: noticesDelivered,
		noticeFailures:   noticeFailures,
		visitorRecords:   visitorRecords,
		documentUploads:  documentUploads,
		authAttempts:     authAttempts,
		connectedClients: connectedClients,
	}, nil
}

// RecordShareCreated records a share creation
func (m *BusinessMetrics) RecordShareCreated(ctx context.Context, subjectKind string) {
	m.sharesCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject_kind", subjectKind),
	))
}

// RecordShareResolved records a share reaching a terminal status
func (m *BusinessMetrics) RecordShareResolved(ctx context.Context, subjectKind, outcome string) {
	m.sharesResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject_kind", subjectKind),
		attribute.String("outcome", outcome),
	))
}

// RecordNoticeDelivered records a successful notification delivery
func (m *BusinessMetrics) RecordNoticeDelivered(ctx context.Context) {
	m.noticesDelivered.Add(ctx, 1)
}

// RecordNoticeFailure records a failed notification delivery
func (m *BusinessMetrics) RecordNoticeFailure(ctx context.Context) {
	m.noticeFailures.Add(ctx, 1)
}

// RecordVisitorRegistered records a new register entry
func (m *BusinessMetrics) RecordVisitorRegistered(ctx context.Context, userID string) {
	m.visitorRecords.Add(ctx, 1, metric.WithAttributes(
		attribute.String("user_id", userID),
	))
}

// RecordDocumentUpload records a document upload
func (m *BusinessMetrics) RecordDocumentUpload(ctx context.Context, userID string, success bool) {
	m.documentUploads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Bool("success", success),
	))
}

// RecordAuthAttempt records an authentication attempt
func (m *BusinessMetrics) RecordAuthAttempt(ctx context.Context, method string, success bool) {
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth_method", method),
		attribute.Bool("success", success),
	))
}

// RecordClientConnected tracks WebSocket client connections
func (m *BusinessMetrics) RecordClientConnected(ctx context.Context, delta int64) {
	m.connectedClients.Add(ctx, delta)
}

package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	roomsSpanName    = "rooms.fetch"
	roomsEventName   = "rooms.fetch.metrics"
	roomsEventDomain = "quicktodo.rooms"

	tracerName = "quicktodo-api/api"
)

// roomRequestMetrics accumulates per-request measurements for the room fetch
// endpoint and emits them once, as both a span and an observability.event log
// entry sharing the same attribute set.
type roomRequestMetrics struct {
	logger *log.Logger
	span   trace.Span

	start           time.Time
	fetchDuration   time.Duration
	projectDuration time.Duration
	encodeDuration  time.Duration
	todosReturned   int
	filtered        bool
	sortBy          string
	errorStage      string
}

// newRoomRequestMetrics starts the request span and returns the span-carrying
// context for downstream calls.
func newRoomRequestMetrics(ctx context.Context, logger *log.Logger) (*roomRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, roomsSpanName)
	return &roomRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *roomRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *roomRequestMetrics) ObserveProject(d time.Duration) {
	if d > 0 {
		m.projectDuration = d
	}
}

func (m *roomRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *roomRequestMetrics) SetTodosReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.todosReturned = count
}

func (m *roomRequestMetrics) SetFiltered(filtered bool) {
	m.filtered = filtered
}

func (m *roomRequestMetrics) SetSortBy(mode string) {
	m.sortBy = mode
}

func (m *roomRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finalizes the request: attributes land on the span, as a span event and
// as a structured log entry, then the span ends. Call exactly once.
func (m *roomRequestMetrics) Log(status int, err error) {
	if m == nil || m.span == nil {
		return
	}

	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", "/api/rooms/:id"),
		attribute.Int("http.status_code", status),
		attribute.Float64("quicktodo.rooms.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("quicktodo.rooms.todos_returned", m.todosReturned),
		attribute.Bool("quicktodo.rooms.filtered", m.filtered),
	}
	if m.sortBy != "" {
		attrs = append(attrs, attribute.String("quicktodo.rooms.sort_by", m.sortBy))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("quicktodo.rooms.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.projectDuration > 0 {
		attrs = append(attrs, attribute.Float64("quicktodo.rooms.project_ms", durationToMillis(m.projectDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("quicktodo.rooms.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("quicktodo.rooms.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)

	eventAttrs := make([]attribute.KeyValue, 0, len(attrs)+4)
	eventAttrs = append(eventAttrs,
		attribute.String("event.name", roomsEventName),
		attribute.String("event.domain", roomsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	)
	eventAttrs = append(eventAttrs, attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else if status >= 500 {
		m.span.SetStatus(codes.Error, "server error")
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}

	logAttrs := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		logAttrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      roomsEventName,
		"event.domain":    roomsEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      logAttrs,
	}
	spanCtx := m.span.SpanContext()
	if spanCtx.HasTraceID() {
		fields["trace_id"] = spanCtx.TraceID().String()
	}
	if spanCtx.HasSpanID() {
		fields["span_id"] = spanCtx.SpanID().String()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

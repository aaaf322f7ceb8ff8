package tracing

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Bridge span attributes taken from the matched route's wildcards.
const (
	AttrPluginSlug      = attribute.Key("plugin.slug")
	AttrPluginOperation = attribute.Key("plugin.operation")
)

// SpanMiddleware wraps the bridge mux with one server span per request.
// The span starts under the raw path and is renamed to the matched route
// pattern once the mux has routed the request, so every plugin operation
// shares one span name and carries its slug as an attribute.
func SpanMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.GetTracerProvider().Tracer(InstrumentationName+"/api").Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		routed := r.WithContext(ctx)
		next.ServeHTTP(rec, routed)

		annotate(span, routed, rec)
	})
}

// annotate copies what routing and the handler produced onto span.
func annotate(span trace.Span, r *http.Request, rec *statusRecorder) {
	if r.Pattern != "" {
		span.SetName(r.Pattern)
		span.SetAttributes(semconv.HTTPRoute(r.Pattern))
	}
	if slug := r.PathValue("slug"); slug != "" {
		span.SetAttributes(AttrPluginSlug.String(slug))
	}
	if op := r.PathValue("op"); op != "" {
		span.SetAttributes(AttrPluginOperation.String(op))
	}
	span.SetAttributes(
		semconv.HTTPResponseStatusCode(rec.status),
		attribute.Int("http.response.body.size", rec.size),
	)
	switch {
	case rec.status >= 500:
		span.SetStatus(codes.Error, http.StatusText(rec.status))
	case rec.status >= 400:
		span.SetAttributes(attribute.Bool("error", true))
	}
}

// statusRecorder remembers the first status code and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	size    int
	started bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.started {
		s.status, s.started = code, true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.started = true
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

// Flush keeps the restart endpoint's early flush working through the
// middleware.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		s.started = true
		f.Flush()
	}
}

// Hijack lets the event stream upgrade to a websocket.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("tracing: response writer does not support hijacking")
	}
	s.status, s.started = http.StatusSwitchingProtocols, true
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

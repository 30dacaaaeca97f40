package middleware

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/configuration"
	"github.com/devotee-admin/hierarchy/pkg/httpapi"
)

type LoggerOptions struct {
	LogRequestBody bool
	MaxBodyLength  int

	RequestIDHeader string
	InitiatorHeader string
	RealIPHeader    string

	// Repanic rethrows a recovered panic after the 500 is written.
	Repanic bool
}

func DefaultLoggerOptions(conf *configuration.Configuration) LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  true,
		MaxBodyLength:   512,
		RequestIDHeader: conf.RequestIDHeader,
		InitiatorHeader: conf.InitiatorHeader,
		RealIPHeader:    conf.RealIPHeader,
	}
}

func (o LoggerOptions) header(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(name))
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

var tracer = otel.Tracer("hierarchy-middleware")

// WithLogger opens the request span, binds a request scoped logger, the request
// id and the initiator to the context, and turns handler panics into a JSON 500.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := opts.header(r, opts.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ip := opts.header(r, opts.RealIPHeader)
			if ip == "" {
				ip = r.RemoteAddr
			}

			log := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"path":       r.URL.Path,
				"method":     r.Method,
			})

			propagator := propagation.TraceContext{}
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, "http.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
					attribute.String("http.request_id", requestID),
					attribute.String("net.peer.ip", ip),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				log = log.WithField("trace-id", sc.TraceID().String())
			}
			w.Header().Set("X-Request-Id", requestID)

			if raw := opts.header(r, opts.InitiatorHeader); raw != "" {
				initiator, err := uuid.Parse(raw)
				if err != nil {
					_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_INITIATOR",
						"initiator header is not a uuid", map[string]string{"request_id": requestID})
					return
				}
				ctx = composables.WithInitiator(ctx, initiator)
				log = log.WithField("initiator-id", initiator)
			}

			if opts.LogRequestBody && r.Body != nil && r.Method != http.MethodGet &&
				strings.Contains(r.Header.Get("Content-Type"), "application/json") {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body", nil)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				log.WithField("request-body", truncate(string(body), opts.MaxBodyLength)).Debug("request body")
			}

			ctx = composables.WithLogger(ctx, log)
			ctx = composables.WithRequestID(ctx, requestID)

			ww := &responseCaptureWriter{ResponseWriter: w}
			defer func() {
				if recovered := recover(); recovered != nil {
					span.SetStatus(codes.Error, "panic")
					log.WithFields(logrus.Fields{
						"panic":    recovered,
						"stack":    string(debug.Stack()),
						"duration": time.Since(start),
					}).Error("panic recovered in request handler")
					if !ww.statusWritten {
						_ = httpapi.WriteError(ww, http.StatusInternalServerError, httpapi.CodeInternal,
							"internal server error", map[string]string{"request_id": requestID})
					}
					if opts.Repanic {
						panic(recovered)
					}
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
			)
			entry := log.WithFields(logrus.Fields{
				"status-code": status,
				"duration":    duration,
				"ip":          ip,
			})
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
				entry.Error("request completed")
				return
			}
			entry.Info("request completed")
		})
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

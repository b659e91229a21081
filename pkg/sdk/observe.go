package ragd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	viaTCP  = "tcp"
	viaHTTP = "http"
)

// Call outcomes. "rejected" means the server answered with an error reply.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeCanceled = "canceled"
	outcomeError    = "error"
)

type clientMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Client calls by operation, transport and outcome.",
		}, []string{"operation", "transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Client call latency. Answers and pipeline runs dominate the upper buckets.",
			Buckets:   []float64{.005, .05, .25, 1, 2.5, 5, 15, 30, 60, 120, 300},
		}, []string{"operation", "transport"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at an identical collector already
// registered by another Client sharing reg.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("ragd: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("ragd: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts client calls. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

type call struct {
	o         *observer
	op        string
	transport string
	start     time.Time
}

// begin starts timing op. Use as: defer c.obs.begin("ask", viaTCP).end(&err).
func (o *observer) begin(op, transport string) call {
	return call{o: o, op: op, transport: transport, start: time.Now()}
}

func (c call) end(errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	elapsed := time.Since(c.start)
	outcome := classify(err)

	if m := c.o.metrics; m != nil {
		m.calls.WithLabelValues(c.op, c.transport, outcome).Inc()
		m.duration.WithLabelValues(c.op, c.transport).Observe(elapsed.Seconds())
	}

	l := c.o.logger
	if l == nil {
		return
	}
	attrs := []any{
		slog.String("op", c.op),
		slog.String("transport", c.transport),
		slog.Duration("duration", elapsed),
	}
	switch outcome {
	case outcomeOK:
		l.Debug("ragd call", attrs...)
	case outcomeCanceled, outcomeRejected:
		l.Info("ragd call "+outcome, append(attrs, slog.String("error", err.Error()))...)
	default:
		l.Warn("ragd call failed", append(attrs, slog.String("error", err.Error()))...)
	}
}

func classify(err error) string {
	if err == nil {
		return outcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCanceled
	}
	var reply *ReplyError
	if errors.As(err, &reply) {
		return outcomeRejected
	}
	var api *APIError
	if errors.As(err, &api) && api.StatusCode < 500 {
		return outcomeRejected
	}
	return outcomeError
}

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

const namespace = "orderstock"

const resultOK = "ok"

// OrderMetrics tracks order and stock operations.
type OrderMetrics struct {
	operations          *prometheus.CounterVec
	duration            *prometheus.HistogramVec
	reservationFailures *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_operations_total",
		Help:      "Order and stock operations partitioned by outcome.",
	}, []string{"operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "orders_operation_duration_seconds",
		Help:      "Duration of order and stock operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reservation_failures_total",
		Help:      "Stock reservations rejected by the ledger.",
	}, []string{"reason"})
	reg.MustRegister(operations, duration, failures)
	return &OrderMetrics{
		operations:          operations,
		duration:            duration,
		reservationFailures: failures,
	}
}

// Observe records the outcome and latency of one operation.
func (m *OrderMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, ResultLabel(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// IncReservationFailure counts a rejected reservation.
func (m *OrderMetrics) IncReservationFailure(reason string) {
	if m == nil || m.reservationFailures == nil {
		return
	}
	m.reservationFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ResultLabel maps an error onto a bounded label value.
func ResultLabel(err error) string {
	if err == nil {
		return resultOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return strings.ToLower(string(pkgerrors.CodeInternal))
}

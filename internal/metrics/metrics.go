// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "biblio"

// Lending holds the loan lifecycle collectors. A nil *Lending records nothing.
type Lending struct {
	loansCreated  prometheus.Counter
	loansReturned prometheus.Counter
	rejections    *prometheus.CounterVec
	remindersSent prometheus.Counter
	publishFailed prometheus.Counter
	overdueLoans  prometheus.Gauge
}

// NewLending registers the lending collectors on reg.
func NewLending(reg prometheus.Registerer) *Lending {
	f := promauto.With(reg)
	return &Lending{
		loansCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Loans successfully created.",
		}),
		loansReturned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_returned_total",
			Help:      "Loans closed by a return.",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_rejections_total",
			Help:      "Loan requests refused by a lending rule.",
		}, []string{"reason"}),
		remindersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overdue_reminders_sent_total",
			Help:      "Overdue reminder events published.",
		}),
		publishFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Loan events that could not be published.",
		}),
		overdueLoans: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_loans",
			Help:      "Open loans past their due date at the last scan.",
		}),
	}
}

func (m *Lending) LoanCreated() {
	if m != nil {
		m.loansCreated.Inc()
	}
}

func (m *Lending) LoanReturned() {
	if m != nil {
		m.loansReturned.Inc()
	}
}

func (m *Lending) LoanRejected(reason string) {
	if m != nil {
		m.rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Lending) ReminderSent() {
	if m != nil {
		m.remindersSent.Inc()
	}
}

func (m *Lending) EventPublishFailed() {
	if m != nil {
		m.publishFailed.Inc()
	}
}

func (m *Lending) SetOverdueLoans(n int) {
	if m != nil {
		m.overdueLoans.Set(float64(n))
	}
}

// HTTP instruments requests by chi route pattern, so /users/7 and /users/8
// share one series.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Middleware records every request once the handler has returned.
func (h *HTTP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		h.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

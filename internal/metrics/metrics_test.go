package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLendingCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLending(reg)

	m.LoanCreated()
	m.LoanCreated()
	m.LoanReturned()
	m.LoanRejected("no_copies_left")
	m.SetOverdueLoans(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loansCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loansReturned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("no_copies_left")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.overdueLoans))
}

func TestNilLendingIsNoop(t *testing.T) {
	var m *Lending
	assert.NotPanics(t, func() {
		m.LoanCreated()
		m.LoanReturned()
		m.LoanRejected("user_inactive")
		m.ReminderSent()
		m.EventPublishFailed()
		m.SetOverdueLoans(1)
	})
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/users/1", "/users/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(h.requests.WithLabelValues("/users/{id}", http.MethodGet, "404")))
}

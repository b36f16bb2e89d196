package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-upstream", "200"))
	ObserveUpstream("test-upstream", 200)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-upstream", "200")))

	beforeErr := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-upstream", "error"))
	ObserveUpstream("test-upstream", 0)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-upstream", "error")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestTotals.WithLabelValues("GET", "/items/{id}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, float64(0), testutil.ToFloat64(HTTPRequestInFlight))
}

func TestMiddleware_UnmatchedRoutesShareOneSeries(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	counter := HTTPRequestTotals.WithLabelValues("GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)
	series := testutil.CollectAndCount(HTTPRequestTotals)

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/random-%d", i), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, before+20, testutil.ToFloat64(counter))
	assert.Equal(t, series, testutil.CollectAndCount(HTTPRequestTotals))
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/crawl/{date}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/crawl/{date}", "200"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/crawl/2023-01-13", http.NoBody))

	assert.Equal(t, http.StatusOK, rr.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/crawl/{date}", "200"))
	assert.Equal(t, before+1, after)
	assert.Positive(t, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/missing", "404"},
		{"/bad", "502"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", tc.path, tc.status))
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tc.path, http.NoBody))
			after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", tc.path, tc.status))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestMiddleware_OutsideRouter(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", http.NoBody))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "418"))
	assert.Equal(t, before+1, after)
}

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

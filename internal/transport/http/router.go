package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires /metrics and every feature registrar onto one chi router.
func NewRouter(gatherer prometheus.Gatherer, registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

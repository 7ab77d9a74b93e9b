// Package router arma el árbol de rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/statusmvp/wallet-auth/internal/config"
	apihttp "github.com/statusmvp/wallet-auth/internal/http"
	authctrl "github.com/statusmvp/wallet-auth/internal/http/controllers/auth"
	"github.com/statusmvp/wallet-auth/internal/http/middlewares"
	"github.com/statusmvp/wallet-auth/internal/kv"
	"github.com/statusmvp/wallet-auth/internal/metrics"
)

// New construye el router con los endpoints de autenticación, health y,
// si están habilitadas, las métricas Prometheus.
func New(cfg config.AuthConfig, ctrl *authctrl.Controller, store kv.Store) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "store": "ok"}
		code := http.StatusOK
		if err := store.Ping(req.Context()); err != nil {
			status["store"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		apihttp.WriteJSON(w, code, status)
	})

	if cfg.MetricsEnabled {
		metrics.RegisterAuth(nil)
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/.well-known/jwks.json", ctrl.JWKS)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Get("/x/start", ctrl.StartXLogin)
		r.Get("/x/callback", ctrl.XCallback)
		r.Post("/tg/login", ctrl.TelegramLogin)
		r.Post("/exchange", ctrl.Exchange)
		r.Post("/refresh", ctrl.Refresh)
		r.Get("/me", ctrl.Me)
		r.Post("/providers/bind", ctrl.BindProvider)
		r.Post("/providers/unbind", ctrl.UnbindProvider)
		r.Get("/sync/dapps", ctrl.GetSync)
		r.Post("/sync/dapps", ctrl.UpsertSync)
	})

	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
	)
}

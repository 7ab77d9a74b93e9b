package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth-related Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the auth services and the HTTP packages.

var (
	LoginSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_success_total",
		Help: "Logins exitosos por proveedor",
	}, []string{"provider"})

	LoginFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_failure_total",
		Help: "Logins fallidos por proveedor y razón",
	}, []string{"provider", "reason"})

	ProviderUnavailable = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_provider_unavailable_total",
		Help: "Fallos upstream del proveedor de identidad",
	}, []string{"provider"})

	BindSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_bind_success_total",
		Help: "Bindings de proveedor exitosos",
	})

	BindFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_bind_failure_total",
		Help: "Bindings de proveedor fallidos por razón",
	}, []string{"reason"})

	UnbindSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_unbind_success_total",
		Help: "Unbinds de proveedor exitosos",
	})

	UnbindFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_unbind_failure_total",
		Help: "Unbinds de proveedor fallidos por razón",
	}, []string{"reason"})

	SyncError = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sync_error_total",
		Help: "Errores de sync de perfil por razón",
	}, []string{"reason"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Peticiones rechazadas por rate limit, por alcance",
	}, []string{"scope"})
)

// RegisterAuth registers the auth metrics on the given registry (or default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		LoginSuccess, LoginFailure, ProviderUnavailable,
		BindSuccess, BindFailure, UnbindSuccess, UnbindFailure,
		SyncError, RateLimited,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

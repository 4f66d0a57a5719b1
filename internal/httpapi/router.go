// Package httpapi wires the IFTTT Dispatcher and the Tenant Admin API
// onto a chi router: URL pattern matching, auth middleware, CORS, and
// the error-shape translation described by spec.md §4.4, §4.9, §7.
package httpapi

import (
	"net/http"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/realtime"
	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps bundles everything the dispatcher and admin handlers need. It is
// assembled once at startup in cmd/server/main.go.
type Deps struct {
	ServiceKey string
	HMACSecret string

	Global   store.GlobalStore
	Registry store.Registry
	Broker   *broker.Manager
	Proxy    *tunnel.Proxy
	Notifier *realtime.Notifier
	OAuth    *auth.Service
}

// Routes builds the full router: chi's own request-id/recoverer stack,
// this service's correlation-id and CORS middleware, the OAuth/demo
// routes, the IFTTT dispatcher, and the tenant admin API.
func Routes(d *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(CorrelationMiddleware)
	r.Use(corsMiddleware())
	r.Use(antiIndexingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	r.Post("/oauth/authorize", d.OAuth.Authorize)
	r.Post("/oauth/approve", d.OAuth.Approve)
	r.Post("/oauth/token", d.OAuth.Token)
	r.Post("/oauth/demo-login", d.OAuth.DemoLogin)

	disp := &dispatcher{d: d}
	r.Route("/ifttt/v1", func(r chi.Router) {
		r.Get("/status", disp.status)
		r.Get("/test/setup", disp.testSetup)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.HMACSecret, d.Global))

			r.Get("/user/info", disp.userInfo)

			r.Post("/triggers/{slug}", disp.trigger)
			r.Delete("/triggers/{slug}/trigger_identity/{id}", disp.deleteTriggerIdentity)
			r.Post("/triggers/{slug}/fields/{field}/options", disp.fieldOptions)
			r.Post("/triggers/{slug}/fields/{field}/validate", disp.fieldValidate)

			r.Post("/actions/{slug}", disp.action)
			r.Post("/actions/{slug}/fields/{field}/options", disp.fieldOptions)

			r.Post("/queries/{slug}", disp.query)
		})
	})

	admin := &adminAPI{d: d}
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.ManagementMiddleware(d.Registry))

		r.Post("/events/push", admin.eventsPush)
		r.Get("/queue/pending", admin.queuePending)
		r.Post("/queue/ack", admin.queueAck)
		r.Post("/field-options/push", admin.fieldOptionsPush)
		r.Get("/ifttt-status", admin.iftttStatus)
		r.Post("/ifttt-disconnect", admin.iftttDisconnect)
		r.Get("/action-secret", admin.actionSecret)
		r.Get("/action-history", admin.actionHistoryGet)
		r.Post("/action-history", admin.actionHistoryPost)
		r.Get("/trigger-history", admin.triggerHistory)
		r.Get("/subscriptions", admin.subscriptions)
		r.Get("/tunnel-test", admin.tunnelTest)
	})

	return r
}

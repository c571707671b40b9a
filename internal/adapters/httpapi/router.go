package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// AuthMiddleware guards every non-public route. Required.
	AuthMiddleware func(http.Handler) http.Handler

	Logger *zap.Logger
	// Registry receives HTTP metrics and is served on /metrics. Nil disables both.
	Registry *prometheus.Registry

	// InviteRatePerMinute and InviteRateBurst bound per-IP traffic to the /join routes.
	// Zero values fall back to 30/min with a burst of 10.
	InviteRatePerMinute int
	InviteRateBurst     int
}

// NewRouterWithOptions constructs the API HTTP router.
func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	perMinute, burst := opts.InviteRatePerMinute, opts.InviteRateBurst
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 10
	}
	limiter := newIPLimiter(perMinute, burst)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log.Named("http")))
	if opts.Registry != nil {
		r.Use(requestMetrics(opts.Registry))
	}
	r.Use(middleware.Recoverer)

	// Infra endpoints, unauthenticated.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	// Invite landing page data, unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Get("/join", s.previewInvite)
		r.Get("/join/{slugOrCode}", s.previewInvite)
	})

	r.Group(func(r chi.Router) {
		r.Use(opts.AuthMiddleware)

		r.Post("/travelers/me", s.hydrateMe)
		r.Get("/travelers/me", s.getMe)

		r.Post("/crews", s.createCrew)
		r.Get("/crews", s.listMyCrews)
		r.Route("/crews/{crewId}", func(r chi.Router) {
			r.Get("/", s.getCrew)
			r.Post("/members", s.addCrewMember)
			r.Get("/invite", s.getInviteLink)
			r.Get("/invites", s.listInvites)
			r.Post("/invites", s.issueInvite)
			r.Delete("/invites/{code}", s.deactivateInvite)
			r.Get("/trips", s.listCrewTrips)
			r.Post("/trips", s.createTrip)
		})

		r.Get("/trips/{tripId}", s.getTrip)
		r.Patch("/trips/{tripId}", s.updateTrip)

		r.With(limiter.middleware).Post("/join", s.joinCrew)
		r.With(limiter.middleware).Post("/join/{slugOrCode}", s.joinCrew)
	})

	return r
}

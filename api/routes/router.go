package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cabinetworks/contractor-backend/api/controllers"
	ordercontrollers "github.com/cabinetworks/contractor-backend/api/controllers/orders"
	proposalcontrollers "github.com/cabinetworks/contractor-backend/api/controllers/proposals"
	"github.com/cabinetworks/contractor-backend/api/middleware"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
)

// Services are the handlers' dependencies.
type Services struct {
	Acceptor      proposalcontrollers.Acceptor
	Sessions      proposalcontrollers.SessionIssuer
	Manufacturers ordercontrollers.ManufacturerService
	Renderer      ordercontrollers.DocumentRenderer
	// Readiness checks keyed by name; nil entries are skipped.
	Readiness map[string]controllers.Pinger
	Gatherer  prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.ClientIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, svc.Readiness))
	})

	gatherer := svc.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/proposals/{proposalId}/accept", proposalcontrollers.PublicAccept(svc.Acceptor, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRoles(logg, enums.UserRoleAdmin, enums.UserRoleContractor, enums.UserRoleStaff))
		r.Route("/proposals/{proposalId}", func(r chi.Router) {
			r.Post("/accept", proposalcontrollers.Accept(svc.Acceptor, logg))
			r.Post("/sessions", proposalcontrollers.CreateSession(svc.Sessions, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRoles(logg, enums.UserRoleAdmin))
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/manufacturer-document", ordercontrollers.ManufacturerDocument(svc.Manufacturers, svc.Renderer, logg))
			r.Post("/manufacturer-resend", ordercontrollers.ManufacturerResend(svc.Manufacturers, logg))
		})
	})

	return r
}

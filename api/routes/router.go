package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elocalpass/elocalpass-backend/api/controllers"
	"github.com/elocalpass/elocalpass-backend/api/middleware"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/orders"
	"github.com/elocalpass/elocalpass-backend/internal/rebuy"
	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/qstash"
)

// RouterParams carries everything the HTTP surface is wired to. Cache and
// Gatherer are optional.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Cache      controllers.Pinger
	Gatherer   prometheus.Gatherer
	Verifier   *qstash.Verifier
	Scheduling scheduling.Service
	Rebuy      rebuy.Service
	Orders     orders.Service
	Templates  emailtemplates.Service
	DLQ        controllers.DLQLister
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Cache))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	trigger := middleware.Trigger(cfg.Scheduling.CronSecret, p.Verifier, logg)

	r.Route("/scheduled-qr", func(r chi.Router) {
		r.With(trigger).Post("/process-single", controllers.ProcessScheduledQR(p.Scheduling, logg))
		r.With(trigger).Post("/retry-overdue", controllers.RetryOverdue(p.Scheduling, logg))
		r.Get("/retry-overdue", controllers.RetryOverdueInfo())
		if cfg.API.AdminToken != "" {
			r.With(middleware.BearerToken(middleware.CallerAdmin, cfg.API.AdminToken, logg)).
				Get("/", controllers.ListScheduledQR(p.Scheduling, logg))
		}
	})

	r.Route("/rebuy-emails", func(r chi.Router) {
		r.Use(trigger)
		r.Post("/send", controllers.SendRebuyEmails(p.Rebuy, logg))
		r.Post("/send-single", controllers.SendSingleRebuyEmail(p.Rebuy, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.BearerToken(middleware.CallerIntake, cfg.API.IntakeToken, logg)).
			Post("/orders", controllers.CreateOrder(p.Orders, logg))
	})

	if cfg.API.AdminToken != "" {
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.CORS(cfg.Portal.BaseURL))
			r.Use(middleware.BearerToken(middleware.CallerAdmin, cfg.API.AdminToken, logg))
			r.Post("/email-templates", controllers.AdminCreateEmailTemplate(p.Templates, logg))
			r.Post("/email-templates/{templateId}/default", controllers.AdminSetDefaultEmailTemplate(p.Templates, logg))
			r.Get("/scheduled-qr", controllers.ListScheduledQR(p.Scheduling, logg))
			r.Get("/outbox/dlq", controllers.AdminListOutboxDLQ(p.DLQ, logg))
		})
	}

	return r
}

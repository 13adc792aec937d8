// Package bootstrap wires the domain services shared by the api and
// cron-worker binaries.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/notifications"
	"github.com/elocalpass/elocalpass-backend/internal/orders"
	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/internal/rebuy"
	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
	"github.com/elocalpass/elocalpass-backend/pkg/qstash"
)

// Services is the fully wired domain layer.
type Services struct {
	Configurations configurations.Service
	Templates      emailtemplates.Service
	Notifications  notifications.Service
	QRCodes        qrcodes.Service
	Scheduling     scheduling.Service
	Rebuy          rebuy.Service
	Orders         orders.Service
	OutboxRepo     *outbox.Repository
	OutboxDLQ      *outbox.DLQRepository
	Metrics        *metrics.DeliveryMetrics
}

// Build constructs every domain service over dbClient. Delivery metrics are
// registered on reg when it is non-nil.
func Build(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Services, error) {
	conn := dbClient.DB()
	deliveryMetrics := metrics.NewDeliveryMetrics(reg)

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	configurationsSvc, err := configurations.NewService(configurations.NewRepository(conn), logg)
	if err != nil {
		return nil, fmt.Errorf("configurations service: %w", err)
	}

	templatesSvc, err := emailtemplates.NewService(emailtemplates.ServiceParams{
		Repo:   emailtemplates.NewRepository(conn),
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("email templates service: %w", err)
	}

	sender, err := notifications.NewSender(cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Sender:      sender,
		Repo:        notifications.NewRepository(conn),
		Logger:      logg,
		Metrics:     deliveryMetrics,
		SendTimeout: cfg.Email.SendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}

	qrRepo := qrcodes.NewRepository(conn)
	qrSvc, err := qrcodes.NewService(qrcodes.ServiceParams{
		Repo:           qrRepo,
		DB:             dbClient,
		Configurations: configurationsSvc,
		Templates:      templatesSvc,
		Notifications:  notificationsSvc,
		Outbox:         outboxSvc,
		Portal:         cfg.Portal,
		Logger:         logg,
		Metrics:        deliveryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("qr codes service: %w", err)
	}

	dispatcher, err := newDispatcher(cfg.Scheduling)
	if err != nil {
		return nil, err
	}
	schedulingSvc, err := scheduling.NewService(scheduling.ServiceParams{
		Repo:           scheduling.NewRepository(conn),
		DB:             dbClient,
		Issuer:         qrSvc,
		Outbox:         outboxSvc,
		Dispatcher:     dispatcher,
		Logger:         logg,
		Metrics:        deliveryMetrics,
		RetryBatchSize: cfg.Scheduling.RetryBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling service: %w", err)
	}

	rebuySvc, err := rebuy.NewService(rebuy.ServiceParams{
		QRCodes:        qrRepo,
		DB:             dbClient,
		Configurations: configurationsSvc,
		Templates:      templatesSvc,
		Notifications:  notificationsSvc,
		Outbox:         outboxSvc,
		Portal:         cfg.Portal,
		Config:         cfg.Rebuy,
		Logger:         logg,
		Metrics:        deliveryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuy service: %w", err)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		DB:        dbClient,
		Issuer:    qrSvc,
		Scheduler: schedulingSvc,
		Logger:    logg,
		Metrics:   deliveryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	return &Services{
		Configurations: configurationsSvc,
		Templates:      templatesSvc,
		Notifications:  notificationsSvc,
		QRCodes:        qrSvc,
		Scheduling:     schedulingSvc,
		Rebuy:          rebuySvc,
		Orders:         ordersSvc,
		OutboxRepo:     outboxRepo,
		OutboxDLQ:      outbox.NewDLQRepository(conn),
		Metrics:        deliveryMetrics,
	}, nil
}

// newDispatcher returns nil when QStash is not configured; overdue records are
// then picked up by the retry sweep.
func newDispatcher(cfg config.SchedulingConfig) (scheduling.Dispatcher, error) {
	if !cfg.DispatchEnabled() {
		return nil, nil
	}
	client, err := qstash.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("qstash client: %w", err)
	}
	return scheduling.NewQStashDispatcher(client, cfg.CallbackBaseURL, cfg.QStashRetries), nil
}

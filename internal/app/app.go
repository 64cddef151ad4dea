// Package app assembles repositories, providers and services from a
// Config. The server and the rentalctl commands share it.
package app

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/gateway"
	"github.com/iliyamo/property-rental-api/internal/notify"
	"github.com/iliyamo/property-rental-api/internal/queue"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/service"
)

// ReminderJob is the scheduler name of the overdue-invoice job.
const ReminderJob = "invoice-reminders"

// Services holds every service built for one process.
type Services struct {
	Settings   *repository.SettingsRepo
	Params     *service.Params
	Links      *service.LinkGenerator
	Dispatcher *service.Dispatcher
	Verifier   *service.CredentialVerifier
	Tokens     *service.TokenStore
	Partners   *service.PartnerService
	Invoices   *service.InvoiceService
	Payments   *service.PaymentInitiator
	Catalog    *service.Catalog
	Contracts  *service.ContractService
	Publisher  *queue.Publisher
}

// Build wires the MySQL repositories into the services. Gateways are only
// registered when their credentials are configured.
func Build(cfg config.Config, db *sqlx.DB, log *zap.Logger) *Services {
	contacts := repository.NewContactRepo(db)
	settings := repository.NewSettingsRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	payments := repository.NewPaymentRepo(db)
	reminders := repository.NewReminderRepo(db)
	contracts := repository.NewContractRepo(db)
	properties := repository.NewPropertyRepo(db)
	schedules := repository.NewScheduleRepo(db)

	pub := queue.NewPublisher(cfg.AMQPURL, log)
	params := service.NewParams(settings)
	links := service.NewLinkGenerator(invoices, settings)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Invoices:  invoices,
		Contacts:  contacts,
		Reminders: reminders,
		Settings:  settings,
		Links:     links,
		Params:    params,
		SMS:       notify.NewSMS(cfg.SMS, nil),
		Email:     notify.NewEmail(cfg.SMTP),
	}, log)

	var providers []gateway.Provider
	if cfg.Wave.APIKey != "" {
		providers = append(providers, gateway.NewWave(cfg.Wave, nil))
	}
	if cfg.Orange.ClientID != "" {
		providers = append(providers, gateway.NewOrange(cfg.Orange, nil))
	}
	if len(providers) == 0 {
		log.Warn("no payment gateway configured; checkouts will be rejected")
	}

	return &Services{
		Settings:   settings,
		Params:     params,
		Links:      links,
		Dispatcher: dispatcher,
		Verifier:   service.NewCredentialVerifier(contacts, cfg, log),
		Tokens:     service.NewTokenStore(repository.NewTokenRepo(db), settings, cfg, log),
		Partners: service.NewPartnerService(service.PartnerDeps{
			Contacts:   contacts,
			Contracts:  contracts,
			Properties: properties,
			Invoices:   invoices,
			Schedules:  schedules,
			Dispatcher: dispatcher,
		}, cfg, log),
		Invoices: service.NewInvoiceService(service.InvoiceDeps{
			Invoices:   invoices,
			Payments:   payments,
			Reminders:  reminders,
			Links:      links,
			Dispatcher: dispatcher,
			Events:     pub,
		}, log),
		Payments: service.NewPaymentInitiator(service.PaymentDeps{
			Invoices:       invoices,
			Contacts:       contacts,
			Gateways:       repository.NewGatewayRepo(db),
			Payments:       payments,
			Links:          links,
			Params:         params,
			Events:         pub,
			ReservationTTL: 2 * max(cfg.Wave.Timeout, cfg.Orange.Timeout),
		}, providers, cfg.Phone, log),
		Catalog:   service.NewCatalog(repository.NewBuildingRepo(db), properties, contracts, schedules, invoices),
		Contracts: service.NewContractService(contracts, schedules, invoices, links, cfg.Currency, log),
		Publisher: pub,
	}
}

// RemindJob runs one reminder pass for today.
func (s *Services) RemindJob(log *zap.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		run, err := s.Dispatcher.RunReminders(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if run.Disabled {
			log.Info("automatic reminders disabled by the active front configuration")
		}
		return nil
	}
}

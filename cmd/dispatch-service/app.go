package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"dispatch-service/internal/config"
	"dispatch-service/internal/db"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/service"
)

// app is the wired service graph shared by the subcommands.
type app struct {
	cfg         *config.Config
	log         zerolog.Logger
	db          *gorm.DB
	dispatcher  *service.DispatchService
	coordinator *service.ReassignmentService
	reaper      *service.TimeoutReaper
	assignments *service.AssignmentService
	closers     []io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	a := &app{cfg: cfg, log: appLogger, db: database}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	store := repository.NewStore(database)
	directory := service.NewDriverDirectory(store.Drivers)
	a.dispatcher = service.NewDispatchService(store, directory, notifier, cfg.Dispatch.AssignmentTimeout, appLogger)
	a.coordinator = service.NewReassignmentService(store, a.dispatcher, appLogger)
	a.reaper = service.NewTimeoutReaper(store, a.coordinator, cfg.Dispatch.SweepBatchSize, appLogger)
	a.assignments = service.NewAssignmentService(store, a.coordinator, appLogger)

	return a, nil
}

// buildNotifier picks every configured channel; with none configured offers are only logged.
func (a *app) buildNotifier() (service.Notifier, error) {
	var senders notify.Fanout

	if a.cfg.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(a.cfg.Notify.AMQPURL, a.cfg.Notify.AMQPExchange, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher)
		senders = append(senders, publisher)
	}
	if a.cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookClient(a.cfg.Notify.WebhookURL, a.cfg.Notify.WebhookToken))
	}

	switch len(senders) {
	case 0:
		return notify.NewLogNotifier(a.log), nil
	case 1:
		return senders[0], nil
	default:
		return senders, nil
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

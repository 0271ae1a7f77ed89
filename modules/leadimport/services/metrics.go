package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/pkg/eventbus"
)

var (
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadimport",
		Name:      "rows_total",
		Help:      "Imported spreadsheet rows by outcome.",
	}, []string{"outcome"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadimport",
		Name:      "batches_total",
		Help:      "Finalized import batches by status.",
	}, []string{"status"})

	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadimport",
		Name:      "token_refreshes_total",
		Help:      "Access token refresh attempts by result.",
	}, []string{"result"})

	connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadimport",
		Name:      "connection_events_total",
		Help:      "Google connection lifecycle events.",
	}, []string{"event"})
)

// SubscribeObservers records metrics and audit log lines for lead import
// events published on bus.
func SubscribeObservers(bus eventbus.EventBus, logger *logrus.Logger) {
	bus.Subscribe(func(e *importbatch.CompletedEvent) {
		batchesTotal.WithLabelValues(string(e.Status)).Inc()
		logger.WithFields(logrus.Fields{
			"tenant-id": e.TenantID,
			"batch-id":  e.BatchID,
			"status":    e.Status,
			"total":     e.TotalRows,
			"imported":  e.ImportedCount,
			"skipped":   e.SkippedCount,
			"errors":    e.ErrorCount,
		}).Info("lead import completed")
	})
	bus.Subscribe(func(e *connection.RefreshedEvent) {
		result := "success"
		if !e.Success {
			result = "failure"
		}
		tokenRefreshesTotal.WithLabelValues(result).Inc()
	})
	bus.Subscribe(func(e *connection.ConnectedEvent) {
		connectionsTotal.WithLabelValues("connected").Inc()
		logger.WithFields(logrus.Fields{"tenant-id": e.TenantID, "user-id": e.UserID}).Info("google account connected")
	})
	bus.Subscribe(func(e *connection.DisconnectedEvent) {
		connectionsTotal.WithLabelValues("disconnected").Inc()
		logger.WithFields(logrus.Fields{"tenant-id": e.TenantID, "user-id": e.UserID}).Info("google account disconnected")
	})
}

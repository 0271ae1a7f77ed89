package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/httpapi"
	"github.com/jacksonlee411/leadimport/pkg/serrors"
)

const (
	codeBatchNotFound = "LEADIMPORT_BATCH_NOT_FOUND"
	codeInternal      = "LEADIMPORT_INTERNAL"
)

// writeServiceError maps service failures onto the JSON error envelope.
// Provider and storage details stay in the logs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := composables.UseLogger(r.Context())

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		_ = httpapi.WriteError(w, http.StatusBadRequest, services.CodeValidation, "validation failed", verr.Fields)
		return
	}

	switch {
	case errors.Is(err, importbatch.ErrBatchNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, codeBatchNotFound, "Import batch not found", nil)
	case errors.Is(err, services.ErrNotConnected):
		writeCoded(w, http.StatusBadRequest, services.ErrNotConnected)
	case errors.Is(err, services.ErrExternalService):
		logger.WithError(err).Error("spreadsheet provider request failed")
		writeCoded(w, http.StatusBadGateway, services.ErrExternalService)
	case errors.Is(err, services.ErrImportFailed):
		logger.WithError(err).Error("lead import failed")
		writeCoded(w, http.StatusInternalServerError, services.ErrImportFailed)
	case errors.Is(err, context.Canceled):
		logger.WithError(err).Warn("request cancelled by client")
		_ = httpapi.WriteError(w, http.StatusServiceUnavailable, codeInternal, "request cancelled", nil)
	default:
		logger.WithError(err).Error("lead import request failed")
		_ = httpapi.WriteError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}

func writeCoded(w http.ResponseWriter, status int, e *serrors.BaseError) {
	_ = httpapi.WriteError(w, status, e.Code, e.Message, nil)
}

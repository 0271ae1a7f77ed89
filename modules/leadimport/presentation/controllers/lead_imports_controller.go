package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/presentation/controllers/dtos"
	"github.com/jacksonlee411/leadimport/modules/leadimport/presentation/mappers"
	"github.com/jacksonlee411/leadimport/modules/leadimport/presentation/viewmodels"
	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
	"github.com/jacksonlee411/leadimport/pkg/application"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/httpapi"
	"github.com/jacksonlee411/leadimport/pkg/middleware"
)

const (
	connectionObject = "leadimport.connection"
	importsObject    = "leadimport.imports"
	batchesObject    = "leadimport.batches"

	actionView   = "view"
	actionManage = "manage"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type connectionService interface {
	BeginAuthorization(ctx context.Context, userID string, tenantID uuid.UUID) (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) (*connection.Connection, error)
	Status(ctx context.Context, userID string, tenantID uuid.UUID) (*services.ConnectionStatus, error)
	Disconnect(ctx context.Context, userID string, tenantID uuid.UUID) error
}

type importService interface {
	Preview(ctx context.Context, p services.PreviewParams) (*services.PreviewResult, error)
	Execute(ctx context.Context, p services.ExecuteParams) (*services.ImportResult, error)
	ListSpreadsheets(ctx context.Context, userID string, tenantID uuid.UUID, query string) ([]spreadsheet.File, error)
	ListBatches(ctx context.Context, limit int) ([]*importbatch.ImportBatch, error)
	DefaultBatchListLimit() int
	GetBatch(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error)
	ExportErrors(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type ControllerOptions struct {
	BasePath string
	// IntegrationsURL is where the browser lands after the OAuth callback.
	IntegrationsURL string
	Authorizer      middleware.Authorizer
}

type LeadImportsController struct {
	connections connectionService
	imports     importService
	opts        ControllerOptions
}

func NewLeadImportsController(app application.Application, opts ControllerOptions) application.Controller {
	return newLeadImportsController(
		app.Service(services.ConnectionService{}).(*services.ConnectionService),
		app.Service(services.ImportService{}).(*services.ImportService),
		opts,
	)
}

func newLeadImportsController(connections connectionService, imports importService, opts ControllerOptions) *LeadImportsController {
	if opts.BasePath == "" {
		opts.BasePath = "/api/lead-imports"
	}
	return &LeadImportsController{connections: connections, imports: imports, opts: opts}
}

func (c *LeadImportsController) Key() string {
	return c.opts.BasePath
}

func (c *LeadImportsController) Register(r *mux.Router) {
	api := r.PathPrefix(c.opts.BasePath).Subrouter()

	// Google redirects the browser here without gateway identity; the state
	// token carries the user.
	api.HandleFunc("/google/callback", c.GoogleCallback).Methods(http.MethodGet)

	api.Handle("/google/status", c.guard(connectionObject, actionView, c.GoogleStatus)).Methods(http.MethodGet)
	api.Handle("/google/auth-url", c.guard(connectionObject, actionManage, c.GoogleAuthURL)).Methods(http.MethodGet)
	api.Handle("/google/disconnect", c.guard(connectionObject, actionManage, c.GoogleDisconnect)).Methods(http.MethodDelete)
	api.Handle("/google/sheets", c.guard(importsObject, actionManage, c.ListSheets)).Methods(http.MethodGet)
	api.Handle("/google/preview", c.guard(importsObject, actionManage, c.Preview)).Methods(http.MethodPost)
	api.Handle("/google/import", c.guard(importsObject, actionManage, c.Execute)).Methods(http.MethodPost)

	api.Handle("/batches", c.guard(batchesObject, actionView, c.ListBatches)).Methods(http.MethodGet)
	api.Handle("/batches/{id}", c.guard(batchesObject, actionView, c.GetBatch)).Methods(http.MethodGet)
	api.Handle("/batches/{id}/errors.xlsx", c.guard(batchesObject, actionView, c.ExportErrors)).Methods(http.MethodGet)
}

func (c *LeadImportsController) guard(object, action string, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(c.opts.Authorizer, object, action)(h)
}

func (c *LeadImportsController) GoogleStatus(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	status, err := c.connections.Status(r.Context(), user.ID, user.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.ConnectionStatusToViewModel(status))
}

func (c *LeadImportsController) GoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	authURL, err := c.connections.BeginAuthorization(r.Context(), user.ID, user.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	composables.UseLogger(r.Context()).WithField("user-id", user.ID).Info("generated google authorization url")
	_ = httpapi.WriteJSON(w, http.StatusOK, &viewmodels.AuthURL{AuthURL: authURL})
}

// GoogleCallback finishes the OAuth dance and always answers with a redirect
// to the integrations page, carrying either google=connected or a reason.
func (c *LeadImportsController) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := composables.UseLogger(r.Context())
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		logger.WithField("provider-error", providerErr).Warn("google authorization was not granted")
		c.redirect(w, r, "error", providerErr)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		c.redirect(w, r, "error", "missing_parameters")
		return
	}

	conn, err := c.connections.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		reason := "token_exchange_failed"
		if errors.Is(err, services.ErrInvalidState) {
			reason = "invalid_state"
		}
		logger.WithError(err).Warn("google authorization callback failed")
		c.redirect(w, r, "error", reason)
		return
	}
	logger.WithFields(logrus.Fields{
		"user-id":   conn.UserID,
		"tenant-id": conn.TenantID,
	}).Info("google connection saved")
	c.redirect(w, r, "google", "connected")
}

func (c *LeadImportsController) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	target := c.opts.IntegrationsURL + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (c *LeadImportsController) GoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	if err := c.connections.Disconnect(r.Context(), user.ID, user.TenantID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *LeadImportsController) ListSheets(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	files, err := c.imports.ListSpreadsheets(r.Context(), user.ID, user.TenantID, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.SheetsToViewModels(files))
}

func (c *LeadImportsController) Preview(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var dto dtos.PreviewImportDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeServiceError(w, r, services.NewValidationError(map[string]string{"body": err.Error()}))
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeServiceError(w, r, services.NewValidationError(errs))
		return
	}
	res, err := c.imports.Preview(r.Context(), dto.ToParams(user.ID, user.TenantID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.PreviewToViewModel(res))
}

func (c *LeadImportsController) Execute(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var dto dtos.ExecuteImportDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		writeServiceError(w, r, services.NewValidationError(map[string]string{"body": err.Error()}))
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeServiceError(w, r, services.NewValidationError(errs))
		return
	}
	res, err := c.imports.Execute(r.Context(), dto.ToParams(user.ID, user.TenantID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.ImportResultToViewModel(res))
}

func (c *LeadImportsController) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := c.imports.DefaultBatchListLimit()
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeServiceError(w, r, services.NewValidationError(map[string]string{"limit": "must be an integer"}))
			return
		}
		limit = n
	}
	batches, err := c.imports.ListBatches(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.BatchesToViewModels(batches))
}

func (c *LeadImportsController) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	batch, err := c.imports.GetBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.BatchToDetailViewModel(batch))
}

func (c *LeadImportsController) ExportErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	data, err := c.imports.ExportErrors(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lead-import-%s-errors.xlsx"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		composables.UseLogger(r.Context()).WithError(err).Warn("failed to write error report")
	}
}

func batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, importbatch.ErrBatchNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// mustUser is only called behind RequirePermission, which rejects requests
// without a gateway identity.
func mustUser(r *http.Request) *composables.User {
	user, err := composables.UseUser(r.Context())
	if err != nil {
		panic(err)
	}
	return user
}

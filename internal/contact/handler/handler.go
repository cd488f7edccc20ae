package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"identity-recon/internal/contact/models"
	dErrors "identity-recon/pkg/domain-errors"
	"identity-recon/pkg/platform/httputil"
	"identity-recon/pkg/requestcontext"
)

// Service defines the interface for contact reconciliation operations.
type Service interface {
	Consolidate(ctx context.Context, email, phoneNumber string) (*models.ConsolidatedView, error)
	List(ctx context.Context) ([]*models.Contact, error)
	Get(ctx context.Context, id int64) (*models.ConsolidatedView, error)
}

// Handler wires identity endpoints to the contact service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a contact handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.HandleIdentify)
	r.Post("/identity", h.HandleIdentify)
	r.Get("/identity", h.HandleList)
	r.Get("/identity/{id}", h.HandleGet)
}

// HandleIdentify handles POST /identify and POST /identity requests.
func (h *Handler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IdentifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Consolidate(ctx, req.EmailValue(), req.PhoneValue())
	if err != nil {
		h.logger.ErrorContext(ctx, "identify failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identify completed",
		"request_id", requestID,
		"primary_contact_id", view.PrimaryContactID,
		"secondary_count", len(view.SecondaryContactIDs),
		"duration_ms", time.Since(requestcontext.Now(ctx)).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleList handles GET /identity requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contacts, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list contacts failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromContacts(contacts))
}

// HandleGet handles GET /identity/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "contact id must be a positive integer"))
		return
	}

	view, err := h.service.Get(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "get identity failed",
				"request_id", requestcontext.RequestID(ctx),
				"contact_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotswap/internal/matching"
	"slotswap/internal/swaps/validator"
	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	httputil "slotswap/pkg/http"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

type SwapRequestHandler struct {
	coordinator matching.Coordinator
	validator   *validator.SwapRequestValidator
	log         *logger.Logger
}

func NewSwapRequestHandler(coordinator matching.Coordinator, validator *validator.SwapRequestValidator, log *logger.Logger) *SwapRequestHandler {
	return &SwapRequestHandler{
		coordinator: coordinator,
		validator:   validator,
		log:         log,
	}
}

func (h *SwapRequestHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}

	var input model.SwapRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}
	if err := h.validator.ValidateRequest(&input); err != nil {
		h.writeError(w, "Create", validationError("Swap request validation failed", err))
		return
	}

	req, err := h.coordinator.RequestSwap(r.Context(), principal.ID, input.OfferedSlotID, input.RequestedSlotID)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, req); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SwapRequestHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "GetByID")
	if !ok {
		return
	}

	req, err := h.coordinator.GetRequest(r.Context(), ps.ByName("id"), principal.ID)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, req); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapRequestHandler) Respond(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Respond")
	if !ok {
		return
	}

	var input model.SwapResponseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Respond", apperrors.InvalidInput("Invalid request body"))
		return
	}
	if err := h.validator.ValidateResponse(&input); err != nil {
		h.writeError(w, "Respond", validationError("Swap response validation failed", err))
		return
	}

	req, err := h.coordinator.Respond(r.Context(), ps.ByName("id"), principal.ID, *input.Accept)
	if err != nil {
		h.writeError(w, "Respond", err)
		return
	}

	if err := httputil.WriteSuccess(w, req); err != nil {
		h.log.Error("failed to write success response", "handler", "Respond", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapRequestHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Cancel")
	if !ok {
		return
	}

	req, err := h.coordinator.Cancel(r.Context(), ps.ByName("id"), principal.ID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, req); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapRequestHandler) Incoming(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "Incoming", h.coordinator.ListIncoming)
}

func (h *SwapRequestHandler) Outgoing(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "Outgoing", h.coordinator.ListOutgoing)
}

type listFunc func(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)

func (h *SwapRequestHandler) list(w http.ResponseWriter, r *http.Request, handler string, fetch listFunc) {
	principal, ok := h.principal(w, r, handler)
	if !ok {
		return
	}

	status, err := h.validator.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, handler, validationError("Invalid status filter", err))
		return
	}

	requests, err := fetch(r.Context(), principal.ID, status)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	if err := httputil.WriteSuccess(w, requests); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapRequestHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/swap-requests", h.Create)
	router.GET("/api/v1/swap-requests/incoming", h.Incoming)
	router.GET("/api/v1/swap-requests/outgoing", h.Outgoing)
	router.GET("/api/v1/swap-requests/id/:id", h.GetByID)
	router.POST("/api/v1/swap-requests/id/:id/response", h.Respond)
	router.POST("/api/v1/swap-requests/id/:id/cancel", h.Cancel)
}

func (h *SwapRequestHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (model.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return p, ok
}

func (h *SwapRequestHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func validationError(message string, err error) error {
	var details map[string]any
	if errs, ok := err.(validator.ValidationErrors); ok {
		details = map[string]any{"errors": errs}
	} else {
		details = map[string]any{"error": err.Error()}
	}
	return apperrors.Validation(message, details)
}

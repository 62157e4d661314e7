package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotswap/internal/slots/service"
	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	httputil "slotswap/pkg/http"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}

	var input model.SlotInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	slot, err := h.service.Create(r.Context(), principal.ID, &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "ListMine")
	if !ok {
		return
	}

	slots, err := h.service.ListByOwner(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "ListMine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "GetByID")
	if !ok {
		return
	}

	slot, err := h.service.GetByID(r.Context(), ps.ByName("id"), principal.ID)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) ListSwappable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "ListSwappable")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListSwappable", err)
		return
	}

	slots, totalCount, err := h.service.ListSwappable(r.Context(), principal.ID, limit, offset)
	if err != nil {
		h.writeError(w, "ListSwappable", err)
		return
	}

	if err := httputil.WritePaginated(w, slots, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListSwappable", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Update")
	if !ok {
		return
	}

	var update model.SlotUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	slot, err := h.service.Update(r.Context(), ps.ByName("id"), principal.ID, &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "SetStatus")
	if !ok {
		return
	}

	var change model.StatusChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		h.writeError(w, "SetStatus", apperrors.InvalidInput("Invalid request body"))
		return
	}

	slot, err := h.service.SetStatus(r.Context(), ps.ByName("id"), principal.ID, change.Status)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "SetStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), principal.ID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.GET("/api/v1/slots", h.ListMine)
	router.GET("/api/v1/slots/id/:id", h.GetByID)
	router.PATCH("/api/v1/slots/id/:id", h.Update)
	router.DELETE("/api/v1/slots/id/:id", h.Delete)
	router.PUT("/api/v1/slots/id/:id/status", h.SetStatus)
	router.GET("/api/v1/swappable-slots", h.ListSwappable)
}

func (h *SlotHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (model.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return p, ok
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotswap/internal/slots/service"
	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

// ────────────────────────────────────────────────
// Mock service
// ────────────────────────────────────────────────

type mockSlotService struct {
	service.SlotService
	createFunc        func(ctx context.Context, owner string, input *model.SlotInput) (*model.Slot, error)
	getByIDFunc       func(ctx context.Context, id, requester string) (*model.Slot, error)
	listSwappableFunc func(ctx context.Context, principal string, limit int, offset int64) ([]*model.Slot, int64, error)
	setStatusFunc     func(ctx context.Context, id, requester string, status model.SlotStatus) (*model.Slot, error)
	deleteFunc        func(ctx context.Context, id, requester string) error
}

func (m *mockSlotService) Create(ctx context.Context, owner string, input *model.SlotInput) (*model.Slot, error) {
	return m.createFunc(ctx, owner, input)
}

func (m *mockSlotService) GetByID(ctx context.Context, id, requester string) (*model.Slot, error) {
	return m.getByIDFunc(ctx, id, requester)
}

func (m *mockSlotService) ListSwappable(ctx context.Context, principal string, limit int, offset int64) ([]*model.Slot, int64, error) {
	return m.listSwappableFunc(ctx, principal, limit, offset)
}

func (m *mockSlotService) SetStatus(ctx context.Context, id, requester string, status model.SlotStatus) (*model.Slot, error) {
	return m.setStatusFunc(ctx, id, requester, status)
}

func (m *mockSlotService) Delete(ctx context.Context, id, requester string) error {
	return m.deleteFunc(ctx, id, requester)
}

func newRouter(svc service.SlotService) *httprouter.Router {
	router := httprouter.New()
	NewSlotHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target, body, principal string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req = req.WithContext(auth.WithPrincipal(req.Context(), model.Principal{ID: principal}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreate(t *testing.T) {
	var gotOwner string
	svc := &mockSlotService{
		createFunc: func(ctx context.Context, owner string, input *model.SlotInput) (*model.Slot, error) {
			gotOwner = owner
			return &model.Slot{ID: "s1", Owner: owner, Title: input.Title, Status: model.SlotBusy}, nil
		},
	}
	router := newRouter(svc)

	body := `{"title":"Standup","start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`

	tests := []struct {
		name      string
		body      string
		principal string
		want      int
		wantCode  string
	}{
		{"created", body, "u1", http.StatusCreated, ""},
		{"malformed body", `{"title":`, "u1", http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"anonymous", body, "", http.StatusUnauthorized, apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/api/v1/slots", tt.body, tt.principal)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("code = %s, want %s", code, tt.wantCode)
				}
			}
		})
	}

	if gotOwner != "u1" {
		t.Errorf("owner passed to service = %q, want u1", gotOwner)
	}
}

func TestGetByID_ForwardsIDAndMapsErrors(t *testing.T) {
	svc := &mockSlotService{
		getByIDFunc: func(ctx context.Context, id, requester string) (*model.Slot, error) {
			if requester != "u1" {
				return nil, apperrors.Forbidden("You do not own this slot")
			}
			return &model.Slot{ID: id, Owner: requester, StartTime: time.Now()}, nil
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodGet, "/api/v1/slots/id/s42", "", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Data model.Slot `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != "s42" {
		t.Errorf("id = %s, want s42", resp.Data.ID)
	}

	rec = serve(router, http.MethodGet, "/api/v1/slots/id/s42", "", "u2")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestListSwappable_Pagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	svc := &mockSlotService{
		listSwappableFunc: func(ctx context.Context, principal string, limit int, offset int64) ([]*model.Slot, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.Slot{}, 0, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name       string
		query      string
		want       int
		wantLimit  int
		wantOffset int64
	}{
		{"explicit", "?limit=5&offset=10", http.StatusOK, 5, 10},
		{"defaults", "", http.StatusOK, 10, 0},
		{"negative offset clamps", "?offset=-3", http.StatusOK, 10, 0},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit, gotOffset = 0, 0
			rec := serve(router, http.MethodGet, "/api/v1/swappable-slots"+tt.query, "", "u1")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
				t.Errorf("service got limit %d offset %d, want %d %d", gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestSetStatus(t *testing.T) {
	svc := &mockSlotService{
		setStatusFunc: func(ctx context.Context, id, requester string, status model.SlotStatus) (*model.Slot, error) {
			if status == model.SlotSwapPending {
				return nil, apperrors.InvalidTransition("SWAP_PENDING can only be set by a swap request")
			}
			return &model.Slot{ID: id, Owner: requester, Status: status}, nil
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodPut, "/api/v1/slots/id/s1/status", `{"status":"SWAPPABLE"}`, "u1")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = serve(router, http.MethodPut, "/api/v1/slots/id/s1/status", `{"status":"SWAP_PENDING"}`, "u1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != apperrors.CodeInvalidTransition {
		t.Errorf("code = %s, want %s", code, apperrors.CodeInvalidTransition)
	}
}

func TestDelete(t *testing.T) {
	svc := &mockSlotService{
		deleteFunc: func(ctx context.Context, id, requester string) error {
			if id == "pending" {
				return apperrors.InvalidTransition("Slot cannot be deleted while a swap is pending")
			}
			return nil
		},
	}
	router := newRouter(svc)

	if rec := serve(router, http.MethodDelete, "/api/v1/slots/id/s1", "", "u1"); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec := serve(router, http.MethodDelete, "/api/v1/slots/id/pending", "", "u1"); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

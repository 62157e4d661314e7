package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	"slotswap/internal/matching"
	"slotswap/internal/swaps/validator"
	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

// ────────────────────────────────────────────────
// Mock coordinator
// ────────────────────────────────────────────────

type mockCoordinator struct {
	matching.Coordinator
	requestSwapFunc  func(ctx context.Context, requester, offered, requested string) (*model.SwapRequest, error)
	respondFunc      func(ctx context.Context, id, principal string, accept bool) (*model.SwapRequest, error)
	cancelFunc       func(ctx context.Context, id, principal string) (*model.SwapRequest, error)
	listIncomingFunc func(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)
}

func (m *mockCoordinator) RequestSwap(ctx context.Context, requester, offered, requested string) (*model.SwapRequest, error) {
	return m.requestSwapFunc(ctx, requester, offered, requested)
}

func (m *mockCoordinator) Respond(ctx context.Context, id, principal string, accept bool) (*model.SwapRequest, error) {
	return m.respondFunc(ctx, id, principal, accept)
}

func (m *mockCoordinator) Cancel(ctx context.Context, id, principal string) (*model.SwapRequest, error) {
	return m.cancelFunc(ctx, id, principal)
}

func (m *mockCoordinator) ListIncoming(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return m.listIncomingFunc(ctx, principal, status)
}

func newRouter(coord matching.Coordinator) *httprouter.Router {
	log := logger.Discard()
	router := httprouter.New()
	NewSwapRequestHandler(coord, validator.NewSwapRequestValidator(log), log).RegisterRoutes(router)
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
	coord := &mockCoordinator{
		requestSwapFunc: func(ctx context.Context, requester, offered, requested string) (*model.SwapRequest, error) {
			if requested == "taken" {
				return nil, apperrors.Conflict("Slot no longer available")
			}
			return &model.SwapRequest{ID: "r1", RequesterID: requester, OfferedSlotID: offered, RequestedSlotID: requested, Status: model.SwapPending}, nil
		},
	}
	router := newRouter(coord)

	tests := []struct {
		name     string
		body     string
		want     int
		wantCode string
	}{
		{"created", `{"my_slot_id":"s1","their_slot_id":"s2"}`, http.StatusCreated, ""},
		{"missing their slot", `{"my_slot_id":"s1"}`, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"same slot", `{"my_slot_id":"s1","their_slot_id":"s1"}`, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"lost race", `{"my_slot_id":"s1","their_slot_id":"taken"}`, http.StatusConflict, apperrors.CodeConflict},
		{"malformed", `not json`, http.StatusBadRequest, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/api/v1/swap-requests", tt.body, "u1")
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
}

func TestRespond(t *testing.T) {
	var gotAccept *bool
	coord := &mockCoordinator{
		respondFunc: func(ctx context.Context, id, principal string, accept bool) (*model.SwapRequest, error) {
			gotAccept = &accept
			if principal != "u2" {
				return nil, apperrors.Forbidden("Only the receiver can respond to this swap request")
			}
			status := model.SwapRejected
			if accept {
				status = model.SwapAccepted
			}
			return &model.SwapRequest{ID: id, Status: status}, nil
		},
	}
	router := newRouter(coord)

	rec := serve(router, http.MethodPost, "/api/v1/swap-requests/id/r1/response", `{"accept":true}`, "u2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAccept == nil || !*gotAccept {
		t.Errorf("accept flag not forwarded")
	}

	gotAccept = nil
	rec = serve(router, http.MethodPost, "/api/v1/swap-requests/id/r1/response", `{}`, "u2")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing accept: status = %d, want 422", rec.Code)
	}
	if gotAccept != nil {
		t.Errorf("coordinator called without an explicit decision")
	}

	rec = serve(router, http.MethodPost, "/api/v1/swap-requests/id/r1/response", `{"accept":false}`, "u3")
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-receiver: status = %d, want 403", rec.Code)
	}
}

func TestCancel(t *testing.T) {
	coord := &mockCoordinator{
		cancelFunc: func(ctx context.Context, id, principal string) (*model.SwapRequest, error) {
			if id == "closed" {
				return nil, apperrors.InvalidTransition("Swap request is already ACCEPTED")
			}
			return &model.SwapRequest{ID: id, Status: model.SwapCancelled}, nil
		},
	}
	router := newRouter(coord)

	if rec := serve(router, http.MethodPost, "/api/v1/swap-requests/id/r1/cancel", "", "u1"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	rec := serve(router, http.MethodPost, "/api/v1/swap-requests/id/closed/cancel", "", "u1")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != apperrors.CodeInvalidTransition {
		t.Errorf("closed request: status = %d", rec.Code)
	}
}

func TestIncoming_StatusFilter(t *testing.T) {
	var gotStatus model.SwapStatus
	coord := &mockCoordinator{
		listIncomingFunc: func(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
			gotStatus = status
			return []*model.SwapRequest{}, nil
		},
	}
	router := newRouter(coord)

	tests := []struct {
		query      string
		want       int
		wantStatus model.SwapStatus
	}{
		{"", http.StatusOK, ""},
		{"?status=pending", http.StatusOK, model.SwapPending},
		{"?status=ACCEPTED", http.StatusOK, model.SwapAccepted},
		{"?status=EXPIRED", http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			gotStatus = ""
			rec := serve(router, http.MethodGet, "/api/v1/swap-requests/incoming"+tt.query, "", "u2")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotStatus != tt.wantStatus {
				t.Errorf("filter = %q, want %q", gotStatus, tt.wantStatus)
			}
		})
	}
}

func TestAnonymousRequestsAreRejected(t *testing.T) {
	router := newRouter(&mockCoordinator{})
	rec := serve(router, http.MethodGet, "/api/v1/swap-requests/outgoing", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

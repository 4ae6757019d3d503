package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/auth"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

// mockSaleService implements SaleServicer with overridable functions. A call
// to a method without an override is a test bug.
type mockSaleService struct {
	createFn      func(ctx context.Context, actor domain.Actor, req service.CreateSaleRequest) (*domain.Sale, error)
	quickCreateFn func(ctx context.Context, actor domain.Actor, code string) (*domain.Sale, error)
	editPaymentFn func(ctx context.Context, actor domain.Actor, saleID uuid.UUID, method string, cash, transfer decimal.Decimal) (*domain.Sale, error)
	voidFn        func(ctx context.Context, actor domain.Actor, saleID uuid.UUID, reason string) (*domain.Sale, error)
	deleteFn      func(ctx context.Context, actor domain.Actor, saleID uuid.UUID) error
	getFn         func(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error)
	listFn        func(ctx context.Context, actor domain.Actor, dayKey, sellerID string) ([]domain.Sale, error)
}

func (m *mockSaleService) Create(ctx context.Context, actor domain.Actor, req service.CreateSaleRequest) (*domain.Sale, error) {
	if m.createFn == nil {
		panic("unexpected Create call")
	}
	return m.createFn(ctx, actor, req)
}

func (m *mockSaleService) QuickCreate(ctx context.Context, actor domain.Actor, code string) (*domain.Sale, error) {
	if m.quickCreateFn == nil {
		panic("unexpected QuickCreate call")
	}
	return m.quickCreateFn(ctx, actor, code)
}

func (m *mockSaleService) EditPayment(ctx context.Context, actor domain.Actor, saleID uuid.UUID, method string, cash, transfer decimal.Decimal) (*domain.Sale, error) {
	if m.editPaymentFn == nil {
		panic("unexpected EditPayment call")
	}
	return m.editPaymentFn(ctx, actor, saleID, method, cash, transfer)
}

func (m *mockSaleService) Void(ctx context.Context, actor domain.Actor, saleID uuid.UUID, reason string) (*domain.Sale, error) {
	if m.voidFn == nil {
		panic("unexpected Void call")
	}
	return m.voidFn(ctx, actor, saleID, reason)
}

func (m *mockSaleService) Delete(ctx context.Context, actor domain.Actor, saleID uuid.UUID) error {
	if m.deleteFn == nil {
		panic("unexpected Delete call")
	}
	return m.deleteFn(ctx, actor, saleID)
}

func (m *mockSaleService) Get(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error) {
	if m.getFn == nil {
		panic("unexpected Get call")
	}
	return m.getFn(ctx, saleID)
}

func (m *mockSaleService) List(ctx context.Context, actor domain.Actor, dayKey, sellerID string) ([]domain.Sale, error) {
	if m.listFn == nil {
		panic("unexpected List call")
	}
	return m.listFn(ctx, actor, dayKey, sellerID)
}

type mockNotifier struct {
	events []string
}

func (m *mockNotifier) NotifySale(event string, _ *domain.Sale) {
	m.events = append(m.events, event)
}

func newSaleRouter(svc SaleServicer, notifier SaleNotifier) chi.Router {
	h := NewSaleHandler(svc, notifier)
	r := chi.NewRouter()
	r.Route("/sales", func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.UserRoleAdmin))
			h.RegisterAdminRoutes(r)
		})
	})
	return r
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, "Tester", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sampleSale(sellerID uuid.UUID) *domain.Sale {
	return &domain.Sale{
		ID:            uuid.New(),
		SellerID:      sellerID,
		SellerName:    "Tester",
		DayKey:        "2025-03-10",
		Status:        enum.SaleStatusActive,
		PaymentMethod: enum.PaymentMethodCash,
		CashAmount:    decimal.NewFromInt(100),
		Total:         decimal.NewFromInt(100),
		CreatedAt:     time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		Items: []domain.SaleItem{{
			ID:            uuid.New(),
			ProductID:     uuid.New(),
			Name:          "Café",
			Code:          "cafe",
			Qty:           1,
			UnitPrice:     decimal.NewFromInt(100),
			ItemCostPrice: decimal.NewFromInt(60),
			LineTotal:     decimal.NewFromInt(100),
		}},
	}
}

func TestCreateSaleHandler(t *testing.T) {
	seller := uuid.New()
	sale := sampleSale(seller)

	var gotReq service.CreateSaleRequest
	mock := &mockSaleService{
		createFn: func(_ context.Context, actor domain.Actor, req service.CreateSaleRequest) (*domain.Sale, error) {
			if actor.ID != seller {
				t.Errorf("actor: got %s, want %s", actor.ID, seller)
			}
			gotReq = req
			return sale, nil
		},
	}
	notifier := &mockNotifier{}
	router := newSaleRouter(mock, notifier)

	body := map[string]interface{}{
		"items":         []map[string]interface{}{{"productId": sale.Items[0].ProductID.String(), "qty": 1}},
		"paymentMethod": "CASH",
	}
	rec := doJSON(t, router, http.MethodPost, "/sales", tokenFor(t, seller, enum.UserRoleCashier), body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	if len(gotReq.Items) != 1 || gotReq.Items[0].Qty != 1 {
		t.Errorf("request passed to service: %+v", gotReq)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "sale.created" {
		t.Errorf("notifier events: %v", notifier.events)
	}

	var resp saleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 100 || resp.Status != enum.SaleStatusActive {
		t.Errorf("response: total=%v status=%s", resp.Total, resp.Status)
	}
}

func TestCreateSaleIdempotencyKeyHeader(t *testing.T) {
	seller := uuid.New()
	var gotKey string
	mock := &mockSaleService{
		createFn: func(_ context.Context, _ domain.Actor, req service.CreateSaleRequest) (*domain.Sale, error) {
			gotKey = req.IdempotencyKey
			return sampleSale(seller), nil
		},
	}
	router := newSaleRouter(mock, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"items":         []map[string]interface{}{{"productId": uuid.NewString(), "qty": 1}},
		"paymentMethod": "CASH",
	})
	req := httptest.NewRequest(http.MethodPost, "/sales", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, seller, enum.UserRoleCashier))
	req.Header.Set("Idempotency-Key", "hdr-key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d", rec.Code)
	}
	if gotKey != "hdr-key-1" {
		t.Errorf("idempotency key: got %q, want hdr-key-1", gotKey)
	}
}

func TestCreateSaleErrorMapping(t *testing.T) {
	seller := uuid.New()
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", service.ErrPaymentMismatch, http.StatusBadRequest},
		{"missing product", service.ErrProductNotFound, http.StatusNotFound},
		{"storage failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockSaleService{
				createFn: func(context.Context, domain.Actor, service.CreateSaleRequest) (*domain.Sale, error) {
					return nil, tc.err
				},
			}
			router := newSaleRouter(mock, nil)
			body := map[string]interface{}{
				"items":         []map[string]interface{}{{"productId": uuid.NewString(), "qty": 1}},
				"paymentMethod": "CASH",
			}
			rec := doJSON(t, router, http.MethodPost, "/sales", tokenFor(t, seller, enum.UserRoleCashier), body)
			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestGetSaleOwnership(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	sale := sampleSale(owner)
	mock := &mockSaleService{
		getFn: func(_ context.Context, id uuid.UUID) (*domain.Sale, error) {
			if id != sale.ID {
				t.Errorf("sale id: got %s", id)
			}
			return sale, nil
		},
	}
	router := newSaleRouter(mock, nil)
	path := "/sales/" + sale.ID.String()

	rec := doJSON(t, router, http.MethodGet, path, tokenFor(t, owner, enum.UserRoleCashier), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner: got %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, path, tokenFor(t, stranger, enum.UserRoleCashier), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger: got %d, want 403", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, path, tokenFor(t, stranger, enum.UserRoleAdmin), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: got %d, want 200", rec.Code)
	}
}

func TestVoidSaleHandler(t *testing.T) {
	adminID := uuid.New()
	sale := sampleSale(uuid.New())
	sale.Status = enum.SaleStatusVoided

	var gotReason string
	var gotActor domain.Actor
	mock := &mockSaleService{
		voidFn: func(_ context.Context, actor domain.Actor, _ uuid.UUID, reason string) (*domain.Sale, error) {
			gotActor = actor
			gotReason = reason
			return sale, nil
		},
	}
	notifier := &mockNotifier{}
	router := newSaleRouter(mock, notifier)

	rec := doJSON(t, router, http.MethodPost, "/sales/"+sale.ID.String()+"/void",
		tokenFor(t, adminID, enum.UserRoleAdmin), map[string]string{"reason": "mistake"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}
	if gotReason != "mistake" {
		t.Errorf("reason: got %q", gotReason)
	}
	if gotActor.ID != adminID {
		t.Errorf("actor: got %s, want %s", gotActor.ID, adminID)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "sale.voided" {
		t.Errorf("notifier events: %v", notifier.events)
	}
}

func TestVoidSaleConflict(t *testing.T) {
	mock := &mockSaleService{
		voidFn: func(context.Context, domain.Actor, uuid.UUID, string) (*domain.Sale, error) {
			return nil, service.ErrSaleVoided
		},
	}
	router := newSaleRouter(mock, nil)

	rec := doJSON(t, router, http.MethodPost, "/sales/"+uuid.NewString()+"/void",
		tokenFor(t, uuid.New(), enum.UserRoleAdmin), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestDeleteSaleRequiresVoided(t *testing.T) {
	mock := &mockSaleService{
		deleteFn: func(context.Context, domain.Actor, uuid.UUID) error { return service.ErrSaleNotVoided },
	}
	router := newSaleRouter(mock, nil)

	rec := doJSON(t, router, http.MethodDelete, "/sales/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleAdmin), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestAdminRoutesRejectCashier(t *testing.T) {
	router := newSaleRouter(&mockSaleService{}, nil)
	token := tokenFor(t, uuid.New(), enum.UserRoleCashier)
	id := uuid.NewString()

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPatch, "/sales/" + id + "/payment"},
		{http.MethodPost, "/sales/" + id + "/void"},
		{http.MethodDelete, "/sales/" + id},
	} {
		rec := doJSON(t, router, tc.method, tc.path, token, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: got %d, want 403", tc.method, tc.path, rec.Code)
		}
	}
}

func TestSaleRoutesRequireAuth(t *testing.T) {
	router := newSaleRouter(&mockSaleService{}, nil)
	rec := doJSON(t, router, http.MethodGet, "/sales", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

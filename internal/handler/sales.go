package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// SaleServicer defines the service methods needed by sale handlers.
// Satisfied by *service.SaleService; narrow interface for testability.
type SaleServicer interface {
	Create(ctx context.Context, actor domain.Actor, req service.CreateSaleRequest) (*domain.Sale, error)
	QuickCreate(ctx context.Context, actor domain.Actor, code string) (*domain.Sale, error)
	EditPayment(ctx context.Context, actor domain.Actor, saleID uuid.UUID, method string, cash, transfer decimal.Decimal) (*domain.Sale, error)
	Void(ctx context.Context, actor domain.Actor, saleID uuid.UUID, reason string) (*domain.Sale, error)
	Delete(ctx context.Context, actor domain.Actor, saleID uuid.UUID) error
	Get(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error)
	List(ctx context.Context, actor domain.Actor, dayKey, sellerID string) ([]domain.Sale, error)
}

// SaleNotifier pushes sale events to connected clients. Satisfied by the ws
// hub; a nil notifier disables the feed.
type SaleNotifier interface {
	NotifySale(event string, sale *domain.Sale)
}

// SaleHandler handles sale endpoints.
type SaleHandler struct {
	svc      SaleServicer
	notifier SaleNotifier
}

func NewSaleHandler(svc SaleServicer, notifier SaleNotifier) *SaleHandler {
	return &SaleHandler{svc: svc, notifier: notifier}
}

func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/quick", h.QuickCreate)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the admin-only sale mutations.
func (h *SaleHandler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/{id}/payment", h.EditPayment)
	r.Post("/{id}/void", h.Void)
	r.Delete("/{id}", h.Delete)
}

// --- Request types ---

type createSaleRequest struct {
	Items          []createSaleItemRequest `json:"items"`
	PaymentMethod  string                  `json:"paymentMethod"`
	CashAmount     float64                 `json:"cashAmount"`
	TransferAmount float64                 `json:"transferAmount"`
	IdempotencyKey string                  `json:"idempotencyKey"`
}

type createSaleItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

type quickSaleRequest struct {
	Code string `json:"code"`
}

type editPaymentRequest struct {
	PaymentMethod  string  `json:"paymentMethod"`
	CashAmount     float64 `json:"cashAmount"`
	TransferAmount float64 `json:"transferAmount"`
}

type voidSaleRequest struct {
	Reason string `json:"reason"`
}

// --- Handlers ---

// Create handles POST /sales.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "paymentMethod is required")
		return
	}

	items := make([]service.SaleLineRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.SaleLineRequest{ProductID: it.ProductID, Qty: it.Qty}
	}

	// The dedup key may arrive in the body or the Idempotency-Key header.
	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = r.Header.Get("Idempotency-Key")
	}

	sale, err := h.svc.Create(r.Context(), actor, service.CreateSaleRequest{
		Items:          items,
		PaymentMethod:  req.PaymentMethod,
		CashAmount:     decimal.NewFromFloat(req.CashAmount),
		TransferAmount: decimal.NewFromFloat(req.TransferAmount),
		IdempotencyKey: idemKey,
	})
	if err != nil {
		h.writeSaleError(w, "create sale", err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifySale("sale.created", sale)
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(sale))
}

// QuickCreate handles POST /sales/quick: one unit by product code, cash.
func (h *SaleHandler) QuickCreate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req quickSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sale, err := h.svc.QuickCreate(r.Context(), actor, req.Code)
	if err != nil {
		h.writeSaleError(w, "quick sale", err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifySale("sale.created", sale)
	}
	writeJSON(w, http.StatusCreated, toSaleResponse(sale))
}

// List handles GET /sales?dayKey=YYYY-MM-DD&sellerId=<uuid|all>.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	q := r.URL.Query()
	sales, err := h.svc.List(r.Context(), actor, q.Get("dayKey"), q.Get("sellerId"))
	if err != nil {
		h.writeSaleError(w, "list sales", err)
		return
	}

	resp := make([]saleResponse, len(sales))
	for i := range sales {
		resp[i] = toSaleResponse(&sales[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /sales/{id}.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale ID")
		return
	}

	sale, err := h.svc.Get(r.Context(), saleID)
	if err != nil {
		h.writeSaleError(w, "get sale", err)
		return
	}
	if !actor.IsAdmin() && sale.SellerID != actor.ID {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// EditPayment handles PATCH /sales/{id}/payment.
func (h *SaleHandler) EditPayment(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale ID")
		return
	}

	var req editPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sale, err := h.svc.EditPayment(r.Context(), actor, saleID, req.PaymentMethod,
		decimal.NewFromFloat(req.CashAmount), decimal.NewFromFloat(req.TransferAmount))
	if err != nil {
		h.writeSaleError(w, "edit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// Void handles POST /sales/{id}/void.
func (h *SaleHandler) Void(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale ID")
		return
	}

	var req voidSaleRequest
	if r.Body != nil {
		// Reason is optional; an empty body voids with an empty reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sale, err := h.svc.Void(r.Context(), actor, saleID, req.Reason)
	if err != nil {
		h.writeSaleError(w, "void sale", err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifySale("sale.voided", sale)
	}
	writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// Delete handles DELETE /sales/{id}. Only VOIDED sales can be removed.
func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale ID")
		return
	}

	if err := h.svc.Delete(r.Context(), actor, saleID); err != nil {
		h.writeSaleError(w, "delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "sale deleted"})
}

// writeSaleError maps service errors onto HTTP statuses.
func (h *SaleHandler) writeSaleError(w http.ResponseWriter, op string, err error) {
	switch {
	case isSaleValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrSaleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSaleVoided), errors.Is(err, service.ErrSaleNotVoided):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAdminOnly):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isSaleValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidSellerID) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrPaymentMismatch) ||
		errors.Is(err, service.ErrInvalidDayKey) ||
		errors.Is(err, service.ErrCodeRequired)
}

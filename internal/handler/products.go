package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// ProductServicer defines the service methods needed by product handlers.
type ProductServicer interface {
	Create(ctx context.Context, req service.CreateProductRequest) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, req service.UpdateProductRequest) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// StockServicer defines the stock-adjustment methods needed here.
type StockServicer interface {
	Adjust(ctx context.Context, actor domain.Actor, productID uuid.UUID, delta int64, reason string) (*service.AdjustResult, error)
	History(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockAdjustment, error)
}

// ProductHandler handles catalog and stock-adjustment endpoints.
type ProductHandler struct {
	svc   ProductServicer
	stock StockServicer
}

func NewProductHandler(svc ProductServicer, stock StockServicer) *ProductHandler {
	return &ProductHandler{svc: svc, stock: stock}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Deactivate)
	r.Post("/{id}/adjust-stock", h.AdjustStock)
	r.Get("/{id}/adjustments", h.ListAdjustments)
}

// --- Request types ---

type createProductRequest struct {
	Code      string  `json:"code"`
	Barcode   string  `json:"barcode"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"costPrice"`
	Stock     int64   `json:"stock"`
}

type updateProductRequest struct {
	Code      *string  `json:"code"`
	Barcode   *string  `json:"barcode"`
	Name      *string  `json:"name"`
	Price     *float64 `json:"price"`
	CostPrice *float64 `json:"costPrice"`
}

type adjustStockRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type adjustStockResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	AdminName string    `json:"adminName"`
	NewStock  int64     `json:"newStock"`
}

type adjustmentResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	AdminID   uuid.UUID `json:"adminId"`
	AdminName string    `json:"adminName"`
	CreatedAt time.Time `json:"createdAt"`
}

// --- Handlers ---

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeProductError(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), service.CreateProductRequest{
		Code:      req.Code,
		Barcode:   req.Barcode,
		Name:      req.Name,
		Price:     decimal.NewFromFloat(req.Price),
		CostPrice: decimal.NewFromFloat(req.CostPrice),
		Stock:     req.Stock,
	})
	if err != nil {
		h.writeProductError(w, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.UpdateProductRequest{
		Code:    req.Code,
		Barcode: req.Barcode,
		Name:    req.Name,
	}
	if req.Price != nil {
		d := decimal.NewFromFloat(*req.Price)
		svcReq.Price = &d
	}
	if req.CostPrice != nil {
		d := decimal.NewFromFloat(*req.CostPrice)
		svcReq.CostPrice = &d
	}

	p, err := h.svc.Update(r.Context(), id, svcReq)
	if err != nil {
		h.writeProductError(w, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		h.writeProductError(w, "deactivate product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deactivated"})
}

// AdjustStock handles POST /products/{id}/adjust-stock.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.stock.Adjust(r.Context(), actor, id, req.Delta, req.Reason)
	if err != nil {
		h.writeProductError(w, "adjust stock", err)
		return
	}

	writeJSON(w, http.StatusOK, adjustStockResponse{
		ID:        result.Adjustment.ID,
		ProductID: result.Adjustment.ProductID,
		Delta:     result.Adjustment.Delta,
		Reason:    result.Adjustment.Reason,
		AdminName: result.Adjustment.AdminName,
		NewStock:  result.NewStock,
	})
}

// ListAdjustments handles GET /products/{id}/adjustments?limit=N.
func (h *ProductHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	adjustments, err := h.stock.History(r.Context(), id, limit)
	if err != nil {
		log.Printf("ERROR: list adjustments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]adjustmentResponse, len(adjustments))
	for i, a := range adjustments {
		resp[i] = adjustmentResponse{
			ID:        a.ID,
			ProductID: a.ProductID,
			Delta:     a.Delta,
			Reason:    a.Reason,
			AdminID:   a.AdminID,
			AdminName: a.AdminName,
			CreatedAt: a.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) writeProductError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrCodeRequired),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidCostPrice),
		errors.Is(err, service.ErrInvalidDelta),
		errors.Is(err, service.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "product code already exists")
	case errors.Is(err, service.ErrAdminOnly):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

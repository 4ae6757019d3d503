package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// PurchaseServicer defines the service methods needed by purchase handlers.
type PurchaseServicer interface {
	Create(ctx context.Context, actor domain.Actor, dayKey string, lines []service.PurchaseLineRequest) (*domain.Purchase, error)
	List(ctx context.Context, dayKey string) ([]domain.Purchase, error)
}

// PurchaseHandler handles restock endpoints. All of them are admin-only.
type PurchaseHandler struct {
	svc PurchaseServicer
}

func NewPurchaseHandler(svc PurchaseServicer) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

type createPurchaseRequest struct {
	DayKey string                      `json:"dayKey"`
	Items  []createPurchaseItemRequest `json:"items"`
}

type createPurchaseItemRequest struct {
	ProductID string  `json:"productId"`
	Qty       int64   `json:"qty"`
	CostPrice float64 `json:"costPrice"`
}

type purchaseResponse struct {
	ID        uuid.UUID              `json:"id"`
	AdminID   uuid.UUID              `json:"adminId"`
	AdminName string                 `json:"adminName"`
	DayKey    string                 `json:"dayKey"`
	TotalCost float64                `json:"totalCost"`
	CreatedAt time.Time              `json:"createdAt"`
	Items     []purchaseItemResponse `json:"items"`
}

type purchaseItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Qty       int64     `json:"qty"`
	CostPrice float64   `json:"costPrice"`
}

func toPurchaseResponse(p *domain.Purchase) purchaseResponse {
	resp := purchaseResponse{
		ID:        p.ID,
		AdminID:   p.AdminID,
		AdminName: p.AdminName,
		DayKey:    p.DayKey,
		TotalCost: p.TotalCost.InexactFloat64(),
		CreatedAt: p.CreatedAt,
		Items:     make([]purchaseItemResponse, len(p.Items)),
	}
	for i, it := range p.Items {
		resp.Items[i] = purchaseItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Qty:       it.Qty,
			CostPrice: it.CostPrice.InexactFloat64(),
		}
	}
	return resp
}

// Create handles POST /purchases.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.PurchaseLineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = service.PurchaseLineRequest{
			ProductID: it.ProductID,
			Qty:       it.Qty,
			CostPrice: decimal.NewFromFloat(it.CostPrice),
		}
	}

	purchase, err := h.svc.Create(r.Context(), actor, req.DayKey, lines)
	if err != nil {
		h.writePurchaseError(w, "create purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseResponse(purchase))
}

// List handles GET /purchases?dayKey=YYYY-MM-DD.
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.svc.List(r.Context(), r.URL.Query().Get("dayKey"))
	if err != nil {
		h.writePurchaseError(w, "list purchases", err)
		return
	}

	resp := make([]purchaseResponse, len(purchases))
	for i := range purchases {
		resp[i] = toPurchaseResponse(&purchases[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PurchaseHandler) writePurchaseError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidCostPrice),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidDayKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAdminOnly):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Shared response types ---

// Monetary fields cross the boundary as plain numbers; the decimal type is
// internal only.

type saleResponse struct {
	ID             uuid.UUID          `json:"id"`
	SellerID       uuid.UUID          `json:"sellerId"`
	SellerName     string             `json:"sellerName"`
	DayKey         string             `json:"dayKey"`
	Status         string             `json:"status"`
	PaymentMethod  string             `json:"paymentMethod"`
	CashAmount     float64            `json:"cashAmount"`
	TransferAmount float64            `json:"transferAmount"`
	Total          float64            `json:"total"`
	VoidReason     string             `json:"voidReason,omitempty"`
	VoidedAt       *time.Time         `json:"voidedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	Items          []saleItemResponse `json:"items"`
}

type saleItemResponse struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"productId"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	Barcode       string    `json:"barcode,omitempty"`
	Qty           int64     `json:"qty"`
	UnitPrice     float64   `json:"unitPrice"`
	ItemCostPrice float64   `json:"itemCostPrice"`
	LineTotal     float64   `json:"lineTotal"`
}

func toSaleResponse(s *domain.Sale) saleResponse {
	resp := saleResponse{
		ID:             s.ID,
		SellerID:       s.SellerID,
		SellerName:     s.SellerName,
		DayKey:         s.DayKey,
		Status:         s.Status,
		PaymentMethod:  s.PaymentMethod,
		CashAmount:     s.CashAmount.InexactFloat64(),
		TransferAmount: s.TransferAmount.InexactFloat64(),
		Total:          s.Total.InexactFloat64(),
		VoidReason:     s.VoidReason,
		VoidedAt:       s.VoidedAt,
		CreatedAt:      s.CreatedAt,
		Items:          make([]saleItemResponse, len(s.Items)),
	}
	for i, it := range s.Items {
		resp.Items[i] = saleItemResponse{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Name:          it.Name,
			Code:          it.Code,
			Barcode:       it.Barcode,
			Qty:           it.Qty,
			UnitPrice:     it.UnitPrice.InexactFloat64(),
			ItemCostPrice: it.ItemCostPrice.InexactFloat64(),
			LineTotal:     it.LineTotal.InexactFloat64(),
		}
	}
	return resp
}

type productResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Barcode   string    `json:"barcode,omitempty"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CostPrice float64   `json:"costPrice"`
	Stock     int64     `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Code:      p.Code,
		Barcode:   p.Barcode,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		CostPrice: p.CostPrice.InexactFloat64(),
		Stock:     p.Stock,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/daykey"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// PurchaseLineRequest is a single restock line.
type PurchaseLineRequest struct {
	ProductID string
	Qty       int64
	CostPrice decimal.Decimal
}

// PurchaseService records restocks. Purchases are immutable; a mistaken one
// is corrected with a compensating stock adjustment, never edited or voided.
type PurchaseService struct {
	store store.Store
	clock *daykey.Clock
}

func NewPurchaseService(st store.Store, clock *daykey.Clock) *PurchaseService {
	return &PurchaseService{store: st, clock: clock}
}

// Create credits stock per line and persists the purchase with its items in
// one transaction. An empty dayKey defaults to today.
func (s *PurchaseService) Create(ctx context.Context, actor domain.Actor, dayKey string, lines []PurchaseLineRequest) (*domain.Purchase, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if len(lines) == 0 {
		return nil, ErrEmptyItems
	}
	if dayKey == "" {
		dayKey = s.clock.Today()
	} else if err := daykey.Validate(dayKey); err != nil {
		return nil, ErrInvalidDayKey
	}

	productIDs := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if line.CostPrice.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidCostPrice)
		}
		pid, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		productIDs[i] = pid
	}

	var result *domain.Purchase
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		// All-or-nothing: resolve every product before crediting anything.
		products := make([]*domain.Product, len(productIDs))
		for i, pid := range productIDs {
			p, err := tx.GetProduct(ctx, pid)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
				}
				return fmt.Errorf("item[%d]: get product: %w", i, err)
			}
			products[i] = p
		}

		purchase := &domain.Purchase{
			ID:        uuid.New(),
			AdminID:   actor.ID,
			AdminName: actor.Name,
			DayKey:    dayKey,
			TotalCost: decimal.Zero,
			CreatedAt: s.clock.Now(),
			Items:     make([]domain.PurchaseItem, len(lines)),
		}
		for i, line := range lines {
			purchase.Items[i] = domain.PurchaseItem{
				ID:        uuid.New(),
				ProductID: productIDs[i],
				Name:      products[i].Name,
				Qty:       line.Qty,
				CostPrice: line.CostPrice,
			}
			purchase.TotalCost = purchase.TotalCost.Add(line.CostPrice.Mul(decimal.NewFromInt(line.Qty)))
		}

		for i, line := range lines {
			if _, err := applyStockDelta(ctx, tx, productIDs[i], line.Qty); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}

		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return err
		}
		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns purchases for a day, or all purchases when dayKey is empty.
func (s *PurchaseService) List(ctx context.Context, dayKey string) ([]domain.Purchase, error) {
	if dayKey != "" {
		if err := daykey.Validate(dayKey); err != nil {
			return nil, ErrInvalidDayKey
		}
	}
	return s.store.ListPurchases(ctx, dayKey)
}

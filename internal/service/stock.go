package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/daykey"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/store"
)

// applyStockDelta is the single choke point for inventory count mutations.
// It re-reads stock inside the caller's transaction, applies the signed delta
// and writes the new value back, so interleaved transactions never lose an
// update. Negative results are allowed: oversold stock is a business outcome.
func applyStockDelta(ctx context.Context, tx store.Tx, productID uuid.UUID, delta int64) (int64, error) {
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("get product: %w", err)
	}
	newStock := p.Stock + delta
	if err := tx.UpdateProductStock(ctx, productID, newStock); err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}
	return newStock, nil
}

// StockService handles manual stock corrections.
type StockService struct {
	store store.Store
	clock *daykey.Clock
}

func NewStockService(st store.Store, clock *daykey.Clock) *StockService {
	return &StockService{store: st, clock: clock}
}

// AdjustResult pairs the audit row with the stock value it produced.
type AdjustResult struct {
	Adjustment domain.StockAdjustment
	NewStock   int64
}

// Adjust applies an out-of-band stock delta and records the audit row in one
// transaction.
func (s *StockService) Adjust(ctx context.Context, actor domain.Actor, productID uuid.UUID, delta int64, reason string) (*AdjustResult, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if delta == 0 {
		return nil, ErrInvalidDelta
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	adj := domain.StockAdjustment{
		ID:        uuid.New(),
		ProductID: productID,
		Delta:     delta,
		Reason:    reason,
		AdminID:   actor.ID,
		AdminName: actor.Name,
		CreatedAt: s.clock.Now(),
	}

	var newStock int64
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		var err error
		newStock, err = applyStockDelta(ctx, tx, productID, delta)
		if err != nil {
			return err
		}
		return tx.CreateStockAdjustment(ctx, &adj)
	})
	if err != nil {
		return nil, err
	}
	return &AdjustResult{Adjustment: adj, NewStock: newStock}, nil
}

// History lists the most recent adjustments for a product, newest first.
func (s *StockService) History(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockAdjustment, error) {
	return s.store.ListAdjustmentsByProduct(ctx, productID, limit)
}

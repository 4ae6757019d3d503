package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/cache"
	"github.com/pagofacil-pos/api/internal/daykey"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// paymentEpsilon is the tolerance for the MIXED split check. A split whose
// absolute difference from the total reaches the epsilon is rejected.
var paymentEpsilon = decimal.NewFromFloat(0.01)

// CreateSaleRequest is the validated input for creating a sale.
type CreateSaleRequest struct {
	Items          []SaleLineRequest
	PaymentMethod  string
	CashAmount     decimal.Decimal
	TransferAmount decimal.Decimal
	IdempotencyKey string
}

// SaleLineRequest is a single line in the sale.
type SaleLineRequest struct {
	ProductID string
	Qty       int64
}

// SaleService orchestrates the sale state machine on top of the stock ledger.
type SaleService struct {
	store   store.Store
	clock   *daykey.Clock
	reports cache.ReportCache
}

func NewSaleService(st store.Store, clock *daykey.Clock, reports cache.ReportCache) *SaleService {
	return &SaleService{store: st, clock: clock, reports: reports}
}

// Create checks out a sale: resolves and snapshots every product, debits
// stock per line and persists the sale with its items, all in one
// transaction. A repeated request with the same idempotency key returns the
// already-created sale instead of debiting stock again.
func (s *SaleService) Create(ctx context.Context, actor domain.Actor, req CreateSaleRequest) (*domain.Sale, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	productIDs := make([]uuid.UUID, len(req.Items))
	for i, line := range req.Items {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		pid, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		productIDs[i] = pid
	}

	var result *domain.Sale
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		result = nil

		if req.IdempotencyKey != "" {
			existing, err := tx.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
			if err == nil {
				result = existing
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
		}

		// Resolve all products before touching any stock: a missing line
		// rejects the whole sale.
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

		sale, err := s.buildSale(actor, req, products)
		if err != nil {
			return err
		}

		for i, line := range req.Items {
			if _, err := applyStockDelta(ctx, tx, productIDs[i], -line.Qty); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}

		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateReport(ctx, s.reports, result.DayKey)
	return result, nil
}

// QuickCreate sells one unit of the product identified by its short code,
// paid in cash. Counter shorthand for the common single-item sale.
func (s *SaleService) QuickCreate(ctx context.Context, actor domain.Actor, code string) (*domain.Sale, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeRequired
	}

	var result *domain.Sale
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.GetActiveProductByCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("get product by code: %w", err)
		}

		sale, err := s.buildSale(actor, CreateSaleRequest{
			Items:         []SaleLineRequest{{ProductID: p.ID.String(), Qty: 1}},
			PaymentMethod: enum.PaymentMethodCash,
		}, []*domain.Product{p})
		if err != nil {
			return err
		}

		if _, err := applyStockDelta(ctx, tx, p.ID, -1); err != nil {
			return err
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateReport(ctx, s.reports, result.DayKey)
	return result, nil
}

// buildSale snapshots the resolved products into a new ACTIVE sale. The
// caller has already validated quantities and the payment method.
func (s *SaleService) buildSale(actor domain.Actor, req CreateSaleRequest, products []*domain.Product) (*domain.Sale, error) {
	total := decimal.Zero
	items := make([]domain.SaleItem, len(req.Items))
	for i, line := range req.Items {
		p := products[i]
		qty := decimal.NewFromInt(line.Qty)
		lineTotal := p.Price.Mul(qty)
		items[i] = domain.SaleItem{
			ID:            uuid.New(),
			ProductID:     p.ID,
			Name:          p.Name,
			Code:          p.Code,
			Barcode:       p.Barcode,
			Qty:           line.Qty,
			UnitPrice:     p.Price,
			ItemCostPrice: p.CostPrice,
			LineTotal:     lineTotal,
		}
		total = total.Add(lineTotal)
	}

	cash, transfer, err := normalizePayment(req.PaymentMethod, req.CashAmount, req.TransferAmount, total)
	if err != nil {
		return nil, err
	}

	return &domain.Sale{
		ID:             uuid.New(),
		SellerID:       actor.ID,
		SellerName:     actor.Name,
		DayKey:         s.clock.Today(),
		Status:         enum.SaleStatusActive,
		PaymentMethod:  req.PaymentMethod,
		CashAmount:     cash,
		TransferAmount: transfer,
		Total:          total,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock.Now(),
		Items:          items,
	}, nil
}

// EditPayment rewrites the payment split of an ACTIVE sale against its frozen
// total. Items, stock and total are never touched. The route is admin-gated;
// the role is still checked here so the engine never trusts the boundary alone.
func (s *SaleService) EditPayment(ctx context.Context, actor domain.Actor, saleID uuid.UUID, method string, cash, transfer decimal.Decimal) (*domain.Sale, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if !isValidPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	var result *domain.Sale
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSaleNotFound
			}
			return err
		}
		if sale.Status == enum.SaleStatusVoided {
			return ErrSaleVoided
		}

		newCash, newTransfer, err := normalizePayment(method, cash, transfer, sale.Total)
		if err != nil {
			return err
		}
		if err := tx.UpdateSalePayment(ctx, saleID, method, newCash, newTransfer); err != nil {
			return err
		}

		sale.PaymentMethod = method
		sale.CashAmount = newCash
		sale.TransferAmount = newTransfer
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateReport(ctx, s.reports, result.DayKey)
	return result, nil
}

// Void transitions an ACTIVE sale to VOIDED and credits every line's quantity
// back to stock, exactly once. The second of two concurrent voids fails.
func (s *SaleService) Void(ctx context.Context, actor domain.Actor, saleID uuid.UUID, reason string) (*domain.Sale, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	var result *domain.Sale
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSaleNotFound
			}
			return err
		}
		if sale.Status == enum.SaleStatusVoided {
			return ErrSaleVoided
		}

		for i := range sale.Items {
			it := &sale.Items[i]
			if _, err := applyStockDelta(ctx, tx, it.ProductID, it.Qty); err != nil {
				// Product rows outlive sales, so a missing product here is a
				// storage-level problem, not a user error.
				return fmt.Errorf("restore stock for item[%d]: %w", i, err)
			}
		}

		now := s.clock.Now()
		if err := tx.MarkSaleVoided(ctx, saleID, reason, now); err != nil {
			return err
		}

		sale.Status = enum.SaleStatusVoided
		sale.VoidReason = reason
		sale.VoidedAt = &now
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateReport(ctx, s.reports, result.DayKey)
	return result, nil
}

// Delete permanently removes a VOIDED sale. Stock was already reconciled by
// the void, so deletion never touches it.
func (s *SaleService) Delete(ctx context.Context, actor domain.Actor, saleID uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrAdminOnly
	}
	var dayKey string
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSaleNotFound
			}
			return err
		}
		if sale.Status != enum.SaleStatusVoided {
			return ErrSaleNotVoided
		}
		dayKey = sale.DayKey
		return tx.DeleteSale(ctx, saleID)
	})
	if err != nil {
		return err
	}

	invalidateReport(ctx, s.reports, dayKey)
	return nil
}

func (s *SaleService) Get(ctx context.Context, saleID uuid.UUID) (*domain.Sale, error) {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}

// List returns sales for a day. Non-admin callers only ever see their own;
// admins may narrow to one seller ("" or "all" means every seller).
func (s *SaleService) List(ctx context.Context, actor domain.Actor, dayKey, sellerID string) ([]domain.Sale, error) {
	if dayKey == "" {
		dayKey = s.clock.Today()
	} else if err := daykey.Validate(dayKey); err != nil {
		return nil, ErrInvalidDayKey
	}

	f := store.SaleFilter{DayKey: dayKey}
	if !actor.IsAdmin() {
		f.SellerID = actor.ID
	} else if sellerID != "" && sellerID != "all" {
		id, err := uuid.Parse(sellerID)
		if err != nil {
			return nil, ErrInvalidSellerID
		}
		f.SellerID = id
	}
	return s.store.ListSales(ctx, f)
}

// normalizePayment forces the split for single-method payments and validates
// the caller-supplied split for MIXED against the frozen total.
func normalizePayment(method string, cash, transfer, total decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch method {
	case enum.PaymentMethodCash:
		return total, decimal.Zero, nil
	case enum.PaymentMethodTransfer:
		return decimal.Zero, total, nil
	case enum.PaymentMethodMixed:
		if cash.IsNegative() || transfer.IsNegative() {
			return decimal.Zero, decimal.Zero, ErrInvalidAmount
		}
		diff := cash.Add(transfer).Sub(total).Abs()
		if diff.GreaterThanOrEqual(paymentEpsilon) {
			return decimal.Zero, decimal.Zero, ErrPaymentMismatch
		}
		return cash, transfer, nil
	}
	return decimal.Zero, decimal.Zero, ErrInvalidPaymentMethod
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodTransfer, enum.PaymentMethodMixed:
		return true
	}
	return false
}

// invalidateReport drops a day's cached report. Best effort: a stale entry
// costs one recompute, never correctness of stored data.
func invalidateReport(ctx context.Context, c cache.ReportCache, dayKey string) {
	if c == nil {
		return
	}
	_ = c.Invalidate(ctx, reportCacheKey(dayKey))
}

func reportCacheKey(dayKey string) string {
	return "report:daily:" + dayKey
}

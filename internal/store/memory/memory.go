// Package memory is an in-memory Store used by unit tests and by dev mode
// when DATABASE_URL is unset. Atomic clones the whole state, applies the
// closure to the clone and swaps it in on success, so a failed closure rolls
// back completely, exactly like a database transaction.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

type state struct {
	products    map[uuid.UUID]domain.Product
	sales       map[uuid.UUID]domain.Sale
	salesByIdem map[string]uuid.UUID
	purchases   map[uuid.UUID]domain.Purchase
	adjustments []domain.StockAdjustment
	users       map[uuid.UUID]domain.User
}

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		products:    make(map[uuid.UUID]domain.Product),
		sales:       make(map[uuid.UUID]domain.Sale),
		salesByIdem: make(map[string]uuid.UUID),
		purchases:   make(map[uuid.UUID]domain.Purchase),
		adjustments: nil,
		users:       make(map[uuid.UUID]domain.User),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, sale := range s.sales {
		c.sales[id] = cloneSale(sale)
	}
	for k, v := range s.salesByIdem {
		c.salesByIdem[k] = v
	}
	for id, p := range s.purchases {
		c.purchases[id] = clonePurchase(p)
	}
	c.adjustments = append([]domain.StockAdjustment(nil), s.adjustments...)
	for id, u := range s.users {
		c.users[id] = u
	}
	return c
}

func cloneSale(s domain.Sale) domain.Sale {
	s.Items = append([]domain.SaleItem(nil), s.Items...)
	if s.VoidedAt != nil {
		at := *s.VoidedAt
		s.VoidedAt = &at
	}
	return s
}

func clonePurchase(p domain.Purchase) domain.Purchase {
	p.Items = append([]domain.PurchaseItem(nil), p.Items...)
	return p
}

// tx implements store.Tx against a cloned state.
type tx struct {
	st *state
}

// Atomic runs fn against a clone of the current state under the write lock,
// committing the clone only if fn succeeds. A single lock serializes all
// transactions, so conflicts cannot occur in this implementation.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&tx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// --- Tx methods ---

func (t *tx) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *tx) GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	return findActiveByCode(t.st, code)
}

func (t *tx) UpdateProduct(ctx context.Context, p domain.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	for id, other := range t.st.products {
		if id != p.ID && other.Code == p.Code {
			return store.ErrDuplicateCode
		}
	}
	p.UpdatedAt = time.Now().UTC()
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) UpdateProductStock(ctx context.Context, id uuid.UUID, stock int64) error {
	p, ok := t.st.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock = stock
	p.UpdatedAt = time.Now().UTC()
	t.st.products[id] = p
	return nil
}

func (t *tx) CreateSale(ctx context.Context, s *domain.Sale) error {
	t.st.sales[s.ID] = cloneSale(*s)
	if s.IdempotencyKey != "" {
		t.st.salesByIdem[s.IdempotencyKey] = s.ID
	}
	return nil
}

func (t *tx) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, ok := t.st.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale = cloneSale(sale)
	return &sale, nil
}

func (t *tx) GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	id, ok := t.st.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.GetSale(ctx, id)
}

func (t *tx) UpdateSalePayment(ctx context.Context, id uuid.UUID, method string, cash, transfer decimal.Decimal) error {
	sale, ok := t.st.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	sale.PaymentMethod = method
	sale.CashAmount = cash
	sale.TransferAmount = transfer
	t.st.sales[id] = sale
	return nil
}

func (t *tx) MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	sale, ok := t.st.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	sale.Status = "VOIDED"
	sale.VoidReason = reason
	sale.VoidedAt = &at
	t.st.sales[id] = sale
	return nil
}

func (t *tx) DeleteSale(ctx context.Context, id uuid.UUID) error {
	sale, ok := t.st.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	if sale.IdempotencyKey != "" {
		delete(t.st.salesByIdem, sale.IdempotencyKey)
	}
	delete(t.st.sales, id)
	return nil
}

func (t *tx) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	t.st.purchases[p.ID] = clonePurchase(*p)
	return nil
}

func (t *tx) CreateStockAdjustment(ctx context.Context, a *domain.StockAdjustment) error {
	t.st.adjustments = append(t.st.adjustments, *a)
	return nil
}

// --- Plain reads / writes ---

func (s *Store) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findActiveByCode(s.st, code)
}

func findActiveByCode(st *state, code string) (*domain.Product, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, p := range st.products {
		if p.Active && p.Code == code {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.st.products {
		if other.Code == p.Code {
			return nil, store.ErrDuplicateCode
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.st.products[p.ID] = p
	return &p, nil
}

func (s *Store) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	s.st.products[id] = p
	return nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.st.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale = cloneSale(sale)
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, f store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.st.sales))
	for _, sale := range s.st.sales {
		if f.DayKey != "" && sale.DayKey != f.DayKey {
			continue
		}
		if f.SellerID != uuid.Nil && sale.SellerID != f.SellerID {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPurchases(ctx context.Context, dayKey string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Purchase, 0, len(s.st.purchases))
	for _, p := range s.st.purchases {
		if dayKey != "" && p.DayKey != dayKey {
			continue
		}
		out = append(out, clonePurchase(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAdjustmentsByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockAdjustment, 0, limit)
	for i := len(s.st.adjustments) - 1; i >= 0; i-- {
		a := s.st.adjustments[i]
		if a.ProductID != productID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	for _, u := range s.st.users {
		if u.Active && (u.Username == needle || u.Email == needle) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.st.users {
		if other.Username == u.Username || other.Email == u.Email {
			return nil, store.ErrDuplicateCode
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now().UTC()
	s.st.users[u.ID] = u
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[u.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.st.users[u.ID] = u
	return &u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Active = false
	s.st.users[id] = u
	return nil
}

// Package store defines the persistence boundary of the transaction engine.
// One engine runs against either implementation: postgres (production) or
// memory (tests, dev mode). Every stock-affecting operation executes inside
// Atomic so partial application is never observable.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the store detects a conflicting concurrent
	// commit. The caller must retry the whole atomic closure from scratch,
	// never re-apply its writes on stale reads.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrDuplicateCode is returned when a product code or username collides
	// with an existing record.
	ErrDuplicateCode = errors.New("duplicate code")
)

// SaleFilter narrows sale listings. Zero values mean "no filter".
type SaleFilter struct {
	DayKey   string
	SellerID uuid.UUID
}

// Tx is the set of operations available inside one atomic transaction.
// Reads within a Tx observe the transaction's own writes; a product read
// followed by UpdateProductStock is a serialized read-modify-write.
type Tx interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	UpdateProductStock(ctx context.Context, id uuid.UUID, stock int64) error

	CreateSale(ctx context.Context, s *domain.Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error)
	UpdateSalePayment(ctx context.Context, id uuid.UUID, method string, cash, transfer decimal.Decimal) error
	MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	DeleteSale(ctx context.Context, id uuid.UUID) error

	CreatePurchase(ctx context.Context, p *domain.Purchase) error
	CreateStockAdjustment(ctx context.Context, a *domain.StockAdjustment) error
}

// Store is the full persistence interface: plain reads plus the atomic
// transaction entry point.
type Store interface {
	// Atomic runs fn inside a single transaction. If fn returns an error the
	// transaction is rolled back and nothing is visible to other callers.
	// Implementations surface ErrConflict for conflicting concurrent commits;
	// retrying is the caller's responsibility.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error

	GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]domain.Sale, error)
	ListPurchases(ctx context.Context, dayKey string) ([]domain.Purchase, error)
	ListAdjustmentsByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockAdjustment, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error)
	ListActiveUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) (*domain.User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error
}

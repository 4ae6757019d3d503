// Package domain holds the persistence models shared by the store
// implementations and the services. Monetary values are decimals end to end;
// they are only rendered as plain numbers at the HTTP boundary.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated identity a request acts as. It is supplied by
// the access boundary (JWT middleware); the core never re-derives it.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role string
}

// Product is the shared stock record. Stock is a signed count: it may go
// negative (oversold inventory pending reconciliation) and that is a business
// outcome, not an error.
type Product struct {
	ID        uuid.UUID
	Code      string // unique, stored lower-cased
	Barcode   string // optional
	Name      string
	Price     decimal.Decimal
	CostPrice decimal.Decimal
	Stock     int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sale is an immutable-except-status transaction record. Items and total are
// frozen at creation; only status, void metadata and the payment split may
// change afterwards.
type Sale struct {
	ID             uuid.UUID
	SellerID       uuid.UUID
	SellerName     string // snapshot, immune to later user renames
	DayKey         string
	Status         string
	PaymentMethod  string
	CashAmount     decimal.Decimal
	TransferAmount decimal.Decimal
	Total          decimal.Decimal
	VoidReason     string
	VoidedAt       *time.Time
	IdempotencyKey string // optional client dedup key
	CreatedAt      time.Time
	Items          []SaleItem
}

// SaleItem snapshots the product at the moment of sale.
type SaleItem struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	ProductID     uuid.UUID
	Name          string
	Code          string
	Barcode       string
	Qty           int64
	UnitPrice     decimal.Decimal
	ItemCostPrice decimal.Decimal
	LineTotal     decimal.Decimal
}

// Purchase records a restock. Immutable once created; a mistaken purchase is
// corrected with a compensating StockAdjustment, never edited.
type Purchase struct {
	ID        uuid.UUID
	AdminID   uuid.UUID
	AdminName string
	DayKey    string
	TotalCost decimal.Decimal
	CreatedAt time.Time
	Items     []PurchaseItem
}

type PurchaseItem struct {
	ID        uuid.UUID
	Purchase  uuid.UUID
	ProductID uuid.UUID
	Name      string // snapshot
	Qty       int64
	CostPrice decimal.Decimal
}

// StockAdjustment is an append-only audit row for out-of-band stock
// corrections (shrinkage, breakage, recount).
type StockAdjustment struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Delta     int64
	Reason    string
	AdminID   uuid.UUID
	AdminName string
	CreatedAt time.Time
}

// User is an account record. Deactivated users keep their rows so historical
// seller ids stay resolvable.
type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	Name           string
	Role           string
	HashedPassword string
	Active         bool
	CreatedAt      time.Time
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == "ADMIN"
}

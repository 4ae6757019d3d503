package enum

// ── State machines (CHECK constrained in DB) ──

const (
	SaleStatusActive = "ACTIVE"
	SaleStatusVoided = "VOIDED"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleCashier = "CASHIER"
)

// ── Payment methods ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodMixed    = "MIXED"
)

package service

import "errors"

// Errors returned by the services. Handlers map these onto HTTP statuses.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidCostPrice     = errors.New("cost_price must be >= 0")
	ErrInvalidPrice         = errors.New("price must be >= 0")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidSellerID      = errors.New("invalid seller_id")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidAmount        = errors.New("payment amounts must be >= 0")
	ErrPaymentMismatch      = errors.New("mixed payment does not match the total")
	ErrInvalidDayKey        = errors.New("invalid day_key, expected YYYY-MM-DD")
	ErrInvalidDelta         = errors.New("delta must be a nonzero integer")
	ErrReasonRequired       = errors.New("reason is required")
	ErrCodeRequired         = errors.New("code is required")
	ErrNameRequired         = errors.New("name is required")
	ErrUsernameRequired     = errors.New("username is required")

	ErrProductNotFound = errors.New("product not found")
	ErrSaleNotFound    = errors.New("sale not found")

	ErrSaleVoided    = errors.New("sale is already voided")
	ErrSaleNotVoided = errors.New("sale must be voided first")

	ErrAdminOnly = errors.New("admin role required")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrSelfDelete         = errors.New("cannot deactivate your own account")
)

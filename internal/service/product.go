package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the validated input for creating a product.
type CreateProductRequest struct {
	Code      string
	Barcode   string
	Name      string
	Price     decimal.Decimal
	CostPrice decimal.Decimal
	Stock     int64
}

// UpdateProductRequest is a partial update; nil fields are left unchanged.
type UpdateProductRequest struct {
	Code      *string
	Barcode   *string
	Name      *string
	Price     *decimal.Decimal
	CostPrice *decimal.Decimal
}

// ProductService manages the catalog. Products referenced by history are
// never hard-deleted, only deactivated.
type ProductService struct {
	store store.Store
}

func NewProductService(st store.Store) *ProductService {
	return &ProductService{store: st}
}

func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*domain.Product, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, ErrCodeRequired
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if req.CostPrice.IsNegative() {
		return nil, ErrInvalidCostPrice
	}

	return s.store.CreateProduct(ctx, domain.Product{
		Code:      code,
		Barcode:   strings.TrimSpace(req.Barcode),
		Name:      name,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Stock:     req.Stock,
		Active:    true,
	})
}

// Update patches a product inside a transaction so the read-modify-write
// cannot race a concurrent sale's stock update.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*domain.Product, error) {
	var result *domain.Product
	err := runAtomic(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		if req.Code != nil {
			code := strings.ToLower(strings.TrimSpace(*req.Code))
			if code == "" {
				return ErrCodeRequired
			}
			p.Code = code
		}
		if req.Barcode != nil {
			p.Barcode = strings.TrimSpace(*req.Barcode)
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return ErrNameRequired
			}
			p.Name = name
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				return ErrInvalidPrice
			}
			p.Price = *req.Price
		}
		if req.CostPrice != nil {
			if req.CostPrice.IsNegative() {
				return ErrInvalidCostPrice
			}
			p.CostPrice = *req.CostPrice
		}

		if err := tx.UpdateProduct(ctx, *p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListActiveProducts(ctx)
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// Deactivate soft-deletes: the row stays so historical sale and purchase
// lines keep resolving.
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeactivateProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}

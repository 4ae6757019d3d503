// Package postgres implements store.Store on PostgreSQL via pgx. Product rows
// are read with FOR UPDATE inside transactions so concurrent stock
// read-modify-writes serialize instead of losing updates; serialization
// failures surface as store.ErrConflict for the engine to retry.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// Store is a pgx-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool; used by the integration tests.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Atomic runs fn inside one database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	if err := fn(&tx{q: pgTx}); err != nil {
		return mapErr(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// mapErr translates driver errors into the store's sentinel taxonomy.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", store.ErrDuplicateCode, err)
		}
	}
	return err
}

// queryer is satisfied by both pgx.Tx and *pgxpool.Pool.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tx implements store.Tx on an open pgx transaction.
type tx struct {
	q queryer
}

const productColumns = `id, code, COALESCE(barcode, ''), name, price, cost_price, stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var price, cost pgtype.Numeric
	err := row.Scan(&p.ID, &p.Code, &p.Barcode, &p.Name, &price, &cost, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Price = numericToDecimal(price)
	p.CostPrice = numericToDecimal(cost)
	return &p, nil
}

func (t *tx) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := t.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	return scanProduct(row)
}

func (t *tx) GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	row := t.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1 AND active = true FOR UPDATE`, code)
	return scanProduct(row)
}

func (t *tx) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE products
		SET code = $2, barcode = NULLIF($3, ''), name = $4, price = $5,
			cost_price = $6, stock = $7, active = $8, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Code, p.Barcode, p.Name, decimalToNumeric(p.Price), decimalToNumeric(p.CostPrice), p.Stock, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) UpdateProductStock(ctx context.Context, id uuid.UUID, stock int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) CreateSale(ctx context.Context, s *domain.Sale) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO sales (id, seller_id, seller_name, day_key, status, payment_method,
			cash_amount, transfer_amount, total, void_reason, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', NULLIF($10, ''), $11)
	`, s.ID, s.SellerID, s.SellerName, s.DayKey, s.Status, s.PaymentMethod,
		decimalToNumeric(s.CashAmount), decimalToNumeric(s.TransferAmount), decimalToNumeric(s.Total),
		s.IdempotencyKey, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for i := range s.Items {
		it := &s.Items[i]
		it.SaleID = s.ID
		_, err := t.q.Exec(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, name, code, barcode,
				qty, unit_price, item_cost_price, line_total)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		`, it.ID, it.SaleID, it.ProductID, it.Name, it.Code, it.Barcode,
			it.Qty, decimalToNumeric(it.UnitPrice), decimalToNumeric(it.ItemCostPrice), decimalToNumeric(it.LineTotal))
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

const saleColumns = `id, seller_id, seller_name, day_key, status, payment_method,
	cash_amount, transfer_amount, total, void_reason, voided_at, COALESCE(idempotency_key, ''), created_at`

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var s domain.Sale
	var cash, transfer, total pgtype.Numeric
	var voidedAt pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.SellerID, &s.SellerName, &s.DayKey, &s.Status, &s.PaymentMethod,
		&cash, &transfer, &total, &s.VoidReason, &voidedAt, &s.IdempotencyKey, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	s.CashAmount = numericToDecimal(cash)
	s.TransferAmount = numericToDecimal(transfer)
	s.Total = numericToDecimal(total)
	if voidedAt.Valid {
		at := voidedAt.Time
		s.VoidedAt = &at
	}
	return &s, nil
}

func loadSaleItems(ctx context.Context, q queryer, saleIDs []uuid.UUID) (map[uuid.UUID][]domain.SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, name, code, COALESCE(barcode, ''),
			qty, unit_price, item_cost_price, line_total
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]domain.SaleItem)
	for rows.Next() {
		var it domain.SaleItem
		var unit, cost, line pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Name, &it.Code, &it.Barcode,
			&it.Qty, &unit, &cost, &line); err != nil {
			return nil, err
		}
		it.UnitPrice = numericToDecimal(unit)
		it.ItemCostPrice = numericToDecimal(cost)
		it.LineTotal = numericToDecimal(line)
		items[it.SaleID] = append(items[it.SaleID], it)
	}
	return items, rows.Err()
}

func getSale(ctx context.Context, q queryer, by string, arg any) (*domain.Sale, error) {
	row := q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+by+` = $1`, arg)
	s, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	items, err := loadSaleItems(ctx, q, []uuid.UUID{s.ID})
	if err != nil {
		return nil, err
	}
	s.Items = items[s.ID]
	return s, nil
}

func (t *tx) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	// Lock the sale row so concurrent voids serialize on it.
	row := t.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	items, err := loadSaleItems(ctx, t.q, []uuid.UUID{s.ID})
	if err != nil {
		return nil, err
	}
	s.Items = items[s.ID]
	return s, nil
}

func (t *tx) GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	return getSale(ctx, t.q, "idempotency_key", key)
}

func (t *tx) UpdateSalePayment(ctx context.Context, id uuid.UUID, method string, cash, transfer decimal.Decimal) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE sales SET payment_method = $2, cash_amount = $3, transfer_amount = $4
		WHERE id = $1
	`, id, method, decimalToNumeric(cash), decimalToNumeric(transfer))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	// Guarded on status so a lost race still cannot double-void.
	tag, err := t.q.Exec(ctx, `
		UPDATE sales SET status = 'VOIDED', void_reason = $2, voided_at = $3
		WHERE id = $1 AND status = 'ACTIVE'
	`, id, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func (t *tx) DeleteSale(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO purchases (id, admin_id, admin_name, day_key, total_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.AdminID, p.AdminName, p.DayKey, decimalToNumeric(p.TotalCost), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	for i := range p.Items {
		it := &p.Items[i]
		it.Purchase = p.ID
		_, err := t.q.Exec(ctx, `
			INSERT INTO purchase_items (id, purchase_id, product_id, name, qty, cost_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, it.ID, it.Purchase, it.ProductID, it.Name, it.Qty, decimalToNumeric(it.CostPrice))
		if err != nil {
			return fmt.Errorf("insert purchase item: %w", err)
		}
	}
	return nil
}

func (t *tx) CreateStockAdjustment(ctx context.Context, a *domain.StockAdjustment) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stock_adjustments (id, product_id, delta, reason, admin_id, admin_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.ProductID, a.Delta, a.Reason, a.AdminID, a.AdminName, a.CreatedAt)
	return err
}

// --- Plain reads / writes (pool, no explicit transaction) ---

func (s *Store) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active = true ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *Store) GetActiveProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1 AND active = true`, code)
	return scanProduct(row)
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, code, barcode, name, price, cost_price, stock, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, true)
		RETURNING created_at, updated_at
	`, p.ID, p.Code, p.Barcode, p.Name, decimalToNumeric(p.Price), decimalToNumeric(p.CostPrice), p.Stock)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.Active = true
	return &p, nil
}

func (s *Store) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return getSale(ctx, s.pool, "id", id)
}

func (s *Store) ListSales(ctx context.Context, f store.SaleFilter) ([]domain.Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR day_key = $1)
			AND ($2::uuid IS NULL OR seller_id = $2)
		ORDER BY created_at DESC
	`, f.DayKey, uuidOrNil(f.SellerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	var ids []uuid.UUID
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	items, err := loadSaleItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) ListPurchases(ctx context.Context, dayKey string) ([]domain.Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, admin_id, admin_name, day_key, total_cost, created_at
		FROM purchases
		WHERE ($1 = '' OR day_key = $1)
		ORDER BY created_at DESC
	`, dayKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	var ids []uuid.UUID
	for rows.Next() {
		var p domain.Purchase
		var total pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.AdminID, &p.AdminName, &p.DayKey, &total, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.TotalCost = numericToDecimal(total)
		purchases = append(purchases, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return purchases, nil
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT id, purchase_id, product_id, name, qty, cost_price
		FROM purchase_items
		WHERE purchase_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	byPurchase := make(map[uuid.UUID][]domain.PurchaseItem)
	for itemRows.Next() {
		var it domain.PurchaseItem
		var cost pgtype.Numeric
		if err := itemRows.Scan(&it.ID, &it.Purchase, &it.ProductID, &it.Name, &it.Qty, &cost); err != nil {
			return nil, err
		}
		it.CostPrice = numericToDecimal(cost)
		byPurchase[it.Purchase] = append(byPurchase[it.Purchase], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Items = byPurchase[purchases[i].ID]
	}
	return purchases, nil
}

func (s *Store) ListAdjustmentsByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockAdjustment, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, delta, reason, admin_id, admin_name, created_at
		FROM stock_adjustments
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StockAdjustment
	for rows.Next() {
		var a domain.StockAdjustment
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Delta, &a.Reason, &a.AdminID, &a.AdminName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const userColumns = `id, username, email, name, role, hashed_password, active, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Role, &u.HashedPassword, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	needle := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE (username = $1 OR email = $1) AND active = true
	`, needle))
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE active = true ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, name, role, hashed_password, active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING created_at
	`, u.ID, u.Username, u.Email, u.Name, u.Role, u.HashedPassword)
	if err := row.Scan(&u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Active = true
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $2, role = $3, hashed_password = $4, active = $5
		WHERE id = $1
	`, u.ID, u.Name, u.Role, u.HashedPassword, u.Active)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Numeric helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func uuidOrNil(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

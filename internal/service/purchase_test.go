package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCreatePurchaseCreditsStock(t *testing.T) {
	env := newTestEnv(t)
	cafe := env.seedProduct(t, "cafe", "1500.00", "600.00", 10)
	agua := env.seedProduct(t, "agua", "900.00", "400.00", 5)
	boss := admin()

	purchase, err := env.purchases.Create(context.Background(), boss, "", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 20, CostPrice: mustDecimal(t, "550.00")},
		{ProductID: agua.ID.String(), Qty: 30, CostPrice: mustDecimal(t, "380.00")},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	if got := env.productStock(t, cafe.ID); got != 30 {
		t.Errorf("cafe stock: got %d, want 30", got)
	}
	if got := env.productStock(t, agua.ID); got != 35 {
		t.Errorf("agua stock: got %d, want 35", got)
	}
	if !purchase.TotalCost.Equal(mustDecimal(t, "22400.00")) {
		t.Errorf("total cost: got %s, want 22400.00", purchase.TotalCost)
	}
	if purchase.DayKey != env.clock.Today() {
		t.Errorf("dayKey default: got %s, want today", purchase.DayKey)
	}
	if purchase.AdminName != boss.Name {
		t.Errorf("admin name snapshot: got %q", purchase.AdminName)
	}
	if purchase.Items[0].Name != cafe.Name {
		t.Errorf("item name snapshot: got %q", purchase.Items[0].Name)
	}
}

func TestCreatePurchaseAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	cafe := env.seedProduct(t, "cafe", "1500.00", "600.00", 10)

	_, err := env.purchases.Create(context.Background(), admin(), "", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 20, CostPrice: mustDecimal(t, "550.00")},
		{ProductID: uuid.NewString(), Qty: 5, CostPrice: mustDecimal(t, "100.00")},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("got %v, want ErrProductNotFound", err)
	}
	if got := env.productStock(t, cafe.ID); got != 10 {
		t.Errorf("stock after failed purchase: got %d, want 10", got)
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	env := newTestEnv(t)
	cafe := env.seedProduct(t, "cafe", "1500.00", "600.00", 10)
	ctx := context.Background()

	if _, err := env.purchases.Create(ctx, admin(), "", nil); !errors.Is(err, ErrEmptyItems) {
		t.Errorf("empty lines: got %v", err)
	}
	if _, err := env.purchases.Create(ctx, cashier(), "", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 1, CostPrice: mustDecimal(t, "10")},
	}); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("cashier purchase: got %v", err)
	}
	if _, err := env.purchases.Create(ctx, admin(), "not-a-day", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 1, CostPrice: mustDecimal(t, "10")},
	}); !errors.Is(err, ErrInvalidDayKey) {
		t.Errorf("bad dayKey: got %v", err)
	}
	if _, err := env.purchases.Create(ctx, admin(), "", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 0, CostPrice: mustDecimal(t, "10")},
	}); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero qty: got %v", err)
	}
	if _, err := env.purchases.Create(ctx, admin(), "", []PurchaseLineRequest{
		{ProductID: cafe.ID.String(), Qty: 1, CostPrice: mustDecimal(t, "-1")},
	}); !errors.Is(err, ErrInvalidCostPrice) {
		t.Errorf("negative cost: got %v", err)
	}
}

func TestListPurchasesByDay(t *testing.T) {
	env := newTestEnv(t)
	cafe := env.seedProduct(t, "cafe", "1500.00", "600.00", 10)
	ctx := context.Background()

	line := []PurchaseLineRequest{{ProductID: cafe.ID.String(), Qty: 1, CostPrice: mustDecimal(t, "500")}}
	if _, err := env.purchases.Create(ctx, admin(), "2025-03-09", line); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.purchases.Create(ctx, admin(), "2025-03-10", line); err != nil {
		t.Fatalf("create: %v", err)
	}

	day, err := env.purchases.List(ctx, "2025-03-09")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(day) != 1 || day[0].DayKey != "2025-03-09" {
		t.Errorf("day filter: got %d purchases", len(day))
	}

	all, err := env.purchases.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all purchases: got %d, want 2", len(all))
	}

	if _, err := env.purchases.List(ctx, "bogus"); !errors.Is(err, ErrInvalidDayKey) {
		t.Errorf("bad dayKey: got %v", err)
	}
}

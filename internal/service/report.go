package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/cache"
	"github.com/pagofacil-pos/api/internal/daykey"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// reportCacheTTL bounds how long an unevicted admin report survives; write
// paths invalidate eagerly, so this only covers missed invalidations.
const reportCacheTTL = 10 * time.Minute

// DailyReport is the per-day financial summary. Admin-only fields are nil
// and omitted for cashiers; salesList is only present for cashiers.
type DailyReport struct {
	DayKey          string             `json:"dayKey"`
	TodayKey        string             `json:"todayKey"`
	IsAdmin         bool               `json:"isAdmin"`
	TotalDay        float64            `json:"totalDay"`
	TotalsByPayment PaymentTotals      `json:"totalsByPayment"`
	CogsDay         *float64           `json:"cogsDay,omitempty"`
	ProfitDay       *float64           `json:"profitDay,omitempty"`
	TotalsByUser    map[string]float64 `json:"totalsByUser,omitempty"`
	VoidedCount     int                `json:"voidedCount"`
	SalesCount      int                `json:"salesCount"`
	SalesList       []SaleSummary      `json:"salesList,omitempty"`
}

type PaymentTotals struct {
	Cash     float64 `json:"cash"`
	Transfer float64 `json:"transfer"`
}

// SaleSummary is one row of a cashier's own sales for the day.
type SaleSummary struct {
	ID        uuid.UUID `json:"id"`
	Total     float64   `json:"total"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportService aggregates committed sales into daily summaries.
type ReportService struct {
	store store.Store
	clock *daykey.Clock
	cache cache.ReportCache
}

func NewReportService(st store.Store, clock *daykey.Clock, c cache.ReportCache) *ReportService {
	return &ReportService{store: st, clock: clock, cache: c}
}

// Daily computes the report for one day. Non-admin callers are coerced to
// today's key and filtered to their own sales regardless of what they asked
// for. Admin reports are served from cache when a fresh entry exists.
func (s *ReportService) Daily(ctx context.Context, actor domain.Actor, requestedDay string) (*DailyReport, error) {
	todayKey := s.clock.Today()
	dayKey := requestedDay
	if !actor.IsAdmin() || dayKey == "" {
		dayKey = todayKey
	} else if err := daykey.Validate(dayKey); err != nil {
		return nil, ErrInvalidDayKey
	}

	if actor.IsAdmin() && s.cache != nil {
		if payload, ok, err := s.cache.Get(ctx, reportCacheKey(dayKey)); err == nil && ok {
			var cached DailyReport
			if err := json.Unmarshal(payload, &cached); err == nil {
				cached.TodayKey = todayKey
				return &cached, nil
			}
		}
	}

	filter := store.SaleFilter{DayKey: dayKey}
	if !actor.IsAdmin() {
		filter.SellerID = actor.ID
	}
	sales, err := s.store.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := s.aggregate(actor, dayKey, todayKey, sales)

	if actor.IsAdmin() && s.cache != nil {
		if payload, err := json.Marshal(report); err == nil {
			_ = s.cache.Set(ctx, reportCacheKey(dayKey), payload, reportCacheTTL)
		}
	}
	return report, nil
}

func (s *ReportService) aggregate(actor domain.Actor, dayKey, todayKey string, sales []domain.Sale) *DailyReport {
	totalDay := decimal.Zero
	cashTotal := decimal.Zero
	transferTotal := decimal.Zero
	cogsDay := decimal.Zero
	byUser := make(map[string]decimal.Decimal)
	var summaries []SaleSummary
	voidedCount := 0
	activeCount := 0

	for _, sale := range sales {
		if sale.Status == enum.SaleStatusVoided {
			voidedCount++
			continue
		}
		activeCount++
		totalDay = totalDay.Add(sale.Total)

		switch sale.PaymentMethod {
		case enum.PaymentMethodTransfer:
			transferTotal = transferTotal.Add(sale.TransferAmount)
		case enum.PaymentMethodMixed:
			cashTotal = cashTotal.Add(sale.CashAmount)
			transferTotal = transferTotal.Add(sale.TransferAmount)
		default:
			cashTotal = cashTotal.Add(sale.CashAmount)
		}

		if actor.IsAdmin() {
			// COGS uses the cost snapshotted on the sale line, never the
			// product's current cost, so later price edits cannot move
			// historical margins.
			for _, it := range sale.Items {
				cogsDay = cogsDay.Add(it.ItemCostPrice.Mul(decimal.NewFromInt(it.Qty)))
			}
			name := sale.SellerName
			if name == "" {
				name = "Sin usuario"
			}
			byUser[name] = byUser[name].Add(sale.Total)
		} else {
			summaries = append(summaries, SaleSummary{
				ID:        sale.ID,
				Total:     sale.Total.InexactFloat64(),
				ItemCount: len(sale.Items),
				CreatedAt: sale.CreatedAt,
			})
		}
	}

	report := &DailyReport{
		DayKey:   dayKey,
		TodayKey: todayKey,
		IsAdmin:  actor.IsAdmin(),
		TotalDay: totalDay.InexactFloat64(),
		TotalsByPayment: PaymentTotals{
			Cash:     cashTotal.InexactFloat64(),
			Transfer: transferTotal.InexactFloat64(),
		},
		VoidedCount: voidedCount,
		SalesCount:  activeCount,
	}

	if actor.IsAdmin() {
		cogs := cogsDay.InexactFloat64()
		profit := totalDay.Sub(cogsDay).InexactFloat64()
		report.CogsDay = &cogs
		report.ProfitDay = &profit
		report.TotalsByUser = make(map[string]float64, len(byUser))
		for name, total := range byUser {
			report.TotalsByUser[name] = total.InexactFloat64()
		}
	} else {
		report.SalesList = summaries
	}
	return report
}

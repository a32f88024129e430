package stats

import (
	"math"
	"testing"
	"time"

	"gemtopup/backend/internal/domain"
)

func makeOrder(product string, price, cost float64, status domain.OrderStatus, at time.Time) domain.Order {
	return domain.Order{
		Product:   product,
		Price:     price,
		Cost:      cost,
		Status:    status,
		Timestamp: at.UnixMilli(),
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func TestComputeTotals(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		makeOrder("10x Ruby Keys", 1490, 615.6, domain.StatusFulfilled, ref),
		makeOrder("20x Ruby Keys", 2890, 1233.1, domain.StatusPending, ref),
	}

	stats := Compute(orders, ref)

	if stats.TotalOrders != 2 {
		t.Fatalf("total orders = %d, want 2", stats.TotalOrders)
	}
	if stats.PendingOrders != 1 || stats.FulfilledOrders != 1 || stats.RejectedOrders != 0 {
		t.Fatalf("status counts = %d/%d/%d, want 1/1/0",
			stats.PendingOrders, stats.FulfilledOrders, stats.RejectedOrders)
	}
	if !closeTo(stats.TotalRevenue, 4380) {
		t.Fatalf("total revenue = %v, want 4380", stats.TotalRevenue)
	}
	if !closeTo(stats.TotalCost, 1848.7) {
		t.Fatalf("total cost = %v, want 1848.7", stats.TotalCost)
	}
	if !closeTo(stats.TotalProfit, 2531.3) {
		t.Fatalf("total profit = %v, want 2531.3", stats.TotalProfit)
	}
}

func TestComputeProfitIgnoresStoredOverride(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	order := makeOrder("70 gems", 180, 102.3, domain.StatusFulfilled, ref)
	order.Profit = 9999 // manual display correction

	stats := Compute([]domain.Order{order}, ref)

	if !closeTo(stats.TotalProfit, 77.7) {
		t.Fatalf("total profit = %v, want 77.7", stats.TotalProfit)
	}
	if !closeTo(stats.TotalProfit, stats.TotalRevenue-stats.TotalCost) {
		t.Fatalf("profit invariant broken: %v != %v - %v",
			stats.TotalProfit, stats.TotalRevenue, stats.TotalCost)
	}
}

func TestComputeCalendarDayBucketing(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 1, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		// 23:30 the previous day: 90 minutes ago, but a different calendar day.
		makeOrder("a", 100, 60, domain.StatusPending, ref.Add(-90*time.Minute)),
		// 00:30 today.
		makeOrder("b", 100, 40, domain.StatusPending, ref.Add(-30*time.Minute)),
	}

	stats := Compute(orders, ref)

	if !closeTo(stats.SpentToday, 40) {
		t.Fatalf("spent today = %v, want 40", stats.SpentToday)
	}
}

func TestComputeCalendarMonthRequiresSameYear(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		makeOrder("a", 100, 50, domain.StatusPending, ref),
		makeOrder("b", 100, 70, domain.StatusPending, ref.AddDate(-1, 0, 0)),
	}

	stats := Compute(orders, ref)

	if !closeTo(stats.MonthlySpending, 50) {
		t.Fatalf("monthly spending = %v, want 50 (prior year excluded)", stats.MonthlySpending)
	}
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil, time.Now())
	if stats != (domain.Stats{}) {
		t.Fatalf("stats for no orders = %+v, want zero value", stats)
	}
}

func TestProductBreakdownGroupsAndSorts(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		makeOrder("70 gems", 180, 102.3, domain.StatusFulfilled, ref),
		makeOrder("10x Ruby Keys", 1490, 615.6, domain.StatusFulfilled, ref),
		makeOrder("70 gems", 180, 102.3, domain.StatusPending, ref),
	}

	rows := ProductBreakdown(orders)

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Product != "10x Ruby Keys" {
		t.Fatalf("top row = %q, want highest-profit product first", rows[0].Product)
	}
	gems := rows[1]
	if gems.Count != 2 {
		t.Fatalf("gems count = %d, want 2", gems.Count)
	}
	if !closeTo(gems.TotalProfit, 155.4) {
		t.Fatalf("gems profit = %v, want 155.4", gems.TotalProfit)
	}
	if !closeTo(gems.AverageProfit, 77.7) {
		t.Fatalf("gems avg profit = %v, want 77.7", gems.AverageProfit)
	}
	if !closeTo(gems.ProfitMargin, 155.4/360*100) {
		t.Fatalf("gems margin = %v", gems.ProfitMargin)
	}
	if !closeTo(gems.ROI, 155.4/204.6*100) {
		t.Fatalf("gems roi = %v", gems.ROI)
	}
}

func TestProductBreakdownProfitMatchesStats(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		makeOrder("a", 1490, 615.6, domain.StatusFulfilled, ref),
		makeOrder("b", 2890, 1233.1, domain.StatusPending, ref),
		makeOrder("a", 180, 102.3, domain.StatusRejected, ref),
	}

	var sum float64
	for _, row := range ProductBreakdown(orders) {
		sum += row.TotalProfit
	}

	stats := Compute(orders, ref)
	if !closeTo(sum, stats.TotalProfit) {
		t.Fatalf("breakdown profit sum = %v, stats profit = %v", sum, stats.TotalProfit)
	}
}

func TestProductBreakdownZeroDivisionGuards(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	rows := ProductBreakdown([]domain.Order{
		makeOrder("freebie", 0, 0, domain.StatusFulfilled, ref),
	})

	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ProfitMargin != 0 || rows[0].ROI != 0 {
		t.Fatalf("margin/roi = %v/%v, want 0/0", rows[0].ProfitMargin, rows[0].ROI)
	}
}

func TestProductBreakdownDistinctSpellings(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	rows := ProductBreakdown([]domain.Order{
		makeOrder("70 Gems", 180, 100, domain.StatusPending, ref),
		makeOrder("70 gems", 180, 100, domain.StatusPending, ref),
	})

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (exact-name grouping)", len(rows))
	}
}

func TestWindowProfit(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		makeOrder("today", 100, 40, domain.StatusFulfilled, ref.Add(-time.Hour)),
		makeOrder("this week", 100, 30, domain.StatusFulfilled, ref.Add(-3*24*time.Hour)),
		makeOrder("this month", 100, 20, domain.StatusFulfilled, ref.AddDate(0, 0, -13)),
		makeOrder("older", 100, 10, domain.StatusFulfilled, ref.AddDate(0, -2, 0)),
	}

	cases := []struct {
		window Window
		want   float64
	}{
		{WindowToday, 60},
		{WindowLast7Days, 130},
		{WindowThisMonth, 210},
	}
	for _, tc := range cases {
		got := WindowProfit(orders, tc.window, ref)
		if !closeTo(got, tc.want) {
			t.Fatalf("window %s profit = %v, want %v", tc.window, got, tc.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	if _, ok := ParseWindow("today"); !ok {
		t.Fatalf("today should parse")
	}
	if _, ok := ParseWindow("fortnight"); ok {
		t.Fatalf("unknown window should not parse")
	}
}

func TestOverview(t *testing.T) {
	ref := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	statements := []domain.Statement{
		{Product: "10x Ruby Keys", Price: 1490, Cost: 615.6, Timestamp: ref.Add(-time.Hour).UnixMilli()},
		{Product: "70 gems", Price: 180, Cost: 102.3, Timestamp: ref.Add(-2 * 24 * time.Hour).UnixMilli()},
		{Product: "70 gems", Price: 180, Cost: 102.3, Timestamp: ref.AddDate(0, -3, 0).UnixMilli()},
	}

	overview := Overview(statements, ref)

	if overview.TotalOrders != 3 {
		t.Fatalf("total orders = %d, want 3", overview.TotalOrders)
	}
	if !closeTo(overview.TotalRevenue, 1850) {
		t.Fatalf("total revenue = %v, want 1850", overview.TotalRevenue)
	}
	if !closeTo(overview.TotalProfit, overview.TotalRevenue-overview.TotalSpending) {
		t.Fatalf("profit invariant broken: %+v", overview)
	}
	if !closeTo(overview.TodayProfit, 874.4) {
		t.Fatalf("today profit = %v, want 874.4", overview.TodayProfit)
	}
	if !closeTo(overview.WeeklyProfit, 952.1) {
		t.Fatalf("weekly profit = %v, want 952.1", overview.WeeklyProfit)
	}
	if !closeTo(overview.MonthlyProfit, 952.1) {
		t.Fatalf("monthly profit = %v, want 952.1", overview.MonthlyProfit)
	}
	if overview.TopProduct != "10x Ruby Keys" {
		t.Fatalf("top product = %q, want 10x Ruby Keys", overview.TopProduct)
	}
	if !closeTo(overview.AvgOrderValue, 1850.0/3) {
		t.Fatalf("avg order value = %v", overview.AvgOrderValue)
	}
}

func TestOverviewEmpty(t *testing.T) {
	overview := Overview(nil, time.Now())
	if overview != (domain.Overview{}) {
		t.Fatalf("overview for no statements = %+v, want zero value", overview)
	}
}

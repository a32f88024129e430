// Package stats folds order and statement collections into the derived
// financial aggregates shown on the admin dashboards. Every function is
// pure: inputs are never mutated, no clock is read, and results are fully
// determined by the collection and the explicit reference time.
package stats

import (
	"math"
	"sort"
	"time"

	"gemtopup/backend/internal/domain"
)

// Window selects a reporting period for WindowProfit.
type Window string

const (
	WindowToday     Window = "today"
	WindowLast7Days Window = "last7days"
	WindowThisMonth Window = "thisMonth"
)

// ParseWindow maps a query-string value to a Window.
func ParseWindow(raw string) (Window, bool) {
	switch Window(raw) {
	case WindowToday, WindowLast7Days, WindowThisMonth:
		return Window(raw), true
	default:
		return "", false
	}
}

// Compute folds the orders into dashboard Stats in a single pass.
//
// Profit is always recomputed from price and cost; stored per-order profit
// overrides never feed aggregate totals, so totalProfit equals
// totalRevenue - totalCost by construction. Day and month buckets compare
// wall-clock calendar components in ref's location, not rolling durations.
func Compute(orders []domain.Order, ref time.Time) domain.Stats {
	stats := domain.Stats{TotalOrders: len(orders)}

	var revenue, cost, spentToday, monthlySpending float64
	for _, order := range orders {
		switch order.Status {
		case domain.StatusPending:
			stats.PendingOrders++
		case domain.StatusFulfilled:
			stats.FulfilledOrders++
		case domain.StatusRejected:
			stats.RejectedOrders++
		}

		revenue += order.Price
		cost += order.Cost

		at := order.CreatedAt().In(ref.Location())
		if sameCalendarDay(at, ref) {
			spentToday += order.Cost
		}
		if sameCalendarMonth(at, ref) {
			monthlySpending += order.Cost
		}
	}

	stats.TotalRevenue = round2(revenue)
	stats.TotalCost = round2(cost)
	stats.TotalProfit = round2(stats.TotalRevenue - stats.TotalCost)
	stats.SpentToday = round2(spentToday)
	stats.MonthlySpending = round2(monthlySpending)

	return stats
}

// ProductBreakdown groups orders by exact product name and returns per-group
// financials ordered by total profit descending. Grouping does no case or
// whitespace normalization: two differently-spelled product names are
// distinct rows. Ties keep first-encountered order.
func ProductBreakdown(orders []domain.Order) []domain.ProductStats {
	index := make(map[string]int, len(orders))
	rows := make([]domain.ProductStats, 0, len(orders))

	for _, order := range orders {
		i, ok := index[order.Product]
		if !ok {
			i = len(rows)
			index[order.Product] = i
			rows = append(rows, domain.ProductStats{Product: order.Product})
		}
		rows[i].Count++
		rows[i].TotalRevenue += order.Price
		rows[i].TotalCost += order.Cost
		rows[i].TotalProfit += order.DerivedProfit()
	}

	for i := range rows {
		rows[i].AverageProfit = rows[i].TotalProfit / float64(rows[i].Count)
		if rows[i].TotalRevenue > 0 {
			rows[i].ProfitMargin = rows[i].TotalProfit / rows[i].TotalRevenue * 100
		}
		if rows[i].TotalCost > 0 {
			rows[i].ROI = rows[i].TotalProfit / rows[i].TotalCost * 100
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalProfit > rows[j].TotalProfit
	})

	return rows
}

// WindowProfit returns the summed derived profit of the orders whose
// timestamp falls in the given window relative to ref. "today" and
// "thisMonth" use calendar bucketing; "last7days" is a rolling 168-hour
// window.
func WindowProfit(orders []domain.Order, window Window, ref time.Time) float64 {
	var profit float64
	cutoff := ref.Add(-7 * 24 * time.Hour)

	for _, order := range orders {
		at := order.CreatedAt().In(ref.Location())
		include := false
		switch window {
		case WindowToday:
			include = sameCalendarDay(at, ref)
		case WindowLast7Days:
			include = !at.Before(cutoff)
		case WindowThisMonth:
			include = sameCalendarMonth(at, ref)
		}
		if include {
			profit += order.DerivedProfit()
		}
	}

	return round2(profit)
}

// Overview summarizes the statement history: grand totals, margin and ROI
// percentages, average order value, time-bucketed profits and the single
// most profitable product.
func Overview(statements []domain.Statement, ref time.Time) domain.Overview {
	overview := domain.Overview{TotalOrders: len(statements)}

	cutoff := ref.Add(-7 * 24 * time.Hour)
	productProfits := make(map[string]float64, len(statements))

	for _, statement := range statements {
		overview.TotalRevenue += statement.Price
		overview.TotalSpending += statement.Cost

		profit := statement.Price - statement.Cost
		at := time.UnixMilli(statement.Timestamp).In(ref.Location())
		if sameCalendarDay(at, ref) {
			overview.TodayProfit += profit
		}
		if !at.Before(cutoff) {
			overview.WeeklyProfit += profit
		}
		if sameCalendarMonth(at, ref) {
			overview.MonthlyProfit += profit
		}

		product := statement.Product
		if product == "" {
			product = domain.UnknownProduct
		}
		productProfits[product] += profit
	}

	overview.TotalProfit = overview.TotalRevenue - overview.TotalSpending
	if overview.TotalRevenue > 0 {
		overview.ProfitMargin = overview.TotalProfit / overview.TotalRevenue * 100
	}
	if overview.TotalSpending > 0 {
		overview.ROI = overview.TotalProfit / overview.TotalSpending * 100
	}
	if overview.TotalOrders > 0 {
		overview.AvgOrderValue = overview.TotalRevenue / float64(overview.TotalOrders)
	}

	for product, profit := range productProfits {
		if profit > overview.TopProductProfit {
			overview.TopProductProfit = profit
			overview.TopProduct = product
		}
	}

	overview.TotalRevenue = round2(overview.TotalRevenue)
	overview.TotalSpending = round2(overview.TotalSpending)
	overview.TotalProfit = round2(overview.TotalProfit)
	overview.TodayProfit = round2(overview.TodayProfit)
	overview.WeeklyProfit = round2(overview.WeeklyProfit)
	overview.MonthlyProfit = round2(overview.MonthlyProfit)

	return overview
}

func sameCalendarDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func sameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

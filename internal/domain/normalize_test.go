package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeOrderDefaults(t *testing.T) {
	order, err := NormalizeOrder(map[string]any{})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if order.Product != UnknownProduct {
		t.Fatalf("product = %q, want %q", order.Product, UnknownProduct)
	}
	if order.CustomerName != UnknownCustomerName {
		t.Fatalf("customer name = %q, want %q", order.CustomerName, UnknownCustomerName)
	}
	if order.CustomerEmail != UnknownCustomerEmail {
		t.Fatalf("customer email = %q, want %q", order.CustomerEmail, UnknownCustomerEmail)
	}
	if order.Status != StatusPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if order.Price != 0 || order.Cost != 0 {
		t.Fatalf("price/cost = %v/%v, want 0/0", order.Price, order.Cost)
	}
}

func TestNormalizeOrderStatusAliases(t *testing.T) {
	for _, raw := range []string{"approved", "completed"} {
		order, err := NormalizeOrder(map[string]any{"status": raw})
		if err != nil {
			t.Fatalf("normalize %q failed: %v", raw, err)
		}
		if order.Status != StatusFulfilled {
			t.Fatalf("status for %q = %q, want completed", raw, order.Status)
		}
	}

	_, err := NormalizeOrder(map[string]any{"status": "shipped"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if vErr.Field != "status" {
		t.Fatalf("field = %q, want status", vErr.Field)
	}
}

func TestNormalizeOrderRejectsNegativeMoney(t *testing.T) {
	cases := map[string]map[string]any{
		"price": {"price": float64(-1)},
		"cost":  {"cost": float64(-0.01)},
	}
	for field, raw := range cases {
		_, err := NormalizeOrder(raw)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected validation error, got %v", field, err)
		}
		if vErr.Field != field {
			t.Fatalf("field = %q, want %q", vErr.Field, field)
		}
	}
}

func TestNormalizeOrderRejectsNonFiniteMoney(t *testing.T) {
	_, err := NormalizeOrder(map[string]any{"price": math.NaN()})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for NaN price, got %v", err)
	}

	_, err = NormalizeOrder(map[string]any{"cost": math.Inf(1)})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for Inf cost, got %v", err)
	}
}

func TestNormalizeOrderToleratesLooseNumericTypes(t *testing.T) {
	order, err := NormalizeOrder(map[string]any{
		"price":     "1490",
		"cost":      int64(615),
		"timestamp": float64(1700000000000),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if order.Price != 1490 {
		t.Fatalf("price = %v, want 1490 from string", order.Price)
	}
	if order.Cost != 615 {
		t.Fatalf("cost = %v, want 615 from int64", order.Cost)
	}
	if order.Timestamp != 1700000000000 {
		t.Fatalf("timestamp = %v", order.Timestamp)
	}
}

func TestNormalizeOrderUnparseableMoneyBecomesZero(t *testing.T) {
	order, err := NormalizeOrder(map[string]any{"price": "free"})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if order.Price != 0 {
		t.Fatalf("price = %v, want 0 for unparseable value", order.Price)
	}
}

func TestNormalizeOrderVendorAliasPreference(t *testing.T) {
	order, err := NormalizeOrder(map[string]any{
		"neteaseEmail": "vendor@example.com",
		"email":        "generic@example.com",
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if order.NeteaseEmail != "vendor@example.com" {
		t.Fatalf("netease email = %q, want vendor field to win", order.NeteaseEmail)
	}

	order, err = NormalizeOrder(map[string]any{"email": "generic@example.com"})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if order.NeteaseEmail != "generic@example.com" {
		t.Fatalf("netease email = %q, want generic fallback", order.NeteaseEmail)
	}
}

func TestNormalizeOrderInfersOrderType(t *testing.T) {
	order, _ := NormalizeOrder(map[string]any{"uid": "42"})
	if order.OrderType != OrderTypeUID {
		t.Fatalf("order type = %q, want uid", order.OrderType)
	}

	order, _ = NormalizeOrder(map[string]any{"neteaseEmail": "a@b.c"})
	if order.OrderType != OrderTypeInGame {
		t.Fatalf("order type = %q, want ingame", order.OrderType)
	}
}

func TestRecordWritesCanonicalStatus(t *testing.T) {
	order, err := NormalizeOrder(map[string]any{
		"product": "70 gems",
		"status":  "approved",
		"price":   float64(180),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	rec := order.Record()
	if rec["status"] != "completed" {
		t.Fatalf("record status = %v, want canonical completed", rec["status"])
	}
	if rec["price"] != float64(180) {
		t.Fatalf("record price = %v", rec["price"])
	}
	if _, ok := rec["uid"]; ok {
		t.Fatalf("empty uid should be omitted from record")
	}
}

func TestNormalizeRecordRoundTrip(t *testing.T) {
	original := map[string]any{
		"id":        "order-1",
		"product":   "10x Ruby Keys",
		"price":     float64(1490),
		"cost":      float64(615.6),
		"status":    "pending",
		"timestamp": float64(1700000000000),
		"uid":       "9001",
	}

	order, err := NormalizeOrder(original)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	roundTripped, err := NormalizeOrder(order.Record())
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if roundTripped.Product != order.Product || roundTripped.Price != order.Price ||
		roundTripped.Cost != order.Cost || roundTripped.Status != order.Status ||
		roundTripped.UID != order.UID || roundTripped.Timestamp != order.Timestamp {
		t.Fatalf("round trip mismatch: %+v vs %+v", roundTripped, order)
	}
}

func TestDisplayProfitOverride(t *testing.T) {
	order := Order{Price: 207, Cost: 102.3}
	if order.DisplayProfit() != order.DerivedProfit() {
		t.Fatalf("display profit should fall back to derived when no override")
	}

	order.Profit = 50
	if order.DisplayProfit() != 50 {
		t.Fatalf("display profit = %v, want override 50", order.DisplayProfit())
	}
	if order.DerivedProfit() != 207-102.3 {
		t.Fatalf("derived profit must ignore override")
	}
}

func TestTerminalStatuses(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatalf("pending must not be terminal")
	}
	if !StatusFulfilled.Terminal() || !StatusRejected.Terminal() {
		t.Fatalf("completed and rejected must be terminal")
	}
}

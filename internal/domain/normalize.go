package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinel defaults substituted for absent optional fields.
const (
	UnknownProduct       = "Unknown Product"
	UnknownCustomerName  = "Unknown Customer"
	UnknownCustomerEmail = "unknown@temp.com"
)

// ValidationError marks a raw record field the normalizer refused to accept.
// A record rejected this way never aborts processing of the rest of a
// collection; callers skip the record and carry on.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order field %q: %s", e.Field, e.Reason)
}

// NormalizeOrder converts a raw record from the order store into a canonical
// Order. Missing optional fields get defaults; vendor-specific credential
// fields (neteaseEmail, neteasePassword) win over the generic email/password
// fallbacks when both are present. Negative or non-finite price/cost values
// fail with a ValidationError. The function has no side effects.
func NormalizeOrder(raw map[string]any) (Order, error) {
	price, err := moneyField(raw, "price")
	if err != nil {
		return Order{}, err
	}
	cost, err := moneyField(raw, "cost")
	if err != nil {
		return Order{}, err
	}
	basePrice, err := moneyField(raw, "basePrice")
	if err != nil {
		return Order{}, err
	}
	tax, err := moneyField(raw, "tax")
	if err != nil {
		return Order{}, err
	}

	statusRaw := strings.TrimSpace(stringField(raw, "status"))
	status := StatusPending
	if statusRaw != "" {
		parsed, ok := ParseStatus(statusRaw)
		if !ok {
			return Order{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", statusRaw)}
		}
		status = parsed
	}

	order := Order{
		ID:              stringField(raw, "id"),
		Product:         defaultString(stringField(raw, "product"), UnknownProduct),
		BasePrice:       basePrice,
		Tax:             tax,
		Price:           price,
		Cost:            cost,
		Profit:          numberOrZero(raw, "profit"),
		Status:          status,
		Timestamp:       intField(raw, "timestamp"),
		Date:            stringField(raw, "date"),
		OrderType:       stringField(raw, "orderType"),
		UID:             stringField(raw, "uid"),
		NeteaseEmail:    stringField(raw, "neteaseEmail", "email"),
		NeteasePassword: stringField(raw, "neteasePassword", "password"),
		CustomerName:    defaultString(stringField(raw, "customerName"), UnknownCustomerName),
		CustomerEmail:   defaultString(stringField(raw, "customerEmail"), UnknownCustomerEmail),
		CustomerPhone:   stringField(raw, "customerPhone"),
		TransactionID:   stringField(raw, "transactionId"),
		PaymentMethod:   stringField(raw, "paymentMethod"),
		BkashLastDigits: stringField(raw, "bkashLastDigits"),
	}

	if order.OrderType == "" {
		if order.UID != "" {
			order.OrderType = OrderTypeUID
		} else if order.NeteaseEmail != "" {
			order.OrderType = OrderTypeInGame
		}
	}

	return order, nil
}

// Record serializes the order back into the store's patch format. The
// canonical status spelling is always written, regardless of which alias the
// record originally carried.
func (o Order) Record() map[string]any {
	rec := map[string]any{
		"product":   o.Product,
		"price":     o.Price,
		"cost":      o.Cost,
		"profit":    o.Profit,
		"status":    string(o.Status),
		"timestamp": o.Timestamp,
	}

	putNonZero := func(key string, value any) {
		switch v := value.(type) {
		case string:
			if v != "" {
				rec[key] = v
			}
		case float64:
			if v != 0 {
				rec[key] = v
			}
		}
	}

	putNonZero("id", o.ID)
	putNonZero("basePrice", o.BasePrice)
	putNonZero("tax", o.Tax)
	putNonZero("date", o.Date)
	putNonZero("orderType", o.OrderType)
	putNonZero("uid", o.UID)
	putNonZero("neteaseEmail", o.NeteaseEmail)
	putNonZero("neteasePassword", o.NeteasePassword)
	putNonZero("customerName", o.CustomerName)
	putNonZero("customerEmail", o.CustomerEmail)
	putNonZero("customerPhone", o.CustomerPhone)
	putNonZero("transactionId", o.TransactionID)
	putNonZero("paymentMethod", o.PaymentMethod)
	putNonZero("bkashLastDigits", o.BkashLastDigits)

	return rec
}

// moneyField reads a monetary field. Absent or unparseable values become 0;
// explicitly negative or non-finite numbers are rejected.
func moneyField(raw map[string]any, key string) (float64, error) {
	value, present, parsed := numberField(raw, key)
	if !present {
		return 0, nil
	}
	if !parsed {
		return 0, nil
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ValidationError{Field: key, Reason: "value is not finite"}
	}
	if value < 0 {
		return 0, &ValidationError{Field: key, Reason: "value must not be negative"}
	}
	return value, nil
}

func numberOrZero(raw map[string]any, key string) float64 {
	value, _, parsed := numberField(raw, key)
	if !parsed || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// numberField extracts a numeric value from the loosely-typed record,
// tolerating the mix of float, integer, json.Number and stringified numbers
// that legacy records contain.
func numberField(raw map[string]any, key string) (value float64, present bool, parsed bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false, false
	}
	switch n := v.(type) {
	case float64:
		return n, true, true
	case float32:
		return float64(n), true, true
	case int:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, true, false
		}
		return f, true, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, true, false
		}
		return f, true, true
	default:
		return 0, true, false
	}
}

func intField(raw map[string]any, key string) int64 {
	value, _, parsed := numberField(raw, key)
	if !parsed || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return int64(value)
}

// stringField returns the first non-empty string among the given keys.
// Key order encodes alias preference.
func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

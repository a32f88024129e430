package domain

import "time"

// OrderStatus is the canonical lifecycle state of an order. Historical
// records spell the fulfilled state either "approved" or "completed";
// ParseStatus accepts both, Record always writes the canonical spelling.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFulfilled OrderStatus = "completed"
	StatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether no further status transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == StatusFulfilled || s == StatusRejected
}

var statusAliases = map[string]OrderStatus{
	"pending":   StatusPending,
	"approved":  StatusFulfilled,
	"completed": StatusFulfilled,
	"rejected":  StatusRejected,
}

// ParseStatus maps a stored status string to its canonical value.
func ParseStatus(raw string) (OrderStatus, bool) {
	status, ok := statusAliases[raw]
	return status, ok
}

const (
	OrderTypeUID    = "uid"
	OrderTypeInGame = "ingame"
)

// Order is one customer top-up purchase request. JSON field names match the
// record keys used by the hosted order store so existing records decode
// unchanged.
type Order struct {
	ID              string      `json:"id"`
	Product         string      `json:"product"`
	BasePrice       float64     `json:"basePrice,omitempty"`
	Tax             float64     `json:"tax,omitempty"`
	Price           float64     `json:"price"`
	Cost            float64     `json:"cost"`
	Profit          float64     `json:"profit"`
	Status          OrderStatus `json:"status"`
	Timestamp       int64       `json:"timestamp"`
	Date            string      `json:"date,omitempty"`
	OrderType       string      `json:"orderType,omitempty"`
	UID             string      `json:"uid,omitempty"`
	NeteaseEmail    string      `json:"neteaseEmail,omitempty"`
	NeteasePassword string      `json:"neteasePassword,omitempty"`
	CustomerName    string      `json:"customerName"`
	CustomerEmail   string      `json:"customerEmail"`
	CustomerPhone   string      `json:"customerPhone,omitempty"`
	TransactionID   string      `json:"transactionId,omitempty"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	BkashLastDigits string      `json:"bkashLastDigits,omitempty"`
}

// DerivedProfit is price minus cost. Aggregate math always uses this value;
// the stored Profit field is a display-only admin override.
func (o Order) DerivedProfit() float64 {
	return o.Price - o.Cost
}

// DisplayProfit prefers a non-zero stored override over the derived value.
func (o Order) DisplayProfit() float64 {
	if o.Profit != 0 {
		return o.Profit
	}
	return o.DerivedProfit()
}

// CreatedAt converts the millisecond timestamp to a time.Time.
func (o Order) CreatedAt() time.Time {
	return time.UnixMilli(o.Timestamp)
}

// Statement is the immutable historical record written exactly once when an
// order is fulfilled. Statements survive deletion of their originating order.
type Statement struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	UID       string  `json:"uid,omitempty"`
	Product   string  `json:"product"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	Profit    float64 `json:"profit"`
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
}

// Stats is the dashboard aggregate over a set of orders. It is recomputed on
// every read and never persisted.
type Stats struct {
	TotalOrders     int     `json:"totalOrders"`
	PendingOrders   int     `json:"pendingOrders"`
	FulfilledOrders int     `json:"completedOrders"`
	RejectedOrders  int     `json:"rejectedOrders"`
	TotalRevenue    float64 `json:"totalRevenue"`
	TotalCost       float64 `json:"totalCost"`
	TotalProfit     float64 `json:"totalProfit"`
	SpentToday      float64 `json:"spentToday"`
	MonthlySpending float64 `json:"monthlySpending"`
}

// ProductStats is one row of the per-product profit breakdown.
type ProductStats struct {
	Product       string  `json:"product"`
	Count         int     `json:"count"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalCost     float64 `json:"totalCost"`
	TotalProfit   float64 `json:"totalProfit"`
	AverageProfit float64 `json:"averageProfit"`
	ProfitMargin  float64 `json:"profitMargin"`
	ROI           float64 `json:"roi"`
}

// Overview summarizes the statement history for the total-overview dashboard.
type Overview struct {
	TotalOrders      int     `json:"totalOrders"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalSpending    float64 `json:"totalSpending"`
	TotalProfit      float64 `json:"totalProfit"`
	ProfitMargin     float64 `json:"profitMargin"`
	ROI              float64 `json:"roi"`
	AvgOrderValue    float64 `json:"avgOrderValue"`
	TodayProfit      float64 `json:"todayProfit"`
	WeeklyProfit     float64 `json:"weeklyProfit"`
	MonthlyProfit    float64 `json:"monthlyProfit"`
	TopProduct       string  `json:"topProduct"`
	TopProductProfit float64 `json:"topProductProfit"`
}

// Package is one purchasable top-up bundle from the storefront catalog.
type Package struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Cost     float64 `json:"cost"`
	Category string  `json:"category"`
}

// ConversionResult is the outcome of a fixed-rate BDT/USD conversion.
type ConversionResult struct {
	AmountUSD float64 `json:"amountUsd"`
	AmountBDT float64 `json:"amountBdt"`
	Rate      float64 `json:"rate"`
}

// OrderSubmitRequest is the storefront checkout payload. Price and cost are
// looked up server-side from the package catalog, never trusted from the
// client.
type OrderSubmitRequest struct {
	Product         string `json:"product"`
	UID             string `json:"uid"`
	NeteaseEmail    string `json:"neteaseEmail"`
	NeteasePassword string `json:"neteasePassword"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	TransactionID   string `json:"transactionId"`
	BkashLastDigits string `json:"bkashLastDigits"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"gemtopup/backend/internal/cache"
	"gemtopup/backend/internal/domain"
	"gemtopup/backend/internal/stats"
	"gemtopup/backend/internal/store"
	"gemtopup/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// TaxRate is applied to a package's base price when an order is submitted
// through the storefront checkout.
const TaxRate = 0.15

// BDTPerUSD is the fixed conversion rate used by the currency helper.
const BDTPerUSD = 107.0

const statsCacheKey = "stats:dashboard"

// InvalidTransitionError reports a lifecycle action that is not permitted
// from the order's current status.
type InvalidTransitionError struct {
	OrderID string
	From    domain.OrderStatus
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s order %s in status %q", e.Action, e.OrderID, e.From)
}

type Service struct {
	repo     store.Repository
	cache    cache.StatsCache
	statsTTL time.Duration
}

func New(repo store.Repository, statsCache cache.StatsCache, statsTTL time.Duration) *Service {
	if statsCache == nil {
		statsCache = cache.NoopStatsCache{}
	}
	if statsTTL < time.Second {
		statsTTL = 20 * time.Second
	}

	return &Service{
		repo:     repo,
		cache:    statsCache,
		statsTTL: statsTTL,
	}
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) WatchOrders(ctx context.Context) (<-chan []domain.Order, error) {
	return s.repo.WatchOrders(ctx)
}

// RecordOrder ingests a raw order record, typically replayed from an export
// of the hosted order store. The record is normalized before persisting.
func (s *Service) RecordOrder(ctx context.Context, raw map[string]any) (domain.Order, error) {
	order, err := domain.NormalizeOrder(raw)
	if err != nil {
		return domain.Order{}, err
	}

	if order.ID == "" {
		order.ID = xid.New("order")
	}
	now := time.Now().UTC()
	if order.Timestamp == 0 {
		order.Timestamp = now.UnixMilli()
	}
	if order.Date == "" {
		order.Date = time.UnixMilli(order.Timestamp).UTC().Format("1/2/2006")
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "order_record", "order", created.ID, fmt.Sprintf("product=%s,status=%s", created.Product, created.Status))
	return *created, nil
}

// SubmitOrder places a new storefront order after bKash payment entry. The
// price is the catalog base price plus tax; cost comes from the catalog and
// is never client-supplied.
func (s *Service) SubmitOrder(ctx context.Context, req domain.OrderSubmitRequest) (domain.Order, error) {
	req.Product = strings.TrimSpace(req.Product)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.UID = strings.TrimSpace(req.UID)
	req.NeteaseEmail = strings.TrimSpace(req.NeteaseEmail)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	if req.Product == "" {
		return domain.Order{}, &domain.ValidationError{Field: "product", Reason: "required"}
	}
	if req.TransactionID == "" {
		return domain.Order{}, &domain.ValidationError{Field: "transactionId", Reason: "required"}
	}
	if req.UID == "" && req.NeteaseEmail == "" {
		return domain.Order{}, &domain.ValidationError{Field: "uid", Reason: "uid or netease credentials required"}
	}
	if req.NeteaseEmail != "" && req.NeteasePassword == "" {
		return domain.Order{}, &domain.ValidationError{Field: "neteasePassword", Reason: "required with neteaseEmail"}
	}

	pkg, err := s.findPackage(ctx, req.Product)
	if err != nil {
		return domain.Order{}, err
	}

	orderType := domain.OrderTypeUID
	if req.UID == "" {
		orderType = domain.OrderTypeInGame
	}

	if req.CustomerName == "" {
		req.CustomerName = domain.UnknownCustomerName
	}
	if req.CustomerEmail == "" {
		req.CustomerEmail = strings.ToLower(strings.ReplaceAll(req.CustomerName, " ", "")) + "@temp.com"
	}

	now := time.Now().UTC()
	tax := math.Round(pkg.Price*TaxRate*100) / 100
	order := domain.Order{
		ID:              xid.New("order"),
		Product:         pkg.Name,
		BasePrice:       pkg.Price,
		Tax:             tax,
		Price:           pkg.Price + tax,
		Cost:            pkg.Cost,
		Status:          domain.StatusPending,
		Timestamp:       now.UnixMilli(),
		Date:            now.Format("1/2/2006"),
		OrderType:       orderType,
		UID:             req.UID,
		NeteaseEmail:    req.NeteaseEmail,
		NeteasePassword: req.NeteasePassword,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		TransactionID:   req.TransactionID,
		PaymentMethod:   "bkash",
		BkashLastDigits: strings.TrimSpace(req.BkashLastDigits),
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "order_submit", "order", created.ID, fmt.Sprintf("product=%s,price=%.2f", created.Product, created.Price))
	return *created, nil
}

// ApproveOrder fulfills a pending order and writes its statement. Approving
// an already-fulfilled order is a no-op that returns the stored order
// unchanged; the statement is never written twice. Approving a rejected
// order fails.
func (s *Service) ApproveOrder(ctx context.Context, id string) (domain.Order, error) {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	switch existing.Status {
	case domain.StatusFulfilled:
		return *existing, nil
	case domain.StatusRejected:
		return domain.Order{}, &InvalidTransitionError{OrderID: id, From: existing.Status, Action: "approve"}
	}

	updated := *existing
	updated.Status = domain.StatusFulfilled
	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	statement := domain.Statement{
		ID:        xid.New("stmt"),
		OrderID:   saved.ID,
		UID:       saved.UID,
		Product:   saved.Product,
		Price:     saved.Price,
		Cost:      saved.Cost,
		Profit:    saved.DerivedProfit(),
		Type:      "sale",
		Timestamp: now.UnixMilli(),
		Date:      now.Format("1/2/2006"),
	}
	if _, err := s.repo.CreateStatement(ctx, statement); err != nil {
		log.Printf("[service] WARN: failed to write statement for order %s: %v", saved.ID, err)
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "order_approve", "order", saved.ID, fmt.Sprintf("product=%s,profit=%.2f", saved.Product, saved.DerivedProfit()))
	return *saved, nil
}

// RejectOrder marks a pending order rejected. Rejecting an already-rejected
// order is a no-op; rejecting a fulfilled order fails.
func (s *Service) RejectOrder(ctx context.Context, id string) (domain.Order, error) {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	switch existing.Status {
	case domain.StatusRejected:
		return *existing, nil
	case domain.StatusFulfilled:
		return domain.Order{}, &InvalidTransitionError{OrderID: id, From: existing.Status, Action: "reject"}
	}

	updated := *existing
	updated.Status = domain.StatusRejected
	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "order_reject", "order", saved.ID, "")
	return *saved, nil
}

// DeleteOrder removes an order in any status. Statements written for the
// order are historical records and survive the deletion.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "order_delete", "order", id, "")
	return nil
}

// CorrectProfit stores a manual profit override on the order. The override
// affects only the displayed per-order profit; aggregate totals keep using
// price minus cost.
func (s *Service) CorrectProfit(ctx context.Context, id string, profit float64) (domain.Order, error) {
	if math.IsNaN(profit) || math.IsInf(profit, 0) {
		return domain.Order{}, &domain.ValidationError{Field: "profit", Reason: "must be a finite number"}
	}

	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	updated := *existing
	updated.Profit = profit
	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_correct_profit", "order", saved.ID, fmt.Sprintf("profit=%.2f", profit))
	return *saved, nil
}

// ComputeStats returns the dashboard aggregate, served from cache when a
// fresh enough copy exists.
func (s *Service) ComputeStats(ctx context.Context) (domain.Stats, error) {
	if cached, ok, err := s.cache.Get(ctx, statsCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: stats cache read failed: %v", err)
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	computed := stats.Compute(orders, time.Now().UTC())
	if err := s.cache.Set(ctx, statsCacheKey, &computed, s.statsTTL); err != nil {
		log.Printf("[service] WARN: stats cache write failed: %v", err)
	}
	return computed, nil
}

func (s *Service) ProductBreakdown(ctx context.Context) ([]domain.ProductStats, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return stats.ProductBreakdown(orders), nil
}

func (s *Service) WindowProfit(ctx context.Context, window stats.Window) (float64, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return 0, err
	}
	return stats.WindowProfit(orders, window, time.Now().UTC()), nil
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	statements, err := s.repo.ListStatements(ctx, 0)
	if err != nil {
		return domain.Overview{}, err
	}
	return stats.Overview(statements, time.Now().UTC()), nil
}

func (s *Service) ListStatements(ctx context.Context, limit int) ([]domain.Statement, error) {
	return s.repo.ListStatements(ctx, limit)
}

// ClearStatements wipes the statement history. Admin-only, audited.
func (s *Service) ClearStatements(ctx context.Context) (int, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return 0, fmt.Errorf("admin role required")
	}

	removed, err := s.repo.DeleteAllStatements(ctx)
	if err != nil {
		return 0, err
	}

	s.logAudit(ctx, "statements_clear", "statement", "all", fmt.Sprintf("removed=%d", removed))
	return removed, nil
}

func (s *Service) ListPackages(ctx context.Context) ([]domain.Package, error) {
	return s.repo.ListPackages(ctx)
}

// Convert converts between BDT and USD at the fixed storefront rate. The
// currency argument names the unit of the input amount.
func (s *Service) Convert(amount float64, currency string) (domain.ConversionResult, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return domain.ConversionResult{}, &domain.ValidationError{Field: "amount", Reason: "must be a non-negative finite number"}
	}

	result := domain.ConversionResult{Rate: BDTPerUSD}
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "bdt":
		result.AmountBDT = amount
		result.AmountUSD = math.Round(amount/BDTPerUSD*100) / 100
	case "usd":
		result.AmountUSD = amount
		result.AmountBDT = math.Round(amount*BDTPerUSD*100) / 100
	default:
		return domain.ConversionResult{}, &domain.ValidationError{Field: "currency", Reason: "must be bdt or usd"}
	}
	return result, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) findPackage(ctx context.Context, product string) (domain.Package, error) {
	packages, err := s.repo.ListPackages(ctx)
	if err != nil {
		return domain.Package{}, err
	}
	for _, pkg := range packages {
		if pkg.Name == product {
			return pkg, nil
		}
	}
	return domain.Package{}, &domain.ValidationError{Field: "product", Reason: "unknown package"}
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache invalidation failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gemtopup/backend/internal/domain"
	"gemtopup/backend/internal/store"
	"gemtopup/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	ordersByID      map[string]domain.Order
	statementsByID  map[string]domain.Statement
	packages        []domain.Package
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	watchers        map[chan []domain.Order]struct{}
}

// seedUsers builds the initial in-memory admin account for dev/demo mode.
// The credential is read from the SEED_ADMIN_PASSWORD environment variable.
// If unset, a hardcoded dev default is used with a warning printed to
// stdout. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password for admin: %v", err)
	}

	return map[string]domain.UserAccount{
		"admin": {
			Username:  "admin",
			Password:  string(hash),
			Role:      "admin",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	packages := []domain.Package{
		{Name: "70 gems", Price: 180, Cost: 102.3, Category: "uid"},
		{Name: "140 gems", Price: 480, Cost: 206.8, Category: "uid"},
		{Name: "210 gems", Price: 600, Cost: 311.3, Category: "uid"},
		{Name: "350 gems", Price: 1000, Cost: 520.3, Category: "uid"},
		{Name: "700 gems", Price: 2650, Cost: 1017.5, Category: "uid"},
		{Name: "1000 gems", Price: 3700, Cost: 1461.9, Category: "uid"},
		{Name: "1400 gems", Price: 4800, Cost: 2063.6, Category: "uid"},
		{Name: "2100 gems", Price: 5900, Cost: 3164.7, Category: "uid"},
		{Name: "3400 gems", Price: 9000, Cost: 4940.1, Category: "uid"},
		{Name: "6600 gems", Price: 14500, Cost: 9542.5, Category: "uid"},
		{Name: "Monthly Card", Price: 850, Cost: 233.2, Category: "uid"},
		{Name: "Master Pass", Price: 1050, Cost: 233.2, Category: "uid"},
		{Name: "Growth Fund", Price: 1600, Cost: 651.2, Category: "uid"},
		{Name: "Value Outfit", Price: 170, Cost: 102.3, Category: "uid"},
		{Name: "10x Ruby Keys", Price: 1490, Cost: 615.6, Category: "ingame"},
		{Name: "20x Ruby Keys", Price: 2890, Cost: 1233.1, Category: "ingame"},
		{Name: "28x Ruby Keys", Price: 4180, Cost: 1803.1, Category: "ingame"},
		{Name: "40x Ruby Keys", Price: 6889, Cost: 2468.1, Category: "ingame"},
		{Name: "58x Ruby Keys", Price: 8700, Cost: 3703.1, Category: "ingame"},
		{Name: "85x Ruby Keys", Price: 11800, Cost: 5983.1, Category: "ingame"},
	}

	return &Store{
		ordersByID:      make(map[string]domain.Order),
		statementsByID:  make(map[string]domain.Statement),
		packages:        packages,
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
		watchers:        make(map[chan []domain.Order]struct{}),
	}
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ordersSnapshotLocked(), nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := order
	return &copyOrder, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if order.Timestamp == 0 {
		order.Timestamp = time.Now().UTC().UnixMilli()
	}

	s.ordersByID[order.ID] = order
	s.notifyWatchersLocked()
	created := order
	return &created, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[order.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.ordersByID[order.ID] = order
	s.notifyWatchersLocked()
	updated := order
	return &updated, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.ordersByID, id)
	s.notifyWatchersLocked()
	return nil
}

// WatchOrders registers a subscriber that receives a full order snapshot
// after every mutation. The channel has a buffer of one and sends are
// latest-wins: a slow consumer never blocks a writer, it just skips
// intermediate snapshots. The subscription ends when ctx is cancelled.
func (s *Store) WatchOrders(ctx context.Context) (<-chan []domain.Order, error) {
	ch := make(chan []domain.Order, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.ordersSnapshotLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *Store) CreateStatement(_ context.Context, statement domain.Statement) (*domain.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if statement.ID == "" {
		statement.ID = xid.New("stmt")
	}
	if statement.Timestamp == 0 {
		statement.Timestamp = time.Now().UTC().UnixMilli()
	}

	s.statementsByID[statement.ID] = statement
	created := statement
	return &created, nil
}

func (s *Store) ListStatements(_ context.Context, limit int) ([]domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Statement, 0, len(s.statementsByID))
	for _, statement := range s.statementsByID {
		result = append(result, statement)
	}
	slices.SortFunc(result, func(a, b domain.Statement) int {
		if a.Timestamp == b.Timestamp {
			return cmpString(b.ID, a.ID)
		}
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeleteAllStatements(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.statementsByID)
	s.statementsByID = make(map[string]domain.Statement)
	return removed, nil
}

func (s *Store) ListPackages(_ context.Context) ([]domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	packages := make([]domain.Package, len(s.packages))
	copy(packages, s.packages)
	return packages, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, len(s.auditLogs))
	copy(result, s.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "admin"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ordersSnapshotLocked() []domain.Order {
	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.Timestamp == b.Timestamp {
			return cmpString(b.ID, a.ID)
		}
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	})
	return orders
}

func (s *Store) notifyWatchersLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snapshot := s.ordersSnapshotLocked()
	for ch := range s.watchers {
		select {
		case ch <- snapshot:
		default:
			// drop the stale snapshot and replace it with the current one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gemtopup/backend/internal/domain"
	"gemtopup/backend/internal/store"
	"gemtopup/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const orderColumns = `
	id, product, base_price, tax, price, cost, profit, status, ts, date,
	order_type, uid, netease_email, netease_password,
	customer_name, customer_email, customer_phone,
	transaction_id, payment_method, bkash_last_digits
`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.Product, &o.BasePrice, &o.Tax, &o.Price, &o.Cost, &o.Profit,
		&status, &o.Timestamp, &o.Date,
		&o.OrderType, &o.UID, &o.NeteaseEmail, &o.NeteasePassword,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.TransactionID, &o.PaymentMethod, &o.BkashLastDigits,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if parsed, ok := domain.ParseStatus(status); ok {
		o.Status = parsed
	} else {
		o.Status = domain.OrderStatus(status)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY ts DESC, id DESC
	`)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 128)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapUnavailable(err)
	}
	return &order, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if order.Timestamp == 0 {
		order.Timestamp = time.Now().UTC().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		order.ID, order.Product, order.BasePrice, order.Tax, order.Price, order.Cost, order.Profit,
		string(order.Status), order.Timestamp, order.Date,
		order.OrderType, order.UID, order.NeteaseEmail, order.NeteasePassword,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.TransactionID, order.PaymentMethod, order.BkashLastDigits,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, wrapUnavailable(err)
	}

	created := order
	return &created, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET product = $2, base_price = $3, tax = $4, price = $5, cost = $6, profit = $7,
		    status = $8, ts = $9, date = $10,
		    order_type = $11, uid = $12, netease_email = $13, netease_password = $14,
		    customer_name = $15, customer_email = $16, customer_phone = $17,
		    transaction_id = $18, payment_method = $19, bkash_last_digits = $20
		WHERE id = $1
	`,
		order.ID, order.Product, order.BasePrice, order.Tax, order.Price, order.Cost, order.Profit,
		string(order.Status), order.Timestamp, order.Date,
		order.OrderType, order.UID, order.NeteaseEmail, order.NeteasePassword,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.TransactionID, order.PaymentMethod, order.BkashLastDigits,
	)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return wrapUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// WatchOrders polls the orders table and pushes a full snapshot whenever the
// result set changes. The channel has a buffer of one and sends are
// latest-wins, matching the in-memory store's subscription semantics.
func (s *Store) WatchOrders(ctx context.Context) (<-chan []domain.Order, error) {
	initial, err := s.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan []domain.Order, 1)
	ch <- initial

	go func() {
		defer close(ch)
		last := initial
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			orders, err := s.ListOrders(ctx)
			if err != nil {
				continue
			}
			if ordersEqual(last, orders) {
				continue
			}
			last = orders
			select {
			case ch <- orders:
			default:
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- orders:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func (s *Store) CreateStatement(ctx context.Context, statement domain.Statement) (*domain.Statement, error) {
	if statement.ID == "" {
		statement.ID = xid.New("stmt")
	}
	if statement.Timestamp == 0 {
		statement.Timestamp = time.Now().UTC().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statements (id, order_id, uid, product, price, cost, profit, type, ts, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, statement.ID, statement.OrderID, statement.UID, statement.Product,
		statement.Price, statement.Cost, statement.Profit,
		statement.Type, statement.Timestamp, statement.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, wrapUnavailable(err)
	}

	created := statement
	return &created, nil
}

func (s *Store) ListStatements(ctx context.Context, limit int) ([]domain.Statement, error) {
	query := `
		SELECT id, order_id, uid, product, price, cost, profit, type, ts, date
		FROM statements
		ORDER BY ts DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	statements := make([]domain.Statement, 0, 128)
	for rows.Next() {
		var st domain.Statement
		if err := rows.Scan(&st.ID, &st.OrderID, &st.UID, &st.Product,
			&st.Price, &st.Cost, &st.Profit, &st.Type, &st.Timestamp, &st.Date); err != nil {
			return nil, err
		}
		statements = append(statements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return statements, nil
}

func (s *Store) DeleteAllStatements(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM statements`)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) ListPackages(ctx context.Context) ([]domain.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, price, cost, category
		FROM packages
		ORDER BY category, price
	`)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	packages := make([]domain.Package, 0, 32)
	for rows.Next() {
		var p domain.Package
		if err := rows.Scan(&p.Name, &p.Price, &p.Cost, &p.Category); err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "admin"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return wrapUnavailable(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return wrapUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func ordersEqual(a, b []domain.Order) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// wrapUnavailable maps connection-level failures to ErrUnavailable so
// callers can distinguish an unreachable database from a bad query.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(store.ErrUnavailable, err)
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "connection refused") {
		return errors.Join(store.ErrUnavailable, err)
	}
	return err
}

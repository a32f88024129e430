package store

import (
	"context"
	"errors"

	"gemtopup/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("store unavailable")
)

type Repository interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	WatchOrders(ctx context.Context) (<-chan []domain.Order, error)
	CreateStatement(ctx context.Context, statement domain.Statement) (*domain.Statement, error)
	ListStatements(ctx context.Context, limit int) ([]domain.Statement, error)
	DeleteAllStatements(ctx context.Context) (int, error)
	ListPackages(ctx context.Context) ([]domain.Package, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

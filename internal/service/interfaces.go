package service

import (
	"context"
	"time"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(password string, hashedPassword string) bool
}

type AccountRepository interface {
	Create(ctx context.Context, args repoargs.CreateAccount) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
	// AdjustCoins атомарно применяет дельту к балансу. Контракт: условный UPDATE
	// с проверкой `coins_balance + delta >= 0` на стороне хранилища, никаких
	// read-modify-write. Возвращает domain.ErrInsufficientFunds или
	// domain.ErrAccountNotFound.
	AdjustCoins(ctx context.Context, accountID int64, delta int64) (*domain.Account, error)
	SetTransferOverride(ctx context.Context, accountID int64, sendBlocked, receiveBlocked bool) (*domain.Account, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error)
	GetByAccountID(ctx context.Context, accountID int64, limit uint) ([]domain.Transaction, error)
}

type VideoRepository interface {
	Create(ctx context.Context, args repoargs.VideoCreate) (*domain.Video, error)
	FindByID(ctx context.Context, id int64) (*domain.Video, error)
	List(ctx context.Context, limit uint) ([]domain.Video, error)
}

type WatchRecordRepository interface {
	Upsert(ctx context.Context, args repoargs.UpsertWatchProgress) (*domain.VideoWatchRecord, error)
	AddCoins(ctx context.Context, id int64, delta int64, completed bool) (*domain.VideoWatchRecord, error)
	FindByAccountAndVideo(ctx context.Context, accountID, videoID int64) (*domain.VideoWatchRecord, error)
}

type ProductRepository interface {
	Create(ctx context.Context, args repoargs.ProductCreate) (*domain.Product, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	ListPublished(ctx context.Context, limit uint) ([]domain.Product, error)
	DecrementStock(ctx context.Context, productID int64, qty int32) error
	SetPublication(ctx context.Context, productID int64, published bool, currentSubscriptionID *int64) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, args repoargs.SubscriptionCreate) (*domain.ProductSubscription, error)
	FindByID(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	GetByVendor(ctx context.Context, vendorID int64) ([]domain.ProductSubscription, error)
	Activate(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	Cancel(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	GetDueForExpiry(ctx context.Context, now time.Time, limit uint) ([]domain.ProductSubscription, error)
	MarkExpired(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	MarkNotified(ctx context.Context, id int64) (bool, error)
	GetExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.ProductSubscription, error)
}

type OrderRepository interface {
	Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	GetByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
}

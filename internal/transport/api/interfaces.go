package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/internal/service"
)

// UserServicer и прочие *Servicer - срезы сервисного слоя для хендлеров и моков.
type UserServicer interface {
	Register(ctx context.Context, args service.RegisterAccountArgs) (*domain.Account, string, error)
	Login(ctx context.Context, args service.LoginAccountArgs) (*domain.Account, string, error)
}

type LedgerServicer interface {
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	GetTransactions(ctx context.Context, accountID int64, limit uint) ([]domain.Transaction, error)
	SetTransferOverride(
		ctx context.Context,
		accountID int64,
		sendBlocked, receiveBlocked bool,
	) (*domain.Account, error)
}

type RewardServicer interface {
	ReportProgress(ctx context.Context, accountID, videoID int64, watchedSeconds int32) (*service.ProgressResult, error)
	GetProgress(ctx context.Context, accountID, videoID int64) (*domain.VideoWatchRecord, error)
	CreateVideo(ctx context.Context, args repoargs.VideoCreate) (*domain.Video, error)
	ListVideos(ctx context.Context, limit uint) ([]domain.Video, error)
}

type SettlementServicer interface {
	SettlePurchase(
		ctx context.Context,
		buyerID int64,
		idempotencyKey string,
		items []service.LineItem,
	) (*domain.Order, error)
	DistributeCoins(
		ctx context.Context,
		fromAccountID int64,
		toEmail string,
		amount int64,
		description string,
	) (*service.DistributionResult, error)
	GetOrders(ctx context.Context, buyerID int64) ([]domain.Order, error)
	CreateProduct(ctx context.Context, args repoargs.ProductCreate) (*domain.Product, error)
	ListProducts(ctx context.Context, limit uint) ([]domain.Product, error)
}

type SubscriptionServicer interface {
	Create(
		ctx context.Context,
		vendorID, productID int64,
		startDate time.Time,
		days int32,
	) (*domain.ProductSubscription, error)
	Activate(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	Cancel(ctx context.Context, id int64, byVendorID *int64) (*domain.ProductSubscription, error)
	Renew(ctx context.Context, vendorID, previousID int64, days int32) (*domain.ProductSubscription, error)
	GetByVendor(ctx context.Context, vendorID int64) ([]domain.ProductSubscription, error)
}

package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/transport/api/middlewares"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	RouteGroup                 = "/api"
	RegisterRoute              = "/user/register"
	LoginRoute                 = "/user/login"
	BalanceRoute               = "/user/balance"
	TransactionsRoute          = "/user/transactions"
	VideosRoute                = "/videos"
	VideoProgressRoute         = "/videos/:id/progress"
	ProductsRoute              = "/products"
	OrdersRoute                = "/orders"
	DistributeRoute            = "/coins/distribute"
	TransferOverrideRoute      = "/accounts/:id/transfer-override"
	SubscriptionsRoute         = "/subscriptions"
	SubscriptionConfirmRoute   = "/subscriptions/:id/confirm"
	SubscriptionCancelRoute    = "/subscriptions/:id/cancel"
	SubscriptionRenewRoute     = "/subscriptions/:id/renew"
)

type RouterArgs struct {
	Logger              *logrus.Logger
	UserService         UserServicer
	LedgerService       LedgerServicer
	RewardService       RewardServicer
	SettlementService   SettlementServicer
	SubscriptionService SubscriptionServicer
	JWTSecretKey        []byte
}

func New(args RouterArgs) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	authHandler := NewAuthHandler(args.UserService)
	balanceHandler := NewBalanceHandler(args.LedgerService)
	videosHandler := NewVideosHandler(args.RewardService)
	ordersHandler := NewOrdersHandler(args.SettlementService)
	distributionHandler := NewDistributionHandler(args.SettlementService, args.LedgerService)
	subscriptionsHandler := NewSubscriptionsHandler(args.SubscriptionService)

	api := r.Group(RouteGroup)

	api.POST(RegisterRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Register)
	api.POST(LoginRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Login)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(TransactionsRoute, balanceHandler.Transactions)

	api.GET(VideosRoute, videosHandler.Index)
	api.POST(VideosRoute, middlewares.RoleRequired(domain.RoleAdmin, domain.RoleSubAdmin), videosHandler.Create)
	api.POST(VideoProgressRoute, videosHandler.ReportProgress)

	api.GET(ProductsRoute, ordersHandler.Products)
	api.POST(ProductsRoute, middlewares.RoleRequired(domain.RoleVendor), ordersHandler.CreateProduct)
	api.POST(OrdersRoute, ordersHandler.Create)
	api.GET(OrdersRoute, ordersHandler.Index)

	api.POST(DistributeRoute,
		middlewares.RoleRequired(domain.RoleAdmin, domain.RoleSubAdmin), distributionHandler.Distribute)
	api.POST(TransferOverrideRoute,
		middlewares.RoleRequired(domain.RoleAdmin), distributionHandler.SetTransferOverride)

	api.GET(SubscriptionsRoute,
		middlewares.RoleRequired(domain.RoleVendor), subscriptionsHandler.Index)
	api.POST(SubscriptionsRoute,
		middlewares.RoleRequired(domain.RoleVendor), subscriptionsHandler.Create)
	api.POST(SubscriptionConfirmRoute,
		middlewares.RoleRequired(domain.RoleAdmin, domain.RoleSubAdmin), subscriptionsHandler.Confirm)
	api.POST(SubscriptionCancelRoute,
		middlewares.RoleRequired(domain.RoleAdmin, domain.RoleVendor), subscriptionsHandler.Cancel)
	api.POST(SubscriptionRenewRoute,
		middlewares.RoleRequired(domain.RoleVendor), subscriptionsHandler.Renew)

	return r
}

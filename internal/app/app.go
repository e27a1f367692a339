package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vidmarket/coinledger/internal/config"
	"github.com/vidmarket/coinledger/internal/notifier"
	"github.com/vidmarket/coinledger/internal/repository/pgrepo"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/internal/scheduler"
	"github.com/vidmarket/coinledger/internal/service"
	"github.com/vidmarket/coinledger/internal/transport/api"
	"github.com/vidmarket/coinledger/pkg/uow"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Infof("Starting app on %s", a.Config.RunAddress)
	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork := initUOW(conn)

	price, priceErr := decimal.NewFromString(a.Config.SubscriptionPricePerImageDay)
	if priceErr != nil {
		return fmt.Errorf("app run: parsing subscription price: %s", priceErr.Error())
	}

	services, sErr := service.Factory(unitOfWork, service.FactoryArgs{
		JWTSecret:        []byte(a.Config.JWTUserSecret),
		PricePerImageDay: price,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	if a.Config.AdminEmail != "" {
		if _, adminErr := services.UserService.EnsureAdmin(
			notifyCtx, a.Config.AdminEmail, a.Config.AdminPassword,
		); adminErr != nil {
			return fmt.Errorf("app run: %s", adminErr.Error())
		}
	}

	router := api.New(api.RouterArgs{
		Logger:              a.Logger,
		UserService:         services.UserService,
		LedgerService:       services.LedgerService,
		RewardService:       services.RewardService,
		SettlementService:   services.SettlementService,
		SubscriptionService: services.SubscriptionService,
		JWTSecretKey:        []byte(a.Config.JWTUserSecret),
	})

	errChan := make(chan error, 1)

	go func() {
		if runErr := router.Run(a.Config.RunAddress); runErr != nil {
			errChan <- runErr
		}
	}()

	accountDirectory, dirErr := uow.GetRepositoryAs[scheduler.AccountDirectory](
		unitOfWork, uow.RepositoryName(repoargs.AccountRepoName))
	if dirErr != nil {
		return fmt.Errorf("app run: %s", dirErr.Error())
	}

	sched := scheduler.New(
		services.SubscriptionService,
		accountDirectory,
		a.buildNotifier(),
		a.Logger,
	)
	go sched.Run(notifyCtx)

	select {
	case <-notifyCtx.Done():
		return notifyCtx.Err() //nolint:wrapcheck
	case err := <-errChan:
		return err
	}
}

func (a *App) buildNotifier() notifier.Notifier {
	if a.Config.SMTPHost == "" {
		return notifier.NewLogNotifier(a.Logger)
	}
	return notifier.NewSMTPNotifier(notifier.SMTPConfig{
		Host:     a.Config.SMTPHost,
		Port:     a.Config.SMTPPort,
		Username: a.Config.SMTPUsername,
		Password: a.Config.SMTPPassword,
		From:     a.Config.SMTPFrom,
	})
}

func initUOW(conn *pgxpool.Pool) *uow.UnitOfWork {
	unitOfWork := uow.NewUnitOfWork(conn)

	unitOfWork.MustRegister(uow.RepositoryName(repoargs.AccountRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewAccountRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.TransactionRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewTransactionRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.VideoRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewVideoRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.WatchRecordRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewWatchRecordRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.ProductRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewProductRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.SubscriptionRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewSubscriptionRepository(dbtx)
	})
	unitOfWork.MustRegister(uow.RepositoryName(repoargs.OrderRepoName), func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewOrderRepository(dbtx)
	})

	return unitOfWork
}

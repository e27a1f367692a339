package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

// LedgerService - единственная точка мутации балансов. Каждая примененная дельта
// атомарно меняет баланс и добавляет ровно одну запись в журнал транзакций.
type LedgerService struct {
	uow         uow.UOW
	accountRepo AccountRepository
	transRepo   TransactionRepository
}

func NewLedgerService(u uow.UOW) (*LedgerService, error) {
	accountRepo, accountRepoErr := uow.GetRepositoryAs[AccountRepository](
		u, uow.RepositoryName(repoargs.AccountRepoName))
	if accountRepoErr != nil {
		return nil, accountRepoErr
	}
	transRepo, transRepoErr := uow.GetRepositoryAs[TransactionRepository](
		u, uow.RepositoryName(repoargs.TransactionRepoName))
	if transRepoErr != nil {
		return nil, transRepoErr
	}
	return &LedgerService{
		uow:         u,
		accountRepo: accountRepo,
		transRepo:   transRepo,
	}, nil
}

type ApplyDeltaArgs struct {
	AccountID   int64
	Amount      int64
	Kind        domain.TransactionKind
	Description string

	VideoID        *int64
	WatchSeconds   *int32
	CounterpartyID *int64
	OrderNumber    *string
}

// ApplyDelta применяет дельту к счету в собственной транзакции БД.
// Возвращает созданную запись журнала.
func (s *LedgerService) ApplyDelta(ctx context.Context, args ApplyDeltaArgs) (*domain.Transaction, error) {
	var transaction *domain.Transaction
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		transaction, err = s.ApplyDeltaTX(c, tx, args)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return transaction, nil
}

// ApplyDeltaTX применяет дельту внутри уже открытой uow транзакции. Расчетный движок
// компонует несколько вызовов в один атомарный расчет.
//
// Порядок строго verify-then-commit:
//  1. существование счета и флаги блокировки переводов;
//  2. условное изменение баланса (нехватка средств ловится на этом шаге);
//  3. добавление записи журнала.
//
// Ошибки ErrAccountNotFound, ErrInsufficientFunds и ErrTransferBlocked локальны
// и не оставляют побочных эффектов.
func (s *LedgerService) ApplyDeltaTX(
	ctx context.Context,
	tx uow.TX,
	args ApplyDeltaArgs,
) (*domain.Transaction, error) {
	accountRepo, accountRepoErr := uow.GetAs[AccountRepository](
		tx, uow.RepositoryName(repoargs.AccountRepoName))
	if accountRepoErr != nil {
		return nil, accountRepoErr //nolint:wrapcheck
	}

	account, findErr := accountRepo.FindByID(ctx, args.AccountID)
	if findErr != nil {
		if errors.Is(findErr, domain.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("applying delta: %w", findErr)
	}

	if args.Amount < 0 && args.Kind.BlockedBySendOverride() && account.SendBlocked {
		return nil, domain.ErrTransferBlocked
	}
	if args.Amount > 0 && args.Kind.BlockedByReceiveOverride() && account.ReceiveBlocked {
		return nil, domain.ErrTransferBlocked
	}

	if _, adjustErr := accountRepo.AdjustCoins(ctx, args.AccountID, args.Amount); adjustErr != nil {
		return nil, adjustErr //nolint:wrapcheck
	}

	transRepo, transRepoErr := uow.GetAs[TransactionRepository](
		tx, uow.RepositoryName(repoargs.TransactionRepoName))
	if transRepoErr != nil {
		return nil, transRepoErr //nolint:wrapcheck
	}

	transaction, createErr := transRepo.Create(ctx, repoargs.TransactionCreate{
		AccountID:      args.AccountID,
		Kind:           args.Kind,
		Amount:         args.Amount,
		Description:    args.Description,
		VideoID:        args.VideoID,
		WatchSeconds:   args.WatchSeconds,
		CounterpartyID: args.CounterpartyID,
		OrderNumber:    args.OrderNumber,
	})
	if createErr != nil {
		return nil, fmt.Errorf("applying delta: %w", createErr)
	}
	return transaction, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err //nolint:wrapcheck
	}
	return account, nil
}

// GetTransactions возвращает записи журнала по счету, новые первыми.
func (s *LedgerService) GetTransactions(
	ctx context.Context,
	accountID int64,
	limit uint,
) ([]domain.Transaction, error) {
	transactions, err := s.transRepo.GetByAccountID(ctx, accountID, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return transactions, nil
}

// SetTransferOverride выставляет флаги блокировки переводов (админская операция).
func (s *LedgerService) SetTransferOverride(
	ctx context.Context,
	accountID int64,
	sendBlocked, receiveBlocked bool,
) (*domain.Account, error) {
	account, err := s.accountRepo.SetTransferOverride(ctx, accountID, sendBlocked, receiveBlocked)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return account, nil
}

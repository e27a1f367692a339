package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

// SettlementService оркестрирует мультисчетовые расчеты: покупка (списание покупателя,
// зачисление вендорам) и раздача монет (админ -> юзер). Все ноги одного расчета
// выполняются в одной транзакции БД - частичный расчет невозможен: либо применяются
// все дельты, либо ни одной.
type SettlementService struct {
	uow         uow.UOW
	productRepo ProductRepository
	orderRepo   OrderRepository
	accountRepo AccountRepository
	ledger      *LedgerService
}

func NewSettlementService(u uow.UOW, ledger *LedgerService) (*SettlementService, error) {
	productRepo, productRepoErr := uow.GetRepositoryAs[ProductRepository](
		u, uow.RepositoryName(repoargs.ProductRepoName))
	if productRepoErr != nil {
		return nil, productRepoErr
	}
	orderRepo, orderRepoErr := uow.GetRepositoryAs[OrderRepository](
		u, uow.RepositoryName(repoargs.OrderRepoName))
	if orderRepoErr != nil {
		return nil, orderRepoErr
	}
	accountRepo, accountRepoErr := uow.GetRepositoryAs[AccountRepository](
		u, uow.RepositoryName(repoargs.AccountRepoName))
	if accountRepoErr != nil {
		return nil, accountRepoErr
	}
	return &SettlementService{
		uow:         u,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		accountRepo: accountRepo,
		ledger:      ledger,
	}, nil
}

type LineItem struct {
	ProductID int64
	Quantity  int32
}

// SettlePurchase проводит покупку за монеты.
//
// Алгоритм (одна транзакция БД):
//  1. Валидация позиций по товарам: опубликован, остаток, цена, вендор.
//  2. Списание покупателя одной дельтой -total (kind=purchase).
//  3. Зачисление каждому затронутому вендору его доли (kind=sale).
//  4. Списание остатков по позициям.
//  5. Создание заказа - последним, заказ по несостоявшейся оплате не появляется.
//
// Сумма транзакций одного расчета равна нулю (закон сохранения).
//
// idempotencyKey дедуплицирует повторы после таймаута: повтор возвращает уже
// созданный заказ, не проводя расчет второй раз.
func (s *SettlementService) SettlePurchase(
	ctx context.Context,
	buyerID int64,
	idempotencyKey string,
	items []LineItem,
) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, &domain.InvalidLineItemError{Reason: "order has no items"}
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &domain.InvalidLineItemError{ProductID: item.ProductID, Reason: "non-positive quantity"}
		}
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	if existing, found, lookupErr := s.findSettled(ctx, idempotencyKey); lookupErr != nil {
		return nil, lookupErr
	} else if found {
		return existing, nil
	}

	orderNumber := uuid.NewString()

	var order *domain.Order
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		order, err = s.settleTX(c, tx, buyerID, orderNumber, idempotencyKey, items)
		return err
	})
	if txErr != nil {
		// Гонка двух повторов с одним ключом: проигравший ловит нарушение уникальности
		// и возвращает заказ победителя.
		if errors.Is(txErr, domain.ErrDuplicateKey) {
			if existing, found, lookupErr := s.findSettled(ctx, idempotencyKey); lookupErr == nil && found {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("settling purchase: %w", txErr)
	}
	return order, nil
}

func (s *SettlementService) settleTX(
	ctx context.Context,
	tx uow.TX,
	buyerID int64,
	orderNumber, idempotencyKey string,
	items []LineItem,
) (*domain.Order, error) {
	productRepo, productRepoErr := uow.GetAs[ProductRepository](
		tx, uow.RepositoryName(repoargs.ProductRepoName))
	if productRepoErr != nil {
		return nil, productRepoErr //nolint:wrapcheck
	}

	var totalCoins int64
	vendorShares := make(map[int64]int64)
	orderItems := make([]repoargs.OrderItemCreate, 0, len(items))

	for _, item := range items {
		product, findErr := productRepo.FindByID(ctx, item.ProductID)
		if findErr != nil {
			if errors.Is(findErr, domain.ErrRecordNotFound) {
				return nil, &domain.InvalidLineItemError{ProductID: item.ProductID, Reason: "product not found"}
			}
			return nil, findErr
		}
		if !product.IsPublished {
			return nil, domain.ErrProductUnavailable
		}
		if product.Stock < item.Quantity {
			return nil, domain.ErrStockExceeded
		}

		lineTotal := product.UnitCoinPrice * int64(item.Quantity)
		totalCoins += lineTotal
		vendorShares[product.VendorID] += lineTotal
		orderItems = append(orderItems, repoargs.OrderItemCreate{
			ProductID:     product.ID,
			VendorID:      product.VendorID,
			Quantity:      item.Quantity,
			UnitCoinPrice: product.UnitCoinPrice,
		})
	}

	if _, debitErr := s.ledger.ApplyDeltaTX(ctx, tx, ApplyDeltaArgs{
		AccountID:   buyerID,
		Amount:      -totalCoins,
		Kind:        domain.TransactionPurchase,
		Description: fmt.Sprintf("purchase order %s", orderNumber),
		OrderNumber: &orderNumber,
	}); debitErr != nil {
		return nil, debitErr
	}

	// Стабильный порядок зачислений, чтобы встречные расчеты с пересекающимися
	// вендорами не взаимоблокировались.
	vendorIDs := make([]int64, 0, len(vendorShares))
	for vendorID := range vendorShares {
		vendorIDs = append(vendorIDs, vendorID)
	}
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })

	for _, vendorID := range vendorIDs {
		if _, creditErr := s.ledger.ApplyDeltaTX(ctx, tx, ApplyDeltaArgs{
			AccountID:      vendorID,
			Amount:         vendorShares[vendorID],
			Kind:           domain.TransactionSale,
			Description:    fmt.Sprintf("sale order %s", orderNumber),
			CounterpartyID: &buyerID,
			OrderNumber:    &orderNumber,
		}); creditErr != nil {
			return nil, creditErr
		}
	}

	for _, item := range orderItems {
		if stockErr := productRepo.DecrementStock(ctx, item.ProductID, item.Quantity); stockErr != nil {
			return nil, stockErr
		}
	}

	orderRepo, orderRepoErr := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
	if orderRepoErr != nil {
		return nil, orderRepoErr //nolint:wrapcheck
	}

	order, createErr := orderRepo.Create(ctx, repoargs.OrderCreate{
		BuyerID:        buyerID,
		Number:         orderNumber,
		IdempotencyKey: idempotencyKey,
		TotalCoins:     totalCoins,
		Items:          orderItems,
	})
	if createErr != nil {
		return nil, createErr
	}
	return order, nil
}

func (s *SettlementService) findSettled(ctx context.Context, idempotencyKey string) (*domain.Order, bool, error) {
	order, err := s.orderRepo.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("looking up settled order: %w", err)
	}
	return order, true, nil
}

type DistributionResult struct {
	Sender    *domain.Transaction
	Recipient *domain.Transaction
}

// DistributeCoins переводит монеты со счета админа/субадмина на счет юзера по email.
// Списание и зачисление - парные транзакции в одной транзакции БД: при любой ошибке
// (нехватка средств, блокировка перевода) не остается частичного эффекта.
func (s *SettlementService) DistributeCoins(
	ctx context.Context,
	fromAccountID int64,
	toEmail string,
	amount int64,
	description string,
) (*DistributionResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("distributing coins: non-positive amount %d", amount)
	}

	recipient, findErr := s.accountRepo.FindByEmail(ctx, toEmail)
	if findErr != nil {
		if errors.Is(findErr, domain.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("distributing coins: %w", findErr)
	}
	if recipient.ID == fromAccountID {
		return nil, fmt.Errorf("distributing coins: %w", domain.ErrOwnerConflict)
	}

	var result DistributionResult
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		sent, debitErr := s.ledger.ApplyDeltaTX(c, tx, ApplyDeltaArgs{
			AccountID:      fromAccountID,
			Amount:         -amount,
			Kind:           domain.TransactionTransferSend,
			Description:    description,
			CounterpartyID: &recipient.ID,
		})
		if debitErr != nil {
			return debitErr //nolint:wrapcheck
		}

		received, creditErr := s.ledger.ApplyDeltaTX(c, tx, ApplyDeltaArgs{
			AccountID:      recipient.ID,
			Amount:         amount,
			Kind:           domain.TransactionTransferReceive,
			Description:    description,
			CounterpartyID: &fromAccountID,
		})
		if creditErr != nil {
			return creditErr //nolint:wrapcheck
		}

		result.Sender = sent
		result.Recipient = received
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("distributing coins: %w", txErr)
	}
	return &result, nil
}

// GetOrders возвращает заказы покупателя, новые первыми.
func (s *SettlementService) GetOrders(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	orders, err := s.orderRepo.GetByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

func (s *SettlementService) CreateProduct(
	ctx context.Context,
	args repoargs.ProductCreate,
) (*domain.Product, error) {
	product, err := s.productRepo.Create(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return product, nil
}

func (s *SettlementService) ListProducts(ctx context.Context, limit uint) ([]domain.Product, error) {
	products, err := s.productRepo.ListPublished(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return products, nil
}

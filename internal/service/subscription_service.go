package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

// SubscriptionService реализует жизненный цикл подписки на публикацию товара:
// pending -> active -> expired|cancelled. Истекшая подписка никогда не мутируется
// обратно в active - продление создает новую запись.
type SubscriptionService struct {
	uow              uow.UOW
	subRepo          SubscriptionRepository
	productRepo      ProductRepository
	pricePerImageDay decimal.Decimal
}

func NewSubscriptionService(u uow.UOW, pricePerImageDay decimal.Decimal) (*SubscriptionService, error) {
	subRepo, subRepoErr := uow.GetRepositoryAs[SubscriptionRepository](
		u, uow.RepositoryName(repoargs.SubscriptionRepoName))
	if subRepoErr != nil {
		return nil, subRepoErr
	}
	productRepo, productRepoErr := uow.GetRepositoryAs[ProductRepository](
		u, uow.RepositoryName(repoargs.ProductRepoName))
	if productRepoErr != nil {
		return nil, productRepoErr
	}
	return &SubscriptionService{
		uow:              u,
		subRepo:          subRepo,
		productRepo:      productRepo,
		pricePerImageDay: pricePerImageDay,
	}, nil
}

// Create создает pending подписку на публикацию товара. Стоимость считается как
// кол-во изображений товара x кол-во дней x цена за изображение в день.
func (s *SubscriptionService) Create(
	ctx context.Context,
	vendorID, productID int64,
	startDate time.Time,
	days int32,
) (*domain.ProductSubscription, error) {
	if days <= 0 {
		return nil, fmt.Errorf("creating subscription: non-positive duration %d days", days)
	}

	product, productErr := s.productRepo.FindByID(ctx, productID)
	if productErr != nil {
		return nil, fmt.Errorf("creating subscription: %w", productErr)
	}
	if product.VendorID != vendorID {
		return nil, domain.ErrOwnerConflict
	}

	total := s.pricePerImageDay.
		Mul(decimal.NewFromInt(int64(product.ImagesCount))).
		Mul(decimal.NewFromInt(int64(days)))

	subscription, createErr := s.subRepo.Create(ctx, repoargs.SubscriptionCreate{
		ProductID:   productID,
		VendorID:    vendorID,
		StartDate:   startDate,
		EndDate:     startDate.AddDate(0, 0, int(days)),
		TotalAmount: total,
	})
	if createErr != nil {
		return nil, fmt.Errorf("creating subscription: %w", createErr)
	}
	return subscription, nil
}

// Activate переводит подписку в active по подтверждению оплаты и публикует товар.
// Повторное подтверждение уже активной подписки - no-op, возвращается текущее
// состояние. Терминальные статусы отвечают ErrSubscriptionTerminal.
func (s *SubscriptionService) Activate(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	var activated *domain.ProductSubscription
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		subRepo, subRepoErr := uow.GetAs[SubscriptionRepository](
			tx, uow.RepositoryName(repoargs.SubscriptionRepoName))
		if subRepoErr != nil {
			return subRepoErr //nolint:wrapcheck
		}

		subscription, activateErr := subRepo.Activate(c, id)
		if activateErr != nil {
			if errors.Is(activateErr, domain.ErrRecordNotFound) {
				return s.resolveGuardMiss(c, tx, id, &activated)
			}
			return activateErr //nolint:wrapcheck
		}

		productRepo, productRepoErr := uow.GetAs[ProductRepository](
			tx, uow.RepositoryName(repoargs.ProductRepoName))
		if productRepoErr != nil {
			return productRepoErr //nolint:wrapcheck
		}
		if pubErr := productRepo.SetPublication(c, subscription.ProductID, true, &subscription.ID); pubErr != nil {
			return pubErr //nolint:wrapcheck
		}

		activated = subscription
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("activating subscription %d: %w", id, txErr)
	}
	return activated, nil
}

// resolveGuardMiss разбирает промах guarded UPDATE: подписка либо отсутствует,
// либо уже активна (идемпотентный повтор), либо в терминальном статусе.
func (s *SubscriptionService) resolveGuardMiss(
	ctx context.Context,
	tx uow.TX,
	id int64,
	out **domain.ProductSubscription,
) error {
	subRepo, subRepoErr := uow.GetAs[SubscriptionRepository](
		tx, uow.RepositoryName(repoargs.SubscriptionRepoName))
	if subRepoErr != nil {
		return subRepoErr //nolint:wrapcheck
	}
	subscription, findErr := subRepo.FindByID(ctx, id)
	if findErr != nil {
		return findErr //nolint:wrapcheck
	}
	switch {
	case subscription.Status == domain.SubscriptionActive:
		*out = subscription
		return nil
	case subscription.Status.Terminal():
		return domain.ErrSubscriptionTerminal
	default:
		return domain.ErrUnknown
	}
}

// Cancel - админское (или вендорское, для своих подписок) мягкое удаление.
// Работает из pending и active независимо от шедулера.
func (s *SubscriptionService) Cancel(ctx context.Context, id int64, byVendorID *int64) (*domain.ProductSubscription, error) {
	var cancelled *domain.ProductSubscription
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		subRepo, subRepoErr := uow.GetAs[SubscriptionRepository](
			tx, uow.RepositoryName(repoargs.SubscriptionRepoName))
		if subRepoErr != nil {
			return subRepoErr //nolint:wrapcheck
		}

		current, findErr := subRepo.FindByID(c, id)
		if findErr != nil {
			return findErr //nolint:wrapcheck
		}
		if byVendorID != nil && current.VendorID != *byVendorID {
			return domain.ErrOwnerConflict
		}
		if current.Status.Terminal() {
			return domain.ErrSubscriptionTerminal
		}

		subscription, cancelErr := subRepo.Cancel(c, id)
		if cancelErr != nil {
			if errors.Is(cancelErr, domain.ErrRecordNotFound) {
				return domain.ErrSubscriptionTerminal
			}
			return cancelErr //nolint:wrapcheck
		}

		if subscription.Status == domain.SubscriptionCancelled {
			productRepo, productRepoErr := uow.GetAs[ProductRepository](
				tx, uow.RepositoryName(repoargs.ProductRepoName))
			if productRepoErr != nil {
				return productRepoErr //nolint:wrapcheck
			}
			if pubErr := productRepo.SetPublication(c, subscription.ProductID, false, nil); pubErr != nil {
				return pubErr //nolint:wrapcheck
			}
		}

		cancelled = subscription
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("cancelling subscription %d: %w", id, txErr)
	}
	return cancelled, nil
}

// Renew создает новую pending подписку со ссылкой на предыдущую. Сама предыдущая
// запись не мутируется.
func (s *SubscriptionService) Renew(
	ctx context.Context,
	vendorID, previousID int64,
	days int32,
) (*domain.ProductSubscription, error) {
	if days <= 0 {
		return nil, fmt.Errorf("renewing subscription: non-positive duration %d days", days)
	}

	previous, findErr := s.subRepo.FindByID(ctx, previousID)
	if findErr != nil {
		return nil, fmt.Errorf("renewing subscription: %w", findErr)
	}
	if previous.VendorID != vendorID {
		return nil, domain.ErrOwnerConflict
	}

	product, productErr := s.productRepo.FindByID(ctx, previous.ProductID)
	if productErr != nil {
		return nil, fmt.Errorf("renewing subscription: %w", productErr)
	}

	startDate := time.Now()
	if previous.EndDate.After(startDate) {
		startDate = previous.EndDate
	}

	total := s.pricePerImageDay.
		Mul(decimal.NewFromInt(int64(product.ImagesCount))).
		Mul(decimal.NewFromInt(int64(days)))

	renewal, createErr := s.subRepo.Create(ctx, repoargs.SubscriptionCreate{
		ProductID:              previous.ProductID,
		VendorID:               previous.VendorID,
		StartDate:              startDate,
		EndDate:                startDate.AddDate(0, 0, int(days)),
		TotalAmount:            total,
		PreviousSubscriptionID: &previous.ID,
		RenewalCount:           previous.RenewalCount + 1,
	})
	if createErr != nil {
		return nil, fmt.Errorf("renewing subscription: %w", createErr)
	}
	return renewal, nil
}

// DueForExpiry возвращает активные подписки с истекшим end_date.
func (s *SubscriptionService) DueForExpiry(
	ctx context.Context,
	now time.Time,
	limit uint,
) ([]domain.ProductSubscription, error) {
	subscriptions, err := s.subRepo.GetDueForExpiry(ctx, now, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return subscriptions, nil
}

// Expire переводит подписку active -> expired и снимает товар с публикации.
// Идемпотентна: повтор на уже истекшей подписке возвращает ErrSubscriptionTerminal
// и не перезапускает побочные эффекты.
func (s *SubscriptionService) Expire(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	var expired *domain.ProductSubscription
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		subRepo, subRepoErr := uow.GetAs[SubscriptionRepository](
			tx, uow.RepositoryName(repoargs.SubscriptionRepoName))
		if subRepoErr != nil {
			return subRepoErr //nolint:wrapcheck
		}

		subscription, expireErr := subRepo.MarkExpired(c, id)
		if expireErr != nil {
			if errors.Is(expireErr, domain.ErrRecordNotFound) {
				return domain.ErrSubscriptionTerminal
			}
			return expireErr //nolint:wrapcheck
		}

		productRepo, productRepoErr := uow.GetAs[ProductRepository](
			tx, uow.RepositoryName(repoargs.ProductRepoName))
		if productRepoErr != nil {
			return productRepoErr //nolint:wrapcheck
		}
		if pubErr := productRepo.SetPublication(c, subscription.ProductID, false, nil); pubErr != nil {
			return pubErr //nolint:wrapcheck
		}

		expired = subscription
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrSubscriptionTerminal) {
			return nil, domain.ErrSubscriptionTerminal
		}
		return nil, fmt.Errorf("expiring subscription %d: %w", id, txErr)
	}
	return expired, nil
}

// MarkNotified помечает отправку уведомления об истечении. false - флаг уже стоял.
func (s *SubscriptionService) MarkNotified(ctx context.Context, id int64) (bool, error) {
	marked, err := s.subRepo.MarkNotified(ctx, id)
	if err != nil {
		return false, err //nolint:wrapcheck
	}
	return marked, nil
}

// ExpiringWithin возвращает активные подписки, истекающие в окне window от now.
func (s *SubscriptionService) ExpiringWithin(
	ctx context.Context,
	now time.Time,
	window time.Duration,
) ([]domain.ProductSubscription, error) {
	subscriptions, err := s.subRepo.GetExpiringWithin(ctx, now, window)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return subscriptions, nil
}

// GetByVendor возвращает подписки вендора, новые первыми.
func (s *SubscriptionService) GetByVendor(ctx context.Context, vendorID int64) ([]domain.ProductSubscription, error) {
	subscriptions, err := s.subRepo.GetByVendor(ctx, vendorID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return subscriptions, nil
}

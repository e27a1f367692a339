package service

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

type SubscriptionServiceTestSuite struct {
	suite.Suite
	uow                 *fakeUOW
	productRepo         ProductRepository
	subscriptionService *SubscriptionService

	vendor  *domain.Account
	product *domain.Product
}

func TestSubscriptionServiceSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceTestSuite))
}

func (s *SubscriptionServiceTestSuite) SetupTest() {
	s.uow = newFakeUOW()

	subscriptionService, serviceErr := NewSubscriptionService(s.uow, decimal.NewFromInt(10))
	s.Require().NoError(serviceErr)
	s.subscriptionService = subscriptionService

	accountRepo, accountRepoErr := uow.GetRepositoryAs[AccountRepository](
		s.uow, uow.RepositoryName(repoargs.AccountRepoName))
	s.Require().NoError(accountRepoErr)
	productRepo, productRepoErr := uow.GetRepositoryAs[ProductRepository](
		s.uow, uow.RepositoryName(repoargs.ProductRepoName))
	s.Require().NoError(productRepoErr)
	s.productRepo = productRepo

	vendor, vendorErr := accountRepo.Create(context.Background(), repoargs.CreateAccount{
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12),
		Role:     domain.RoleVendor,
	})
	s.Require().NoError(vendorErr)
	s.vendor = vendor

	product, productErr := productRepo.Create(context.Background(), repoargs.ProductCreate{
		VendorID:      vendor.ID,
		Title:         gofakeit.ProductName(),
		UnitCoinPrice: 100,
		Stock:         10,
		ImagesCount:   4,
	})
	s.Require().NoError(productErr)
	s.product = product
}

func (s *SubscriptionServiceTestSuite) findProduct() *domain.Product {
	product, err := s.productRepo.FindByID(context.Background(), s.product.ID)
	s.Require().NoError(err)
	return product
}

func (s *SubscriptionServiceTestSuite) createSubscription(days int32) *domain.ProductSubscription {
	subscription, err := s.subscriptionService.Create(
		context.Background(), s.vendor.ID, s.product.ID, time.Now(), days)
	s.Require().NoError(err)
	return subscription
}

func (s *SubscriptionServiceTestSuite) TestCreate() {
	subscription := s.createSubscription(7)

	s.Equal(domain.SubscriptionPending, subscription.Status)
	s.Equal(domain.PaymentPending, subscription.PaymentStatus)
	// 4 изображения x 7 дней x 10 за изображение в день.
	s.True(subscription.TotalAmount.Equal(decimal.NewFromInt(280)),
		"got %s", subscription.TotalAmount)
	s.False(s.findProduct().IsPublished, "pending subscription must not publish the product")
}

func (s *SubscriptionServiceTestSuite) TestCreateForeignProduct() {
	_, err := s.subscriptionService.Create(context.Background(), s.vendor.ID+1, s.product.ID, time.Now(), 7)
	s.Require().ErrorIs(err, domain.ErrOwnerConflict)
}

func (s *SubscriptionServiceTestSuite) TestActivatePublishesProduct() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	activated, err := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(err)
	s.Equal(domain.SubscriptionActive, activated.Status)
	s.Equal(domain.PaymentPaid, activated.PaymentStatus)

	product := s.findProduct()
	s.True(product.IsPublished)
	s.Require().NotNil(product.CurrentSubscriptionID)
	s.Equal(subscription.ID, *product.CurrentSubscriptionID)

	// Повторное подтверждение - идемпотентный no-op.
	again, againErr := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(againErr)
	s.Equal(domain.SubscriptionActive, again.Status)
}

func (s *SubscriptionServiceTestSuite) TestActivateTerminal() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	_, cancelErr := s.subscriptionService.Cancel(ctx, subscription.ID, nil)
	s.Require().NoError(cancelErr)

	_, err := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().ErrorIs(err, domain.ErrSubscriptionTerminal)
}

func (s *SubscriptionServiceTestSuite) TestCancelUnpublishes() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	_, activateErr := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(activateErr)

	cancelled, cancelErr := s.subscriptionService.Cancel(ctx, subscription.ID, &s.vendor.ID)
	s.Require().NoError(cancelErr)
	s.Equal(domain.SubscriptionCancelled, cancelled.Status)
	s.False(s.findProduct().IsPublished)

	_, repeatErr := s.subscriptionService.Cancel(ctx, subscription.ID, &s.vendor.ID)
	s.Require().ErrorIs(repeatErr, domain.ErrSubscriptionTerminal)
}

func (s *SubscriptionServiceTestSuite) TestCancelForeignSubscription() {
	subscription := s.createSubscription(7)
	strangerID := s.vendor.ID + 100

	_, err := s.subscriptionService.Cancel(context.Background(), subscription.ID, &strangerID)
	s.Require().ErrorIs(err, domain.ErrOwnerConflict)
}

func (s *SubscriptionServiceTestSuite) TestExpire() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	_, activateErr := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(activateErr)

	expired, expireErr := s.subscriptionService.Expire(ctx, subscription.ID)
	s.Require().NoError(expireErr)
	s.Equal(domain.SubscriptionExpired, expired.Status)
	s.False(s.findProduct().IsPublished)

	// Повторное истечение не перезапускает побочные эффекты.
	_, repeatErr := s.subscriptionService.Expire(ctx, subscription.ID)
	s.Require().ErrorIs(repeatErr, domain.ErrSubscriptionTerminal)
}

func (s *SubscriptionServiceTestSuite) TestRenewCreatesLinkedRecord() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	_, activateErr := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(activateErr)

	renewal, renewErr := s.subscriptionService.Renew(ctx, s.vendor.ID, subscription.ID, 7)
	s.Require().NoError(renewErr)

	s.NotEqual(subscription.ID, renewal.ID, "renewal is a new record, not a mutation")
	s.Equal(domain.SubscriptionPending, renewal.Status)
	s.Require().NotNil(renewal.PreviousSubscriptionID)
	s.Equal(subscription.ID, *renewal.PreviousSubscriptionID)
	s.Equal(subscription.RenewalCount+1, renewal.RenewalCount)

	// Продление до истечения стартует от конца предыдущего окна.
	s.Equal(subscription.EndDate, renewal.StartDate)

	previous, findErr := s.subscriptionService.GetByVendor(ctx, s.vendor.ID)
	s.Require().NoError(findErr)
	s.Len(previous, 2)
}

func (s *SubscriptionServiceTestSuite) TestDueForExpiry() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	_, activateErr := s.subscriptionService.Activate(ctx, subscription.ID)
	s.Require().NoError(activateErr)

	notYet, notYetErr := s.subscriptionService.DueForExpiry(ctx, time.Now(), 10)
	s.Require().NoError(notYetErr)
	s.Empty(notYet)

	due, dueErr := s.subscriptionService.DueForExpiry(ctx, time.Now().AddDate(0, 0, 8), 10)
	s.Require().NoError(dueErr)
	s.Require().Len(due, 1)
	s.Equal(subscription.ID, due[0].ID)
}

func (s *SubscriptionServiceTestSuite) TestMarkNotifiedOnce() {
	subscription := s.createSubscription(7)
	ctx := context.Background()

	first, firstErr := s.subscriptionService.MarkNotified(ctx, subscription.ID)
	s.Require().NoError(firstErr)
	s.True(first)

	second, secondErr := s.subscriptionService.MarkNotified(ctx, subscription.ID)
	s.Require().NoError(secondErr)
	s.False(second, "second mark must report the flag was already set")
}

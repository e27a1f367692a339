package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vidmarket/coinledger/internal/service/psswd"
	"github.com/vidmarket/coinledger/pkg/uow"
)

type AppServices struct {
	UserService         *UserService
	LedgerService       *LedgerService
	RewardService       *RewardService
	SettlementService   *SettlementService
	SubscriptionService *SubscriptionService
}

type FactoryArgs struct {
	JWTSecret        []byte
	PricePerImageDay decimal.Decimal
}

func Factory(unitOfWork uow.UOW, args FactoryArgs) (*AppServices, error) {
	userService, userServiceErr := NewUserService(unitOfWork, psswd.PasswordHash(""), args.JWTSecret)
	if userServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", userServiceErr.Error())
	}

	ledgerService, ledgerServiceErr := NewLedgerService(unitOfWork)
	if ledgerServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", ledgerServiceErr.Error())
	}

	rewardService, rewardServiceErr := NewRewardService(unitOfWork, ledgerService)
	if rewardServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", rewardServiceErr.Error())
	}

	settlementService, settlementServiceErr := NewSettlementService(unitOfWork, ledgerService)
	if settlementServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", settlementServiceErr.Error())
	}

	subscriptionService, subscriptionServiceErr := NewSubscriptionService(unitOfWork, args.PricePerImageDay)
	if subscriptionServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", subscriptionServiceErr.Error())
	}

	return &AppServices{
		UserService:         userService,
		LedgerService:       ledgerService,
		RewardService:       rewardService,
		SettlementService:   settlementService,
		SubscriptionService: subscriptionService,
	}, nil
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
)

type DistributionHandler struct {
	settlementService SettlementServicer
	ledgerService     LedgerServicer
}

func NewDistributionHandler(
	settlementService SettlementServicer,
	ledgerService LedgerServicer,
) *DistributionHandler {
	return &DistributionHandler{
		settlementService: settlementService,
		ledgerService:     ledgerService,
	}
}

type DistributeParams struct {
	Email       string `binding:"required,email"   json:"email"`
	Amount      int64  `binding:"required,gt=0"    json:"amount"`
	Description string `binding:"omitempty,max=255" json:"description"`
}

// Distribute POST RouteGroup + DistributeRoute. Перевод монет со счета админа или
// субадмина на счет юзера по email. Перевод самому себе запрещен.
func (h *DistributionHandler) Distribute(c *gin.Context) {
	var params DistributeParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	result, err := h.settlementService.DistributeCoins(
		ctx, getAccountIDFromContext(c), params.Email, params.Amount, params.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrRecordNotFound):
			_ = c.AbortWithError(http.StatusNotFound, errors.New("recipient not found")).
				SetType(gin.ErrorTypePublic)
		case errors.Is(err, domain.ErrOwnerConflict):
			_ = c.AbortWithError(http.StatusUnprocessableEntity, errors.New("cannot distribute to yourself")).
				SetType(gin.ErrorTypePublic)
		case errors.Is(err, domain.ErrInsufficientFunds):
			_ = c.AbortWithError(http.StatusPaymentRequired, errors.New("insufficient coins")).
				SetType(gin.ErrorTypePublic)
		case errors.Is(err, domain.ErrTransferBlocked):
			_ = c.AbortWithError(http.StatusForbidden, errors.New("transfer is blocked")).
				SetType(gin.ErrorTypePublic)
		default:
			_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sent":     NewTransactionResponse(*result.Sender),
		"received": NewTransactionResponse(*result.Recipient),
	})
}

type TransferOverrideParams struct {
	SendBlocked    bool `json:"sendBlocked"`
	ReceiveBlocked bool `json:"receiveBlocked"`
}

// SetTransferOverride POST RouteGroup + TransferOverrideRoute. Админская блокировка
// отправки и/или получения переводов для счета. Начисления за просмотр и покупки
// блокировка не затрагивает.
func (h *DistributionHandler) SetTransferOverride(c *gin.Context) {
	accountID, ok := parseIDParam(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var params TransferOverrideParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, err := h.ledgerService.SetTransferOverride(
		ctx, accountID, params.SendBlocked, params.ReceiveBlocked)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) || errors.Is(err, domain.ErrAccountNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             account.ID,
		"sendBlocked":    account.SendBlocked,
		"receiveBlocked": account.ReceiveBlocked,
	})
}

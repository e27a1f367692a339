package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
)

const defaultTransactionsLimit = 100

type BalanceHandler struct {
	ledgerService LedgerServicer
}

func NewBalanceHandler(ledgerService LedgerServicer) *BalanceHandler {
	return &BalanceHandler{
		ledgerService: ledgerService,
	}
}

type BalanceResponse struct {
	CoinsBalance   int64  `json:"coinsBalance"`
	WalletBalance  string `json:"walletBalance"`
	SendBlocked    bool   `json:"sendBlocked"`
	ReceiveBlocked bool   `json:"receiveBlocked"`
}

// Index GET RouteGroup + BalanceRoute. Текущий баланс авторизованного счета.
func (h *BalanceHandler) Index(c *gin.Context) {
	accountID := getAccountIDFromContext(c)

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, err := h.ledgerService.GetAccount(ctx, accountID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		CoinsBalance:   account.CoinsBalance,
		WalletBalance:  account.WalletBalance.String(),
		SendBlocked:    account.SendBlocked,
		ReceiveBlocked: account.ReceiveBlocked,
	})
}

type TransactionResponse struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`

	VideoID        *int64  `json:"videoId,omitempty"`
	WatchSeconds   *int32  `json:"watchSeconds,omitempty"`
	CounterpartyID *int64  `json:"counterpartyId,omitempty"`
	OrderNumber    *string `json:"orderNumber,omitempty"`
}

func NewTransactionResponse(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             t.ID,
		CreatedAt:      t.CreatedAt,
		Kind:           string(t.Kind),
		Amount:         t.Amount,
		Description:    t.Description,
		VideoID:        t.VideoID,
		WatchSeconds:   t.WatchSeconds,
		CounterpartyID: t.CounterpartyID,
		OrderNumber:    t.OrderNumber,
	}
}

// Transactions GET RouteGroup + TransactionsRoute. История операций счета,
// новые первыми.
func (h *BalanceHandler) Transactions(c *gin.Context) {
	accountID := getAccountIDFromContext(c)

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	transactions, err := h.ledgerService.GetTransactions(ctx, accountID, defaultTransactionsLimit)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	if len(transactions) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]TransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, NewTransactionResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

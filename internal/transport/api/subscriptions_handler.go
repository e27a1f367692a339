package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
)

type SubscriptionsHandler struct {
	subscriptionService SubscriptionServicer
}

func NewSubscriptionsHandler(subscriptionService SubscriptionServicer) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		subscriptionService: subscriptionService,
	}
}

type SubscriptionResponse struct {
	ID                     int64     `json:"id"`
	ProductID              int64     `json:"productId"`
	StartDate              time.Time `json:"startDate"`
	EndDate                time.Time `json:"endDate"`
	Status                 string    `json:"status"`
	PaymentStatus          string    `json:"paymentStatus"`
	TotalAmount            string    `json:"totalAmount"`
	RenewalCount           int32     `json:"renewalCount"`
	PreviousSubscriptionID *int64    `json:"previousSubscriptionId,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

func NewSubscriptionResponse(s *domain.ProductSubscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                     s.ID,
		ProductID:              s.ProductID,
		StartDate:              s.StartDate,
		EndDate:                s.EndDate,
		Status:                 string(s.Status),
		PaymentStatus:          string(s.PaymentStatus),
		TotalAmount:            s.TotalAmount.String(),
		RenewalCount:           s.RenewalCount,
		PreviousSubscriptionID: s.PreviousSubscriptionID,
		CreatedAt:              s.CreatedAt,
	}
}

// Index GET RouteGroup + SubscriptionsRoute. Подписки авторизованного вендора.
func (h *SubscriptionsHandler) Index(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	subscriptions, err := h.subscriptionService.GetByVendor(ctx, getAccountIDFromContext(c))
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	if len(subscriptions) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]SubscriptionResponse, 0, len(subscriptions))
	for i := range subscriptions {
		resp = append(resp, NewSubscriptionResponse(&subscriptions[i]))
	}
	c.JSON(http.StatusOK, resp)
}

type CreateSubscriptionParams struct {
	ProductID int64      `binding:"required,gt=0"       json:"productId"`
	StartDate *time.Time `binding:"omitempty"           json:"startDate"`
	Days      int32      `binding:"required,gt=0,lte=365" json:"days"`
}

// Create POST RouteGroup + SubscriptionsRoute. Заявка на окно публикации товара.
// Подписка создается в pending и ждет подтверждения оплаты админом.
func (h *SubscriptionsHandler) Create(c *gin.Context) {
	var params CreateSubscriptionParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	startDate := time.Now()
	if params.StartDate != nil {
		startDate = *params.StartDate
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	subscription, err := h.subscriptionService.Create(
		ctx, getAccountIDFromContext(c), params.ProductID, startDate, params.Days)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, domain.ErrOwnerConflict):
			_ = c.AbortWithError(http.StatusForbidden, errors.New("product belongs to another vendor")).
				SetType(gin.ErrorTypePublic)
		default:
			_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		}
		return
	}

	c.JSON(http.StatusCreated, NewSubscriptionResponse(subscription))
}

// Confirm POST RouteGroup + SubscriptionConfirmRoute. Подтверждение оплаты админом:
// pending -> active, товар публикуется. Повтор подтверждения - no-op.
func (h *SubscriptionsHandler) Confirm(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	subscription, err := h.subscriptionService.Activate(ctx, id)
	if err != nil {
		h.abortSubscriptionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSubscriptionResponse(subscription))
}

// Cancel POST RouteGroup + SubscriptionCancelRoute. Отменяет подписку и снимает товар
// с публикации. Вендор может отменить только свою подписку, админ - любую.
func (h *SubscriptionsHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	var byVendorID *int64
	if getRoleFromContext(c) == domain.RoleVendor {
		vendorID := getAccountIDFromContext(c)
		byVendorID = &vendorID
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	subscription, err := h.subscriptionService.Cancel(ctx, id, byVendorID)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerConflict) {
			_ = c.AbortWithError(http.StatusForbidden, errors.New("subscription belongs to another vendor")).
				SetType(gin.ErrorTypePublic)
			return
		}
		h.abortSubscriptionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSubscriptionResponse(subscription))
}

type RenewSubscriptionParams struct {
	Days int32 `binding:"required,gt=0,lte=365" json:"days"`
}

// Renew POST RouteGroup + SubscriptionRenewRoute. Продление: новая pending-подписка
// со ссылкой на предыдущую. Истекшая запись не реанимируется.
func (h *SubscriptionsHandler) Renew(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}

	var params RenewSubscriptionParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	subscription, err := h.subscriptionService.Renew(ctx, getAccountIDFromContext(c), id, params.Days)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerConflict) {
			_ = c.AbortWithError(http.StatusForbidden, errors.New("subscription belongs to another vendor")).
				SetType(gin.ErrorTypePublic)
			return
		}
		h.abortSubscriptionErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewSubscriptionResponse(subscription))
}

func (h *SubscriptionsHandler) abortSubscriptionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
	case errors.Is(err, domain.ErrSubscriptionTerminal):
		_ = c.AbortWithError(http.StatusConflict, errors.New("subscription already finished")).
			SetType(gin.ErrorTypePublic)
	default:
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
	}
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/internal/service"
)

const defaultProductsLimit = 100

type OrdersHandler struct {
	settlementService SettlementServicer
}

func NewOrdersHandler(settlementService SettlementServicer) *OrdersHandler {
	return &OrdersHandler{
		settlementService: settlementService,
	}
}

type ProductResponse struct {
	ID            int64     `json:"id"`
	VendorID      int64     `json:"vendorId"`
	Title         string    `json:"title"`
	UnitCoinPrice int64     `json:"unitCoinPrice"`
	Stock         int32     `json:"stock"`
	ImagesCount   int32     `json:"imagesCount"`
	IsPublished   bool      `json:"isPublished"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		VendorID:      p.VendorID,
		Title:         p.Title,
		UnitCoinPrice: p.UnitCoinPrice,
		Stock:         p.Stock,
		ImagesCount:   p.ImagesCount,
		IsPublished:   p.IsPublished,
		CreatedAt:     p.CreatedAt,
	}
}

// Products GET RouteGroup + ProductsRoute.
func (h *OrdersHandler) Products(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	products, err := h.settlementService.ListProducts(ctx, defaultProductsLimit)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	resp := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, NewProductResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

type CreateProductParams struct {
	Title         string `binding:"required,max=255" json:"title"`
	UnitCoinPrice int64  `binding:"required,gt=0"    json:"unitCoinPrice"`
	Stock         int32  `binding:"gte=0"            json:"stock"`
	ImagesCount   int32  `binding:"required,gt=0"    json:"imagesCount"`
}

// CreateProduct POST RouteGroup + ProductsRoute. Доступен вендору. Товар создается
// неопубликованным - публичная видимость открывается подтверждением подписки.
func (h *OrdersHandler) CreateProduct(c *gin.Context) {
	var params CreateProductParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	product, err := h.settlementService.CreateProduct(ctx, repoargs.ProductCreate{
		VendorID:      getAccountIDFromContext(c),
		Title:         params.Title,
		UnitCoinPrice: params.UnitCoinPrice,
		Stock:         params.Stock,
		ImagesCount:   params.ImagesCount,
	})
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusCreated, NewProductResponse(*product))
}

type OrderItemParams struct {
	ProductID int64 `binding:"required,gt=0" json:"productId"`
	Quantity  int32 `binding:"required,gt=0" json:"quantity"`
}

type CreateOrderParams struct {
	IdempotencyKey string            `binding:"required,uuid"        json:"idempotencyKey"`
	Items          []OrderItemParams `binding:"required,min=1,dive"  json:"items"`
}

type OrderItemResponse struct {
	ProductID     int64 `json:"productId"`
	VendorID      int64 `json:"vendorId"`
	Quantity      int32 `json:"quantity"`
	UnitCoinPrice int64 `json:"unitCoinPrice"`
}

type OrderResponse struct {
	ID         int64               `json:"id"`
	Number     string              `json:"number"`
	TotalCoins int64               `json:"totalCoins"`
	CreatedAt  time.Time           `json:"createdAt"`
	Items      []OrderItemResponse `json:"items"`
}

func NewOrderResponse(o domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:     item.ProductID,
			VendorID:      item.VendorID,
			Quantity:      item.Quantity,
			UnitCoinPrice: item.UnitCoinPrice,
		})
	}
	return OrderResponse{
		ID:         o.ID,
		Number:     o.Number,
		TotalCoins: o.TotalCoins,
		CreatedAt:  o.CreatedAt,
		Items:      items,
	}
}

// Create POST RouteGroup + OrdersRoute. Проводит покупку за монеты. Повтор с тем же
// idempotencyKey возвращает уже созданный заказ без повторного списания.
//
// Коды ошибок:
//   - 402 - не хватает монет;
//   - 403 - отправка переводов заблокирована админом;
//   - 422 - некорректная позиция, товар недоступен или остатка не хватает.
func (h *OrdersHandler) Create(c *gin.Context) {
	var params CreateOrderParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	items := make([]service.LineItem, 0, len(params.Items))
	for _, item := range params.Items {
		items = append(items, service.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.settlementService.SettlePurchase(
		ctx, getAccountIDFromContext(c), params.IdempotencyKey, items)
	if err != nil {
		var lineItemErr *domain.InvalidLineItemError
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			_ = c.AbortWithError(http.StatusPaymentRequired, errors.New("insufficient coins")).
				SetType(gin.ErrorTypePublic)
		case errors.Is(err, domain.ErrTransferBlocked):
			_ = c.AbortWithError(http.StatusForbidden, errors.New("transfers are blocked for this account")).
				SetType(gin.ErrorTypePublic)
		case errors.As(err, &lineItemErr),
			errors.Is(err, domain.ErrProductUnavailable),
			errors.Is(err, domain.ErrStockExceeded):
			_ = c.AbortWithError(http.StatusUnprocessableEntity, err).SetType(gin.ErrorTypePublic)
		default:
			_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		}
		return
	}

	c.JSON(http.StatusOK, NewOrderResponse(*order))
}

// Index GET RouteGroup + OrdersRoute. Заказы авторизованного покупателя.
func (h *OrdersHandler) Index(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	orders, err := h.settlementService.GetOrders(ctx, getAccountIDFromContext(c))
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, NewOrderResponse(o))
	}
	c.JSON(http.StatusOK, resp)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrPasswordMissMatch = errors.New("password mismatch")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrUnknown           = errors.New("unknown error")

	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferBlocked   = errors.New("transfer blocked")
	ErrOwnerConflict     = errors.New("owner conflict")

	// ErrSubscriptionTerminal возвращается при попытке перевести подписку из
	// терминального статуса (expired/cancelled). Для шедулера это no-op, не ошибка.
	ErrSubscriptionTerminal = errors.New("subscription already terminal")

	ErrProductUnavailable = errors.New("product unavailable")
	ErrStockExceeded      = errors.New("stock exceeded")
)

// InvalidLineItemError - ошибка валидации позиции заказа до начала расчетов.
type InvalidLineItemError struct {
	ProductID int64
	Reason    string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item for product %d: %s", e.ProductID, e.Reason)
}

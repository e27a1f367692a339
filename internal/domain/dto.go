package domain

import "fmt"

// Role - закрытый набор ролей. Сырые строки из токена конвертируются в Role один раз
// на границе аутентификации и дальше по коду не расползаются.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSubAdmin Role = "subadmin"
	RoleVendor   Role = "vendor"
	RoleClient   Role = "client"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleSubAdmin, RoleVendor, RoleClient:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// CanDistribute сообщает, может ли роль раздавать монеты другим счетам.
func (r Role) CanDistribute() bool {
	return r == RoleAdmin || r == RoleSubAdmin
}

type TransactionKind string

const (
	TransactionEarn            TransactionKind = "earn"
	TransactionRedeem          TransactionKind = "redeem"
	TransactionTransferSend    TransactionKind = "transfer_send"
	TransactionTransferReceive TransactionKind = "transfer_receive"
	TransactionPurchase        TransactionKind = "purchase"
	TransactionSale            TransactionKind = "sale"
	TransactionBonus           TransactionKind = "bonus"
)

// BlockedBySendOverride сообщает, попадает ли операция под флаг SendBlocked.
// Флаги блокировки распространяются только на переводы между счетами,
// покупки и начисления за просмотры под них не попадают.
func (k TransactionKind) BlockedBySendOverride() bool {
	return k == TransactionTransferSend
}

// BlockedByReceiveOverride сообщает, попадает ли операция под флаг ReceiveBlocked.
func (k TransactionKind) BlockedByReceiveOverride() bool {
	return k == TransactionTransferReceive
}

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Terminal сообщает, что из статуса нет исходящих переходов.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionExpired || s == SubscriptionCancelled
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

package repoargs

type OrderCreate struct {
	BuyerID        int64
	Number         string
	IdempotencyKey string
	TotalCoins     int64
	Items          []OrderItemCreate
}

type OrderItemCreate struct {
	ProductID     int64
	VendorID      int64
	Quantity      int32
	UnitCoinPrice int64
}

type ProductCreate struct {
	VendorID      int64
	Title         string
	UnitCoinPrice int64
	Stock         int32
	ImagesCount   int32
}

type VideoCreate struct {
	Title            string
	DurationSeconds  int32
	UseTimeBased     bool
	CoinsReward      int64
	CoinsPerInterval int64
	IntervalSeconds  int32
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

// fakeStore - in-memory хранилище для сервисных тестов. Репозитории поверх него
// повторяют контракты pgrepo: условное изменение баланса, guarded апдейты статусов,
// нарушение уникальности idempotency_key.
//
// fakeUOW.Do держит мьютекс хранилища на всю транзакцию и откатывает снапшот при
// ошибке - конкурентные транзакции сериализуются, как строчные блокировки в postgres.
type fakeStore struct {
	mu  sync.Mutex
	seq int64

	accounts      map[int64]domain.Account
	transactions  []domain.Transaction
	videos        map[int64]domain.Video
	watchRecords  map[int64]domain.VideoWatchRecord
	products      map[int64]domain.Product
	subscriptions map[int64]domain.ProductSubscription
	orders        map[int64]domain.Order
	ordersByKey   map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      make(map[int64]domain.Account),
		videos:        make(map[int64]domain.Video),
		watchRecords:  make(map[int64]domain.VideoWatchRecord),
		products:      make(map[int64]domain.Product),
		subscriptions: make(map[int64]domain.ProductSubscription),
		orders:        make(map[int64]domain.Order),
		ordersByKey:   make(map[string]int64),
	}
}

func (s *fakeStore) nextID() int64 {
	s.seq++
	return s.seq
}

type storeSnapshot struct {
	seq           int64
	accounts      map[int64]domain.Account
	transactions  []domain.Transaction
	videos        map[int64]domain.Video
	watchRecords  map[int64]domain.VideoWatchRecord
	products      map[int64]domain.Product
	subscriptions map[int64]domain.ProductSubscription
	orders        map[int64]domain.Order
	ordersByKey   map[string]int64
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *fakeStore) snapshot() storeSnapshot {
	return storeSnapshot{
		seq:           s.seq,
		accounts:      copyMap(s.accounts),
		transactions:  append([]domain.Transaction(nil), s.transactions...),
		videos:        copyMap(s.videos),
		watchRecords:  copyMap(s.watchRecords),
		products:      copyMap(s.products),
		subscriptions: copyMap(s.subscriptions),
		orders:        copyMap(s.orders),
		ordersByKey:   copyMap(s.ordersByKey),
	}
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.seq = snap.seq
	s.accounts = snap.accounts
	s.transactions = snap.transactions
	s.videos = snap.videos
	s.watchRecords = snap.watchRecords
	s.products = snap.products
	s.subscriptions = snap.subscriptions
	s.orders = snap.orders
	s.ordersByKey = snap.ordersByKey
}

type fakeUOW struct {
	store *fakeStore
}

func newFakeUOW() *fakeUOW {
	return &fakeUOW{store: newFakeStore()}
}

func (u *fakeUOW) Register(uow.RepositoryName, uow.RepositoryFactory) error { return nil }

func (u *fakeUOW) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	return makeFakeRepo(u.store, name, false)
}

func (u *fakeUOW) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	snap := u.store.snapshot()
	if err := fn(ctx, &fakeTX{store: u.store}); err != nil {
		u.store.restore(snap)
		return err
	}
	return nil
}

type fakeTX struct {
	store *fakeStore
}

func (t *fakeTX) Get(name uow.RepositoryName) (uow.Repository, error) {
	return makeFakeRepo(t.store, name, true)
}

func makeFakeRepo(store *fakeStore, name uow.RepositoryName, inTx bool) (uow.Repository, error) {
	switch repoargs.RepositoryName(name) {
	case repoargs.AccountRepoName:
		return &fakeAccountRepo{store: store, inTx: inTx}, nil
	case repoargs.TransactionRepoName:
		return &fakeTransactionRepo{store: store, inTx: inTx}, nil
	case repoargs.VideoRepoName:
		return &fakeVideoRepo{store: store, inTx: inTx}, nil
	case repoargs.WatchRecordRepoName:
		return &fakeWatchRecordRepo{store: store, inTx: inTx}, nil
	case repoargs.ProductRepoName:
		return &fakeProductRepo{store: store, inTx: inTx}, nil
	case repoargs.SubscriptionRepoName:
		return &fakeSubscriptionRepo{store: store, inTx: inTx}, nil
	case repoargs.OrderRepoName:
		return &fakeOrderRepo{store: store, inTx: inTx}, nil
	default:
		return nil, uow.ErrRepositoryNotRegistered
	}
}

// lockStore берет мьютекс только вне транзакции: внутри fakeUOW.Do он уже взят.
func lockStore(store *fakeStore, inTx bool) func() {
	if inTx {
		return func() {}
	}
	store.mu.Lock()
	return store.mu.Unlock
}

type fakeAccountRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeAccountRepo) Create(_ context.Context, args repoargs.CreateAccount) (*domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	for _, account := range r.store.accounts {
		if account.Email == args.Email {
			return nil, domain.ErrDuplicateKey
		}
	}
	account := domain.Account{
		ID:        r.store.nextID(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Email:     args.Email,
		Password:  args.Password,
		Role:      args.Role,
	}
	r.store.accounts[account.ID] = account
	return &account, nil
}

func (r *fakeAccountRepo) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	account, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &account, nil
}

func (r *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	for _, account := range r.store.accounts {
		if account.Email == email {
			acc := account
			return &acc, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *fakeAccountRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	var accounts []domain.Account
	for _, account := range r.store.accounts {
		if account.Role == role {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *fakeAccountRepo) AdjustCoins(_ context.Context, accountID, delta int64) (*domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	account, ok := r.store.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if account.CoinsBalance+delta < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	account.CoinsBalance += delta
	account.UpdatedAt = time.Now()
	r.store.accounts[accountID] = account
	return &account, nil
}

func (r *fakeAccountRepo) SetTransferOverride(
	_ context.Context,
	accountID int64,
	sendBlocked, receiveBlocked bool,
) (*domain.Account, error) {
	defer lockStore(r.store, r.inTx)()
	account, ok := r.store.accounts[accountID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	account.SendBlocked = sendBlocked
	account.ReceiveBlocked = receiveBlocked
	r.store.accounts[accountID] = account
	return &account, nil
}

type fakeTransactionRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeTransactionRepo) Create(_ context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error) {
	defer lockStore(r.store, r.inTx)()
	transaction := domain.Transaction{
		ID:             r.store.nextID(),
		CreatedAt:      time.Now(),
		AccountID:      args.AccountID,
		Kind:           args.Kind,
		Amount:         args.Amount,
		Description:    args.Description,
		VideoID:        args.VideoID,
		WatchSeconds:   args.WatchSeconds,
		CounterpartyID: args.CounterpartyID,
		OrderNumber:    args.OrderNumber,
	}
	r.store.transactions = append(r.store.transactions, transaction)
	return &transaction, nil
}

func (r *fakeTransactionRepo) GetByAccountID(
	_ context.Context,
	accountID int64,
	limit uint,
) ([]domain.Transaction, error) {
	defer lockStore(r.store, r.inTx)()
	var transactions []domain.Transaction
	for i := len(r.store.transactions) - 1; i >= 0 && uint(len(transactions)) < limit; i-- {
		if r.store.transactions[i].AccountID == accountID {
			transactions = append(transactions, r.store.transactions[i])
		}
	}
	return transactions, nil
}

type fakeVideoRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeVideoRepo) Create(_ context.Context, args repoargs.VideoCreate) (*domain.Video, error) {
	defer lockStore(r.store, r.inTx)()
	video := domain.Video{
		ID:        r.store.nextID(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Title:     args.Title,
		Policy: domain.RewardPolicy{
			TimeBased:        args.UseTimeBased,
			DurationSeconds:  args.DurationSeconds,
			CoinsReward:      args.CoinsReward,
			CoinsPerInterval: args.CoinsPerInterval,
			IntervalSeconds:  args.IntervalSeconds,
		},
	}
	r.store.videos[video.ID] = video
	return &video, nil
}

func (r *fakeVideoRepo) FindByID(_ context.Context, id int64) (*domain.Video, error) {
	defer lockStore(r.store, r.inTx)()
	video, ok := r.store.videos[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &video, nil
}

func (r *fakeVideoRepo) List(_ context.Context, _ uint) ([]domain.Video, error) {
	defer lockStore(r.store, r.inTx)()
	var videos []domain.Video
	for _, video := range r.store.videos {
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })
	return videos, nil
}

type fakeWatchRecordRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeWatchRecordRepo) Upsert(
	_ context.Context,
	args repoargs.UpsertWatchProgress,
) (*domain.VideoWatchRecord, error) {
	defer lockStore(r.store, r.inTx)()
	for id, record := range r.store.watchRecords {
		if record.AccountID == args.AccountID && record.VideoID == args.VideoID {
			// прогресс не регрессирует, снимок политики не перезаписывается
			if args.WatchSeconds > record.WatchSeconds {
				record.WatchSeconds = args.WatchSeconds
			}
			record.LastWatchedAt = time.Now()
			record.UpdatedAt = time.Now()
			r.store.watchRecords[id] = record
			return &record, nil
		}
	}
	record := domain.VideoWatchRecord{
		ID:            r.store.nextID(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
		AccountID:     args.AccountID,
		VideoID:       args.VideoID,
		WatchSeconds:  args.WatchSeconds,
		LastWatchedAt: time.Now(),
		Policy:        args.Policy,
	}
	r.store.watchRecords[record.ID] = record
	return &record, nil
}

func (r *fakeWatchRecordRepo) AddCoins(
	_ context.Context,
	id int64,
	delta int64,
	completed bool,
) (*domain.VideoWatchRecord, error) {
	defer lockStore(r.store, r.inTx)()
	record, ok := r.store.watchRecords[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	record.CoinsEarned += delta
	record.Completed = record.Completed || completed
	record.UpdatedAt = time.Now()
	r.store.watchRecords[id] = record
	return &record, nil
}

func (r *fakeWatchRecordRepo) FindByAccountAndVideo(
	_ context.Context,
	accountID, videoID int64,
) (*domain.VideoWatchRecord, error) {
	defer lockStore(r.store, r.inTx)()
	for _, record := range r.store.watchRecords {
		if record.AccountID == accountID && record.VideoID == videoID {
			rec := record
			return &rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

type fakeProductRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeProductRepo) Create(_ context.Context, args repoargs.ProductCreate) (*domain.Product, error) {
	defer lockStore(r.store, r.inTx)()
	product := domain.Product{
		ID:            r.store.nextID(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
		VendorID:      args.VendorID,
		Title:         args.Title,
		UnitCoinPrice: args.UnitCoinPrice,
		Stock:         args.Stock,
		ImagesCount:   args.ImagesCount,
	}
	r.store.products[product.ID] = product
	return &product, nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	defer lockStore(r.store, r.inTx)()
	product, ok := r.store.products[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &product, nil
}

func (r *fakeProductRepo) ListPublished(_ context.Context, _ uint) ([]domain.Product, error) {
	defer lockStore(r.store, r.inTx)()
	var products []domain.Product
	for _, product := range r.store.products {
		if product.IsPublished {
			products = append(products, product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *fakeProductRepo) DecrementStock(_ context.Context, productID int64, qty int32) error {
	defer lockStore(r.store, r.inTx)()
	product, ok := r.store.products[productID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if product.Stock < qty {
		return domain.ErrStockExceeded
	}
	product.Stock -= qty
	r.store.products[productID] = product
	return nil
}

func (r *fakeProductRepo) SetPublication(
	_ context.Context,
	productID int64,
	published bool,
	currentSubscriptionID *int64,
) error {
	defer lockStore(r.store, r.inTx)()
	product, ok := r.store.products[productID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	product.IsPublished = published
	product.CurrentSubscriptionID = currentSubscriptionID
	r.store.products[productID] = product
	return nil
}

type fakeSubscriptionRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeSubscriptionRepo) Create(
	_ context.Context,
	args repoargs.SubscriptionCreate,
) (*domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	subscription := domain.ProductSubscription{
		ID:                     r.store.nextID(),
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
		ProductID:              args.ProductID,
		VendorID:               args.VendorID,
		StartDate:              args.StartDate,
		EndDate:                args.EndDate,
		Status:                 domain.SubscriptionPending,
		PaymentStatus:          domain.PaymentPending,
		TotalAmount:            args.TotalAmount,
		PreviousSubscriptionID: args.PreviousSubscriptionID,
		RenewalCount:           args.RenewalCount,
	}
	r.store.subscriptions[subscription.ID] = subscription
	return &subscription, nil
}

func (r *fakeSubscriptionRepo) FindByID(_ context.Context, id int64) (*domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	subscription, ok := r.store.subscriptions[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &subscription, nil
}

func (r *fakeSubscriptionRepo) GetByVendor(_ context.Context, vendorID int64) ([]domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	var subscriptions []domain.ProductSubscription
	for _, subscription := range r.store.subscriptions {
		if subscription.VendorID == vendorID {
			subscriptions = append(subscriptions, subscription)
		}
	}
	sort.Slice(subscriptions, func(i, j int) bool { return subscriptions[i].ID > subscriptions[j].ID })
	return subscriptions, nil
}

func (r *fakeSubscriptionRepo) Activate(_ context.Context, id int64) (*domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	subscription, ok := r.store.subscriptions[id]
	if !ok || subscription.Status != domain.SubscriptionPending || subscription.IsDeleted {
		return nil, domain.ErrRecordNotFound
	}
	subscription.Status = domain.SubscriptionActive
	subscription.PaymentStatus = domain.PaymentPaid
	subscription.UpdatedAt = time.Now()
	r.store.subscriptions[id] = subscription
	return &subscription, nil
}

func (r *fakeSubscriptionRepo) Cancel(_ context.Context, id int64) (*domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	subscription, ok := r.store.subscriptions[id]
	if !ok ||
		(subscription.Status != domain.SubscriptionPending && subscription.Status != domain.SubscriptionActive) {
		return nil, domain.ErrRecordNotFound
	}
	subscription.Status = domain.SubscriptionCancelled
	subscription.IsDeleted = true
	subscription.UpdatedAt = time.Now()
	r.store.subscriptions[id] = subscription
	return &subscription, nil
}

func (r *fakeSubscriptionRepo) GetDueForExpiry(
	_ context.Context,
	now time.Time,
	limit uint,
) ([]domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	var due []domain.ProductSubscription
	for _, subscription := range r.store.subscriptions {
		if subscription.Status == domain.SubscriptionActive &&
			!subscription.IsDeleted &&
			!subscription.EndDate.After(now) {
			due = append(due, subscription)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndDate.Before(due[j].EndDate) })
	if uint(len(due)) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeSubscriptionRepo) MarkExpired(_ context.Context, id int64) (*domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	subscription, ok := r.store.subscriptions[id]
	if !ok || subscription.Status != domain.SubscriptionActive || subscription.IsDeleted {
		return nil, domain.ErrRecordNotFound
	}
	subscription.Status = domain.SubscriptionExpired
	subscription.UpdatedAt = time.Now()
	r.store.subscriptions[id] = subscription
	return &subscription, nil
}

func (r *fakeSubscriptionRepo) MarkNotified(_ context.Context, id int64) (bool, error) {
	defer lockStore(r.store, r.inTx)()
	subscription, ok := r.store.subscriptions[id]
	if !ok || subscription.ExpiryNotificationSent {
		return false, nil
	}
	subscription.ExpiryNotificationSent = true
	r.store.subscriptions[id] = subscription
	return true, nil
}

func (r *fakeSubscriptionRepo) GetExpiringWithin(
	_ context.Context,
	now time.Time,
	window time.Duration,
) ([]domain.ProductSubscription, error) {
	defer lockStore(r.store, r.inTx)()
	deadline := now.Add(window)
	var expiring []domain.ProductSubscription
	for _, subscription := range r.store.subscriptions {
		if subscription.Status == domain.SubscriptionActive &&
			!subscription.IsDeleted &&
			subscription.EndDate.After(now) &&
			!subscription.EndDate.After(deadline) {
			expiring = append(expiring, subscription)
		}
	}
	sort.Slice(expiring, func(i, j int) bool { return expiring[i].EndDate.Before(expiring[j].EndDate) })
	return expiring, nil
}

type fakeOrderRepo struct {
	store *fakeStore
	inTx  bool
}

func (r *fakeOrderRepo) Create(_ context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	defer lockStore(r.store, r.inTx)()
	if _, exists := r.store.ordersByKey[args.IdempotencyKey]; exists {
		return nil, domain.ErrDuplicateKey
	}
	order := domain.Order{
		ID:             r.store.nextID(),
		CreatedAt:      time.Now(),
		Number:         args.Number,
		BuyerID:        args.BuyerID,
		TotalCoins:     args.TotalCoins,
		IdempotencyKey: args.IdempotencyKey,
	}
	for _, item := range args.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:            r.store.nextID(),
			OrderID:       order.ID,
			ProductID:     item.ProductID,
			VendorID:      item.VendorID,
			Quantity:      item.Quantity,
			UnitCoinPrice: item.UnitCoinPrice,
		})
	}
	r.store.orders[order.ID] = order
	r.store.ordersByKey[args.IdempotencyKey] = order.ID
	return &order, nil
}

func (r *fakeOrderRepo) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	defer lockStore(r.store, r.inTx)()
	orderID, ok := r.store.ordersByKey[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	order := r.store.orders[orderID]
	return &order, nil
}

func (r *fakeOrderRepo) GetByBuyer(_ context.Context, buyerID int64) ([]domain.Order, error) {
	defer lockStore(r.store, r.inTx)()
	var orders []domain.Order
	for _, order := range r.store.orders {
		if order.BuyerID == buyerID {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

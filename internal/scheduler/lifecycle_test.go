package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidmaster/bidmaster/config"
	"github.com/bidmaster/bidmaster/internal/api/admin"
	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/api/products"
	"github.com/bidmaster/bidmaster/internal/mirror"
	"github.com/bidmaster/bidmaster/internal/push"
	"github.com/bidmaster/bidmaster/internal/scheduler"
	"github.com/bidmaster/bidmaster/internal/types"
)

// marketStore is an in-memory stand-in for the relational store, shared by
// the product, admin and scheduler repositories so a scenario can drive the
// whole auction lifecycle through the real services.
type marketStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*types.Product
	bids     map[uuid.UUID][]types.Bid
	orders   map[uuid.UUID]types.Order
	names    map[uuid.UUID]string
}

func newMarketStore() *marketStore {
	return &marketStore{
		products: map[uuid.UUID]*types.Product{},
		bids:     map[uuid.UUID][]types.Bid{},
		orders:   map[uuid.UUID]types.Order{},
		names:    map[uuid.UUID]string{},
	}
}

func (s *marketStore) addUser(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.names[id] = name
	return id
}

func (s *marketStore) expire(productID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productID].AuctionEndTime = time.Now().Add(-time.Second)
}

func (s *marketStore) ordersFor(productID uuid.UUID) []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[productID]; ok {
		return []types.Order{o}
	}
	return nil
}

// --- products.ProductRepo ---

func (s *marketStore) Create(_ context.Context, params products.CreateProductParams) (*types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p := &types.Product{
		ID:             uuid.New(),
		SellerID:       params.SellerID,
		Title:          params.Title,
		Description:    params.Description,
		ImageURL:       params.ImageURL,
		CategoryID:     params.CategoryID,
		StartingPrice:  params.StartingPrice,
		CurrentPrice:   params.StartingPrice,
		Status:         types.ProductPending,
		AuctionEndTime: params.AuctionEndTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.products[p.ID] = p
	out := *p
	return &out, nil
}

func (s *marketStore) GetByID(_ context.Context, id uuid.UUID) (*types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *marketStore) GetDetail(ctx context.Context, id uuid.UUID) (*types.ProductDetail, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.ProductDetail{Product: *p}, nil
}

func (s *marketStore) ListApproved(_ context.Context, _ products.ListFilter) ([]types.ProductDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []types.ProductDetail{}
	for _, p := range s.products {
		if p.Status == types.ProductApproved {
			items = append(items, types.ProductDetail{Product: *p})
		}
	}
	return items, nil
}

func (s *marketStore) ListBySeller(_ context.Context, sellerID uuid.UUID, status *types.ProductStatus) ([]types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []types.Product{}
	for _, p := range s.products {
		if p.SellerID != sellerID {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		items = append(items, *p)
	}
	return items, nil
}

func (s *marketStore) PlaceBid(_ context.Context, productID, bidderID uuid.UUID, amount float64) (*products.BidOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.Status != types.ProductApproved ||
		!p.AuctionEndTime.After(time.Now()) || p.CurrentPrice >= amount {
		return nil, types.ErrConflict
	}
	previous := p.HighestBidderID
	p.CurrentPrice = amount
	p.HighestBidderID = &bidderID
	bid := types.Bid{
		ID:        uuid.New(),
		ProductID: productID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	s.bids[productID] = append(s.bids[productID], bid)
	return &products.BidOutcome{
		PreviousBidderID: previous,
		TotalBids:        int64(len(s.bids[productID])),
		PlacedAt:         bid.CreatedAt,
	}, nil
}

func (s *marketStore) ListCategories(_ context.Context) ([]types.Category, error) {
	return []types.Category{}, nil
}

func (s *marketStore) UserName(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[id]
	if !ok {
		return "", types.ErrNotFound
	}
	return name, nil
}

// --- admin.AdminRepo ---

func (s *marketStore) ListUsers(_ context.Context, _ *types.UserStatus) ([]types.User, error) {
	return []types.User{}, nil
}

func (s *marketStore) SetUserStatus(_ context.Context, _ uuid.UUID, _ types.UserStatus) (*types.User, error) {
	return nil, types.ErrNotFound
}

func (s *marketStore) DeleteUser(_ context.Context, _ uuid.UUID) error {
	return types.ErrNotFound
}

func (s *marketStore) ListProductsForReview(_ context.Context, status types.ProductStatus) ([]admin.ModerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []admin.ModerationItem{}
	for _, p := range s.products {
		if p.Status == status {
			items = append(items, admin.ModerationItem{Product: *p, SellerName: s.names[p.SellerID]})
		}
	}
	return items, nil
}

func (s *marketStore) ApproveProduct(_ context.Context, id uuid.UUID) (*types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Status != types.ProductPending {
		return nil, types.ErrConflict
	}
	p.Status = types.ProductApproved
	p.AuctionEndTime = time.Now().Add(p.AuctionEndTime.Sub(p.CreatedAt))
	out := *p
	return &out, nil
}

func (s *marketStore) RejectProduct(_ context.Context, id uuid.UUID) (*types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Status != types.ProductPending {
		return nil, types.ErrConflict
	}
	p.Status = types.ProductRejected
	out := *p
	return &out, nil
}

func (s *marketStore) Dashboard(_ context.Context) (*admin.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := admin.DashboardStats{TotalOrders: int64(len(s.orders))}
	for _, p := range s.products {
		stats.TotalProducts++
		switch p.Status {
		case types.ProductPending:
			stats.PendingProducts++
		case types.ProductApproved:
			stats.ApprovedProducts++
		case types.ProductSold:
			stats.SoldProducts++
		}
	}
	return &stats, nil
}

// --- scheduler.StoreRepo ---

func (s *marketStore) ExpiredApprovedIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []uuid.UUID{}
	for id, p := range s.products {
		if len(ids) == limit {
			break
		}
		if p.Status == types.ProductApproved && !p.AuctionEndTime.After(time.Now()) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *marketStore) CloseAuction(_ context.Context, productID uuid.UUID) (*scheduler.ClosedAuction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.Status != types.ProductApproved || p.AuctionEndTime.After(time.Now()) {
		return nil, nil
	}
	p.Status = types.ProductSold
	return &scheduler.ClosedAuction{
		ProductID:       p.ID,
		Title:           p.Title,
		SellerID:        p.SellerID,
		FinalPrice:      p.CurrentPrice,
		HighestBidderID: p.HighestBidderID,
	}, nil
}

func (s *marketStore) CreateOrder(_ context.Context, productID, buyerID uuid.UUID, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[productID]; ok {
		return nil
	}
	s.orders[productID] = types.Order{
		ID:        uuid.New(),
		ProductID: productID,
		BuyerID:   buyerID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *marketStore) AuctionState(_ context.Context, productID uuid.UUID) (types.ProductStatus, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return "", time.Time{}, types.ErrNotFound
	}
	return p.Status, p.AuctionEndTime, nil
}

// memoryDocStore is an in-memory mirror document store.
type memoryDocStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	history map[string][]map[string]interface{}
}

func newMemoryDocStore() *memoryDocStore {
	return &memoryDocStore{
		docs:    map[string]map[string]interface{}{},
		history: map[string][]map[string]interface{}{},
	}
}

func (s *memoryDocStore) Merge(_ context.Context, docID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		doc = map[string]interface{}{}
		s.docs[docID] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *memoryDocStore) AppendBid(_ context.Context, docID string, entry map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[docID] = append(s.history[docID], entry)
	return nil
}

func (s *memoryDocStore) doc(docID string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[docID]
}

// notificationLog records dispatched log rows in order; tokens are never
// registered so the dispatcher stays on the log-row path.
type notificationLog struct {
	mu   sync.Mutex
	rows []loggedNotification
}

type loggedNotification struct {
	userID uuid.UUID
	event  types.NotificationEvent
	body   string
}

func (l *notificationLog) Append(_ context.Context, userID uuid.UUID, event types.NotificationEvent, _, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, loggedNotification{userID: userID, event: event, body: message})
	return nil
}

func (l *notificationLog) ListForUser(_ context.Context, _ uuid.UUID, _ *bool, _ int) ([]types.Notification, error) {
	return nil, nil
}

func (l *notificationLog) MarkRead(_ context.Context, _, _ uuid.UUID) (*types.Notification, error) {
	return nil, types.ErrNotFound
}

func (l *notificationLog) SaveToken(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (l *notificationLog) TokensFor(_ context.Context, _ uuid.UUID) ([]string, error) {
	return nil, nil
}

func (l *notificationLog) events() []loggedNotification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]loggedNotification, len(l.rows))
	copy(out, l.rows)
	return out
}

type lifecycleFixture struct {
	store      *marketStore
	docs       *memoryDocStore
	notifLog   *notificationLog
	productSvc products.Service
	adminSvc   admin.Service
	closer     *scheduler.Closer
}

func newLifecycleFixture() *lifecycleFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMarketStore()
	docs := newMemoryDocStore()
	notifLog := &notificationLog{}

	syncer := mirror.NewSyncer(docs, logger)
	dispatcher := notifications.NewDispatcher(notifLog, &push.LogSender{Logger: logger}, logger)
	closer := scheduler.NewCloser(store, syncer, dispatcher, config.SchedulerConfig{}, logger)
	syncer.SetOnWrite(closer.Recheck)

	return &lifecycleFixture{
		store:      store,
		docs:       docs,
		notifLog:   notifLog,
		productSvc: products.NewServiceImpl(store, syncer, dispatcher, logger),
		adminSvc:   admin.NewServiceImpl(store, syncer, dispatcher, logger),
		closer:     closer,
	}
}

func TestAuctionLifecycle_SubmitApproveBidSweep(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	sellerID := f.store.addUser("Layla")
	buyerID := f.store.addUser("Ali")

	product, err := f.productSvc.Create(ctx, sellerID, products.CreateProductRequest{
		Title:         "Vintage Watch",
		StartingPrice: 100,
		DurationDays:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, types.ProductPending, product.Status)

	// Bidding stays closed until moderation approves the lot.
	_, err = f.productSvc.PlaceBid(ctx, product.ID, buyerID, 150)
	assert.ErrorIs(t, err, types.ErrConflict)

	approved, err := f.adminSvc.ApproveProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProductApproved, approved.Status)

	afterBid, err := f.productSvc.PlaceBid(ctx, product.ID, buyerID, 150)
	require.NoError(t, err)
	assert.Equal(t, 150.0, afterBid.CurrentPrice)
	assert.Equal(t, buyerID, *afterBid.HighestBidderID)

	f.store.expire(product.ID)
	f.closer.Sweep(ctx)

	final, err := f.store.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProductSold, final.Status)

	orders := f.store.ordersFor(product.ID)
	require.Len(t, orders, 1)
	assert.Equal(t, buyerID, orders[0].BuyerID)
	assert.Equal(t, 150.0, orders[0].Amount)

	// A second sweep must not settle or notify twice.
	f.closer.Sweep(ctx)
	assert.Len(t, f.store.ordersFor(product.ID), 1)

	events := f.notifLog.events()
	require.Len(t, events, 3)
	assert.Equal(t, sellerID, events[0].userID)
	assert.Equal(t, types.EventProductApproved, events[0].event)
	assert.Equal(t, sellerID, events[1].userID)
	assert.Equal(t, types.EventNewBid, events[1].event)
	assert.Equal(t, buyerID, events[2].userID)
	assert.Equal(t, types.EventAuctionWon, events[2].event)
	assert.Contains(t, events[2].body, "$150")
	assert.Contains(t, events[2].body, "Vintage Watch")

	doc := f.docs.doc(product.ID.String())
	require.NotNil(t, doc)
	assert.Equal(t, string(types.ProductSold), doc["status"])
	assert.Equal(t, 150.0, doc["current_price"])
	assert.Equal(t, int64(1), doc["total_bids"])
}

func TestAuctionLifecycle_NoBidsClosesWithoutSettlement(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	sellerID := f.store.addUser("Layla")

	product, err := f.productSvc.Create(ctx, sellerID, products.CreateProductRequest{
		Title:         "Old Radio",
		StartingPrice: 40,
		DurationDays:  1,
	})
	require.NoError(t, err)
	_, err = f.adminSvc.ApproveProduct(ctx, product.ID)
	require.NoError(t, err)

	f.store.expire(product.ID)
	f.closer.Sweep(ctx)

	final, err := f.store.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProductSold, final.Status)
	assert.Empty(t, f.store.ordersFor(product.ID))

	// Only the approval notification: nobody won anything.
	events := f.notifLog.events()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventProductApproved, events[0].event)
}

package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/config"
	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/session"
	"github.com/driphype/shopbot/internal/storage"
	"github.com/driphype/shopbot/internal/wizard"
)

const adminID int64 = 100

type fakeStore struct {
	mu       sync.Mutex
	products []storage.Product
	orders   []storage.Order
	users    map[int64]storage.User
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]storage.User), nextID: 1}
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]storage.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.Product(nil), f.products...), nil
}

func (f *fakeStore) GetProduct(ctx context.Context, id int64) (storage.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return storage.Product{}, storage.ErrNotFound
}

func (f *fakeStore) InsertProduct(ctx context.Context, p storage.Product) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID
	f.nextID++
	f.products = append(f.products, p)
	return p.ID, nil
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) InsertOrder(ctx context.Context, o storage.Order) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.nextID
	f.nextID++
	f.orders = append(f.orders, o)
	return o.ID, nil
}

func (f *fakeStore) ListRecentOrders(ctx context.Context, limit int) ([]storage.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]storage.Order(nil), f.orders...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, u storage.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID] = u
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestBot(t *testing.T) (*Bot, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	cfg := &config.Config{}
	cfg.Telegram.AdminID = adminID
	cfg.Webhook.BaseURL = "https://shop.example.com"
	engine := wizard.New(session.NewManager(), store)
	return &Bot{
		cfg:    cfg,
		store:  store,
		engine: engine,
		log:    logger.Component("tg"),
	}, store
}

func admin() *tele.User    { return &tele.User{ID: adminID, Username: "boss", FirstName: "Boss"} }
func customer() *tele.User { return &tele.User{ID: 200, Username: "alice", FirstName: "Alice"} }

func seedProduct(t *testing.T, store *fakeStore) int64 {
	t.Helper()
	id, err := store.InsertProduct(context.Background(), storage.Product{
		Name:        "Hoodie",
		Price:       decimal.NewFromInt(50),
		Category:    storage.CategoryMenswear,
		ProductType: storage.TypeShirt,
	})
	require.NoError(t, err)
	return id
}

func TestHandleStartUpsertsUser(t *testing.T) {
	b, store := newTestBot(t)
	v := b.handleStart(context.Background(), customer())

	assert.Contains(t, v.text, "Alice")
	require.NotNil(t, v.markup)

	u, ok := store.users[200]
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
	assert.False(t, u.IsAdmin)

	b.handleStart(context.Background(), admin())
	assert.True(t, store.users[adminID].IsAdmin)
}

func TestAdminActionsDeniedForCustomers(t *testing.T) {
	b, store := newTestBot(t)
	id := seedProduct(t, store)

	gated := []Action{
		{Kind: ActionAdminMenu},
		{Kind: ActionAddProduct},
		{Kind: ActionListProducts},
		{Kind: ActionDeleteMenu},
		{Kind: ActionListOrders},
		{Kind: ActionDelete, ID: id},
		{Kind: ActionConfirmDelete, ID: id},
		{Kind: ActionCategory, Payload: "kids"},
		{Kind: ActionProductType, Payload: "shirt"},
		{Kind: ActionStandardSizes},
		{Kind: ActionCancelAdd},
	}
	for _, a := range gated {
		v := b.handleAction(context.Background(), customer(), a)
		assert.Equal(t, accessDeniedView, v, "kind %d must be gated", a.Kind)
	}

	// Nothing was mutated through denied actions.
	products, _ := store.ListProducts(context.Background())
	assert.Len(t, products, 1)
	assert.False(t, b.engine.Active(customer().ID))
}

func TestPublicActions(t *testing.T) {
	b, _ := newTestBot(t)

	v := b.handleAction(context.Background(), customer(), Action{Kind: ActionAbout})
	assert.Contains(t, v.text, "About")

	v = b.handleAction(context.Background(), customer(), Action{Kind: ActionBackToStart})
	assert.Contains(t, v.text, "Welcome")

	v = b.handleAction(context.Background(), customer(), Action{Kind: ActionUnknown})
	assert.Equal(t, "Unknown action", v.alert)
}

func TestDeleteFlow(t *testing.T) {
	b, store := newTestBot(t)
	id := seedProduct(t, store)
	ctx := context.Background()

	v := b.handleAction(ctx, admin(), Action{Kind: ActionDelete, ID: id})
	assert.Contains(t, v.text, "sure")
	require.NotNil(t, v.markup)

	v = b.handleAction(ctx, admin(), Action{Kind: ActionConfirmDelete, ID: id})
	assert.Equal(t, "✅ Product deleted", v.alert)

	products, _ := store.ListProducts(ctx)
	assert.Empty(t, products)

	// Second confirm on the same id reports not found, not a crash.
	v = b.handleAction(ctx, admin(), Action{Kind: ActionConfirmDelete, ID: id})
	assert.Equal(t, "Product not found", v.alert)

	v = b.handleAction(ctx, admin(), Action{Kind: ActionDelete, ID: 999})
	assert.Equal(t, "Product not found", v.alert)
}

func TestWizardThroughActions(t *testing.T) {
	b, store := newTestBot(t)
	ctx := context.Background()
	sender := admin()

	v := b.handleAction(ctx, sender, Action{Kind: ActionAddProduct})
	assert.Contains(t, v.text, "name")

	for _, text := range []string{"Sneakers", "Fast ones", "99.99", "https://img"} {
		reply, consumed := b.handleText(ctx, sender, text)
		require.True(t, consumed)
		assert.Empty(t, reply.alert)
	}

	v = b.handleAction(ctx, sender, Action{Kind: ActionCategory, Payload: "menswear"})
	require.NotNil(t, v.markup)

	v = b.handleAction(ctx, sender, Action{Kind: ActionProductType, Payload: "shoes"})
	require.NotNil(t, v.markup)

	v = b.handleAction(ctx, sender, Action{Kind: ActionStandardSizes})
	assert.Contains(t, v.text, "added")

	products, _ := store.ListProducts(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, storage.TypeShoes, products[0].ProductType)
	assert.Len(t, products[0].Sizes, 17)
}

func TestWizardStepWithoutSession(t *testing.T) {
	b, _ := newTestBot(t)
	v := b.handleAction(context.Background(), admin(), Action{Kind: ActionStandardSizes})
	assert.Equal(t, "No product wizard in progress", v.alert)
}

func TestHandleTextOutsideWizard(t *testing.T) {
	b, _ := newTestBot(t)
	_, consumed := b.handleText(context.Background(), admin(), "hello")
	assert.False(t, consumed)
}

func TestCancelMidWizard(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	sender := admin()

	b.handleAction(ctx, sender, Action{Kind: ActionAddProduct})
	_, consumed := b.handleText(ctx, sender, "Jacket")
	require.True(t, consumed)

	v := b.handleAction(ctx, sender, Action{Kind: ActionCancelAdd})
	assert.Contains(t, v.text, "cancelled")
	assert.False(t, b.engine.Active(sender.ID))
}

func TestHandleOrder(t *testing.T) {
	b, store := newTestBot(t)
	ctx := context.Background()

	raw := `{"type":"order","products":[{"id":1,"qty":2},{"id":3,"qty":1}],"total":149.5}`
	confirmation, adminNote, err := b.handleOrder(ctx, customer(), raw)
	require.NoError(t, err)
	assert.Contains(t, confirmation.text, "Order #1 accepted")
	assert.Contains(t, adminNote.text, "@alice")

	require.Len(t, store.orders, 1)
	o := store.orders[0]
	assert.Equal(t, int64(200), o.UserID)
	assert.Equal(t, "149.5", o.TotalPrice.String())
	assert.JSONEq(t, `[{"id":1,"qty":2},{"id":3,"qty":1}]`, o.Items)
}

func TestHandleOrderIgnoresOtherPayloads(t *testing.T) {
	b, store := newTestBot(t)

	confirmation, adminNote, err := b.handleOrder(context.Background(), customer(), `{"type":"ping"}`)
	require.NoError(t, err)
	assert.Empty(t, confirmation.text)
	assert.Empty(t, adminNote.text)
	assert.Empty(t, store.orders)

	_, _, err = b.handleOrder(context.Background(), customer(), `not json`)
	assert.Error(t, err)
}

func TestListViews(t *testing.T) {
	b, store := newTestBot(t)
	ctx := context.Background()

	v := b.listProductsView(ctx)
	assert.Contains(t, v.text, "No products")

	seedProduct(t, store)
	v = b.listProductsView(ctx)
	assert.Contains(t, v.text, "Hoodie")

	v = b.deleteMenuView(ctx)
	require.NotNil(t, v.markup)

	v = b.listOrdersView(ctx)
	assert.Contains(t, v.text, "No orders")
}

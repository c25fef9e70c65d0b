package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jatango/cart-engine/internal/catalog"
	"github.com/jatango/cart-engine/internal/clock"
)

// ---- fakes ----

type fakeRepo struct {
	mu    sync.Mutex
	items map[string]LineItem
}

func newFakeRepo(items ...LineItem) *fakeRepo {
	r := &fakeRepo{items: map[string]LineItem{}}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *fakeRepo) ListItems(_ context.Context, userID string) ([]LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LineItem
	for _, it := range r.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetItem(_ context.Context, userID, itemID string) (*LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[itemID]; ok && it.UserID == userID {
		return &it, nil
	}
	return nil, nil
}

func (r *fakeRepo) FindMatch(_ context.Context, userID, productID, colorID, sizeID string) (*LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.UserID == userID && it.ProductID == productID &&
			it.Selector.ColorID == colorID && it.Selector.SizeID == sizeID {
			return &it, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) Upsert(_ context.Context, item LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
	return nil
}

func (r *fakeRepo) UpdateQuantity(_ context.Context, userID, itemID string, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.UserID != userID {
		return false, nil
	}
	it.Quantity = qty
	r.items[itemID] = it
	return true, nil
}

func (r *fakeRepo) Delete(_ context.Context, userID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[itemID]; ok && it.UserID == userID {
		delete(r.items, itemID)
	}
	return nil
}

func (r *fakeRepo) DeleteBySeller(_ context.Context, userID, sellerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.UserID == userID && it.SellerID == sellerID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeRepo) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.UserID == userID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeRepo) DeleteExpired(_ context.Context, userID string, now time.Time) ([]LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LineItem
	for id, it := range r.items {
		if it.UserID == userID && it.Expired(now) {
			out = append(out, it)
			delete(r.items, id)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteAllExpired(_ context.Context, now time.Time) ([]LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LineItem
	for id, it := range r.items {
		if it.Expired(now) {
			out = append(out, it)
			delete(r.items, id)
		}
	}
	return out, nil
}

type fakeProducts struct {
	byID map[string]catalog.Product
}

func (p *fakeProducts) Get(_ context.Context, productID string) (catalog.Product, error) {
	if prod, ok := p.byID[productID]; ok {
		return prod, nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (p *fakeProducts) GetMany(_ context.Context, productIDs []string) (map[string]catalog.Product, error) {
	out := map[string]catalog.Product{}
	for _, id := range productIDs {
		if prod, ok := p.byID[id]; ok {
			out[id] = prod
		}
	}
	return out, nil
}

// fakeOracle mirrors the real oracle: raw stock minus other users'
// unexpired holds found in the fake repo.
type fakeOracle struct {
	repo     *fakeRepo
	products *fakeProducts
	now      func() time.Time
}

func (o *fakeOracle) AvailableStock(ctx context.Context, userID, productID string, sel catalog.VariantSelector) (int, error) {
	p, err := o.products.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	raw, _ := p.StockFor(sel)
	o.repo.mu.Lock()
	defer o.repo.mu.Unlock()
	reserved := 0
	for _, it := range o.repo.items {
		if it.ProductID == productID && it.UserID != userID && it.Reserved(o.now()) {
			reserved += it.Quantity
		}
	}
	if avail := raw - reserved; avail > 0 {
		return avail, nil
	}
	return 0, nil
}

type recNotifier struct {
	mu      sync.Mutex
	changed []string
	expired []LineItem
}

func (n *recNotifier) CartChanged(_ context.Context, _ string, op string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, op)
}

func (n *recNotifier) ReservationsExpired(_ context.Context, _ string, items []LineItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, items...)
}

// ---- fixtures ----

const (
	userA = "user-a"
	userB = "user-b"
)

func testProducts() *fakeProducts {
	return &fakeProducts{byID: map[string]catalog.Product{
		"prod-1": {
			ID: "prod-1", SellerID: "seller-A", SellerName: "Shop A",
			Name: "Mug", PriceCents: 2500, Stock: 10,
		},
		"prod-2": {
			ID: "prod-2", SellerID: "seller-B", SellerName: "Shop B",
			Name: "Shirt", PriceCents: 1800, Stock: 2,
			Colors: []catalog.ColorOption{{ID: "red", Name: "Red", PriceCents: intp(2000)}},
		},
		"prod-empty": {
			ID: "prod-empty", SellerID: "seller-A", SellerName: "Shop A",
			Name: "Gone", PriceCents: 900, Stock: 0,
		},
	}}
}

type harness struct {
	store    *Store
	repo     *fakeRepo
	notifier *recNotifier
}

func newHarness(t *testing.T, now time.Time, items ...LineItem) *harness {
	t.Helper()
	repo := newFakeRepo(items...)
	products := testProducts()
	oracle := &fakeOracle{repo: repo, products: products, now: func() time.Time { return now }}
	notifier := &recNotifier{}
	store := NewStore(repo, products, oracle, notifier, clock.NewFixed(now), WithHoldWindow(6*time.Hour))
	return &harness{store: store, repo: repo, notifier: notifier}
}

// ---- tests ----

func TestStore_Unauthenticated(t *testing.T) {
	t.Parallel()
	h := newHarness(t, time.Now())
	ctx := context.Background()

	if _, err := h.store.Load(ctx, ""); err != ErrUnauthenticated {
		t.Fatalf("Load: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.store.AddItem(ctx, "", "prod-1", 1, catalog.VariantSelector{}, ""); err != ErrUnauthenticated {
		t.Fatalf("AddItem: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.store.UpdateQuantity(ctx, "", "x", 1); err != ErrUnauthenticated {
		t.Fatalf("UpdateQuantity: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.store.RemoveItem(ctx, "", "x"); err != ErrUnauthenticated {
		t.Fatalf("RemoveItem: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.store.ClearAll(ctx, ""); err != ErrUnauthenticated {
		t.Fatalf("ClearAll: expected ErrUnauthenticated, got %v", err)
	}
}

func TestStore_AddItem(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("adds a new line item and groups by seller", func(t *testing.T) {
		h := newHarness(t, now)
		c, err := h.store.AddItem(ctx, userA, "prod-1", 2, catalog.VariantSelector{}, "")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		sc, ok := c.StoreFor("seller-A")
		if !ok || len(sc.Items) != 1 {
			t.Fatalf("expected one item under seller-A, got %+v", c)
		}
		if sc.Items[0].Quantity != 2 {
			t.Fatalf("expected qty 2, got %d", sc.Items[0].Quantity)
		}
		if got := StoreTotalCents(sc); got != 5000 {
			t.Fatalf("expected store total 5000, got %d", got)
		}
		if got := CartTotalCents(c); got != 5000 {
			t.Fatalf("expected cart total 5000, got %d", got)
		}
		if got := TotalItemCount(c); got != 2 {
			t.Fatalf("expected count 2, got %d", got)
		}
	})

	t.Run("merges on product+color+size, ignoring variant id", func(t *testing.T) {
		h := newHarness(t, now)
		if _, err := h.store.AddItem(ctx, userA, "prod-1", 1,
			catalog.VariantSelector{ColorID: "red", VariantID: "v1"}, ""); err != nil {
			t.Fatalf("first add: %v", err)
		}
		c, err := h.store.AddItem(ctx, userA, "prod-1", 2,
			catalog.VariantSelector{ColorID: "red", VariantID: "v2"}, "")
		if err != nil {
			t.Fatalf("second add: %v", err)
		}
		items := c.AllItems()
		if len(items) != 1 {
			t.Fatalf("expected merged line item, got %d", len(items))
		}
		if items[0].Quantity != 3 {
			t.Fatalf("expected merged qty 3, got %d", items[0].Quantity)
		}
	})

	t.Run("zero available stock rejects outright", func(t *testing.T) {
		h := newHarness(t, now)
		if _, err := h.store.AddItem(ctx, userA, "prod-empty", 5, catalog.VariantSelector{}, ""); err != ErrOutOfStock {
			t.Fatalf("expected ErrOutOfStock, got %v", err)
		}
	})

	t.Run("requested total above stock reports max addable", func(t *testing.T) {
		h := newHarness(t, now)
		// prod-2 has stock 2; requesting 3 is insufficient, not out of stock
		_, err := h.store.AddItem(ctx, userA, "prod-2", 3, catalog.VariantSelector{}, "")
		var insufficient *InsufficientStockError
		if !asInsufficient(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if insufficient.MaxAddable != 2 || insufficient.Available != 2 {
			t.Fatalf("expected max 2 of 2 available, got %+v", insufficient)
		}
	})

	t.Run("max addable accounts for the existing line item", func(t *testing.T) {
		h := newHarness(t, now)
		if _, err := h.store.AddItem(ctx, userA, "prod-1", 8, catalog.VariantSelector{}, ""); err != nil {
			t.Fatalf("seed add: %v", err)
		}
		_, err := h.store.AddItem(ctx, userA, "prod-1", 5, catalog.VariantSelector{}, "")
		var insufficient *InsufficientStockError
		if !asInsufficient(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if insufficient.MaxAddable != 2 {
			t.Fatalf("expected max addable 2 (10 - 8), got %d", insufficient.MaxAddable)
		}
	})

	t.Run("invalid quantity", func(t *testing.T) {
		h := newHarness(t, now)
		if _, err := h.store.AddItem(ctx, userA, "prod-1", 0, catalog.VariantSelector{}, ""); err != ErrInvalidQuantity {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("notifies on success only", func(t *testing.T) {
		h := newHarness(t, now)
		_, _ = h.store.AddItem(ctx, userA, "prod-empty", 1, catalog.VariantSelector{}, "")
		if len(h.notifier.changed) != 0 {
			t.Fatalf("rejected add must not notify, got %v", h.notifier.changed)
		}
		if _, err := h.store.AddItem(ctx, userA, "prod-1", 1, catalog.VariantSelector{}, ""); err != nil {
			t.Fatalf("add: %v", err)
		}
		if len(h.notifier.changed) != 1 || h.notifier.changed[0] != "add" {
			t.Fatalf("expected one add notification, got %v", h.notifier.changed)
		}
	})
}

func TestStore_Reservations(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("sales event add sets the hold window", func(t *testing.T) {
		h := newHarness(t, now)
		c, err := h.store.AddItem(ctx, userA, "prod-1", 1, catalog.VariantSelector{}, "show-1")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		it := c.AllItems()[0]
		if it.SalesEventID != "show-1" {
			t.Fatalf("expected sales event, got %q", it.SalesEventID)
		}
		if it.ReserveExpiresAt == nil || !it.ReserveExpiresAt.Equal(now.Add(6*time.Hour)) {
			t.Fatalf("expected expiry %v, got %v", now.Add(6*time.Hour), it.ReserveExpiresAt)
		}
	})

	t.Run("re-add refreshes the window instead of extending", func(t *testing.T) {
		later := now.Add(2 * time.Hour)
		h := newHarness(t, now)
		if _, err := h.store.AddItem(ctx, userA, "prod-1", 1, catalog.VariantSelector{}, "show-1"); err != nil {
			t.Fatalf("first add: %v", err)
		}

		// move the clock forward and re-add the same line item
		h2 := &harness{repo: h.repo, notifier: h.notifier}
		products := testProducts()
		oracle := &fakeOracle{repo: h.repo, products: products, now: func() time.Time { return later }}
		h2.store = NewStore(h.repo, products, oracle, h.notifier, clock.NewFixed(later), WithHoldWindow(6*time.Hour))

		c, err := h2.store.AddItem(ctx, userA, "prod-1", 1, catalog.VariantSelector{}, "show-1")
		if err != nil {
			t.Fatalf("second add: %v", err)
		}
		it := c.AllItems()[0]
		if !it.ReserveExpiresAt.Equal(later.Add(6 * time.Hour)) {
			t.Fatalf("expected refreshed expiry %v, got %v", later.Add(6*time.Hour), it.ReserveExpiresAt)
		}
	})

	t.Run("load drops expired holds and releases their stock", func(t *testing.T) {
		expired := now.Add(-time.Hour)
		h := newHarness(t, now, LineItem{
			ID: "it-1", UserID: userB, ProductID: "prod-1", SellerID: "seller-A",
			Quantity: 4, AddedAt: now.Add(-8 * time.Hour),
			SalesEventID: "show-1", ReserveExpiresAt: &expired,
		})

		c, err := h.store.Load(ctx, userB)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(c.AllItems()) != 0 {
			t.Fatalf("expected expired item gone, got %+v", c.AllItems())
		}
		if len(h.notifier.expired) != 1 || h.notifier.expired[0].ID != "it-1" {
			t.Fatalf("expected expiry notification for it-1, got %+v", h.notifier.expired)
		}

		// the released quantity is visible to other carts again
		oracle := &fakeOracle{repo: h.repo, products: testProducts(), now: func() time.Time { return now }}
		avail, err := oracle.AvailableStock(ctx, userA, "prod-1", catalog.VariantSelector{})
		if err != nil {
			t.Fatalf("oracle: %v", err)
		}
		if avail != 10 {
			t.Fatalf("expected full stock 10 after release, got %d", avail)
		}
	})

	t.Run("active holds of others reduce availability", func(t *testing.T) {
		active := now.Add(3 * time.Hour)
		h := newHarness(t, now, LineItem{
			ID: "it-2", UserID: userB, ProductID: "prod-1", SellerID: "seller-A",
			Quantity: 4, AddedAt: now, SalesEventID: "show-1", ReserveExpiresAt: &active,
		})
		_, err := h.store.AddItem(ctx, userA, "prod-1", 7, catalog.VariantSelector{}, "")
		var insufficient *InsufficientStockError
		if !asInsufficient(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if insufficient.Available != 6 {
			t.Fatalf("expected 6 available (10 - 4 held), got %d", insufficient.Available)
		}
	})
}

func TestStore_UpdateAndRemove(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	seed := func(t *testing.T, h *harness) string {
		t.Helper()
		c, err := h.store.AddItem(ctx, userA, "prod-1", 2, catalog.VariantSelector{}, "")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		return c.AllItems()[0].ID
	}

	t.Run("update changes quantity after a stock re-check", func(t *testing.T) {
		h := newHarness(t, now)
		id := seed(t, h)
		c, err := h.store.UpdateQuantity(ctx, userA, id, 5)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got := c.AllItems()[0].Quantity; got != 5 {
			t.Fatalf("expected qty 5, got %d", got)
		}
	})

	t.Run("update above stock is rejected", func(t *testing.T) {
		h := newHarness(t, now)
		id := seed(t, h)
		_, err := h.store.UpdateQuantity(ctx, userA, id, 11)
		var insufficient *InsufficientStockError
		if !asInsufficient(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
	})

	t.Run("update to zero removes the item", func(t *testing.T) {
		h := newHarness(t, now)
		id := seed(t, h)
		c, err := h.store.UpdateQuantity(ctx, userA, id, 0)
		if err != nil {
			t.Fatalf("update to zero: %v", err)
		}
		if len(c.AllItems()) != 0 {
			t.Fatalf("expected empty cart, got %+v", c.AllItems())
		}
	})

	t.Run("update of a missing item errors", func(t *testing.T) {
		h := newHarness(t, now)
		if _, err := h.store.UpdateQuantity(ctx, userA, "nope", 3); err != ErrItemNotFound {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		h := newHarness(t, now)
		id := seed(t, h)
		if _, err := h.store.RemoveItem(ctx, userA, id); err != nil {
			t.Fatalf("first remove: %v", err)
		}
		if _, err := h.store.RemoveItem(ctx, userA, id); err != nil {
			t.Fatalf("second remove must also succeed, got %v", err)
		}
	})
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	h := newHarness(t, now)
	if _, err := h.store.AddItem(ctx, userA, "prod-1", 1, catalog.VariantSelector{}, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.store.AddItem(ctx, userA, "prod-2", 1, catalog.VariantSelector{}, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	c, err := h.store.ClearStore(ctx, userA, "seller-A")
	if err != nil {
		t.Fatalf("clear store: %v", err)
	}
	if _, ok := c.StoreFor("seller-A"); ok {
		t.Fatal("seller-A should be gone")
	}
	if _, ok := c.StoreFor("seller-B"); !ok {
		t.Fatal("seller-B must survive a scoped clear")
	}

	c, err = h.store.ClearAll(ctx, userA)
	if err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if len(c.AllItems()) != 0 {
		t.Fatalf("expected empty cart, got %+v", c.AllItems())
	}
}

func asInsufficient(err error, target **InsufficientStockError) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*InsufficientStockError)
	if ok {
		*target = e
	}
	return ok
}

package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jatango/cart-engine/internal/catalog"
	"github.com/jatango/cart-engine/internal/clock"
)

// Repository is the durable store for cart line items. Implementations
// must upsert by the natural key (user, product, color, size) so retried
// writes never duplicate a row.
type Repository interface {
	ListItems(ctx context.Context, userID string) ([]LineItem, error)
	GetItem(ctx context.Context, userID, itemID string) (*LineItem, error)
	FindMatch(ctx context.Context, userID, productID, colorID, sizeID string) (*LineItem, error)
	Upsert(ctx context.Context, item LineItem) error
	UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (bool, error)
	Delete(ctx context.Context, userID, itemID string) error
	DeleteBySeller(ctx context.Context, userID, sellerID string) error
	DeleteAll(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, userID string, now time.Time) ([]LineItem, error)
	DeleteAllExpired(ctx context.Context, now time.Time) ([]LineItem, error)
}

// Products is the read side of the catalog.
type Products interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
	GetMany(ctx context.Context, productIDs []string) (map[string]catalog.Product, error)
}

// StockOracle answers how many units of a product/variant are available to
// this user right now. The answer is advisory; the authoritative check is
// the conditional decrement at order confirmation.
type StockOracle interface {
	AvailableStock(ctx context.Context, userID, productID string, sel catalog.VariantSelector) (int, error)
}

// Notifier receives cart change signals after successful mutations. The
// engine only ever signals "something changed"; subscribers re-load.
type Notifier interface {
	CartChanged(ctx context.Context, userID, op string)
	ReservationsExpired(ctx context.Context, userID string, items []LineItem)
}

type NopNotifier struct{}

func (NopNotifier) CartChanged(context.Context, string, string) {}

func (NopNotifier) ReservationsExpired(context.Context, string, []LineItem) {}

const defaultHoldWindow = 6 * time.Hour

// Store is the cart engine's single source of truth for a user's cart.
// It holds no mutable state itself; every read goes back to the repository.
type Store struct {
	repo       Repository
	products   Products
	oracle     StockOracle
	notifier   Notifier
	clock      clock.Clock
	holdWindow time.Duration
}

type StoreOption func(*Store)

// WithHoldWindow overrides the default reservation window for sales events.
func WithHoldWindow(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.holdWindow = d
		}
	}
}

func NewStore(repo Repository, products Products, oracle StockOracle, notifier Notifier, clk clock.Clock, opts ...StoreOption) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	s := &Store{
		repo:       repo,
		products:   products,
		oracle:     oracle,
		notifier:   notifier,
		clock:      clk,
		holdWindow: defaultHoldWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the user's line items, joins each with its current product,
// drops expired reservations (releasing their stock), and groups the rest
// by seller.
func (s *Store) Load(ctx context.Context, userID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	now := s.clock.Now()

	if expired, err := s.repo.DeleteExpired(ctx, userID, now); err != nil {
		return Cart{}, fmt.Errorf("sweep expired: %w", err)
	} else if len(expired) > 0 {
		s.notifier.ReservationsExpired(ctx, userID, expired)
	}

	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return Cart{}, fmt.Errorf("list items: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	prods, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return Cart{}, fmt.Errorf("join products: %w", err)
	}

	byStore := map[string]*StoreCart{}
	for _, it := range items {
		p, ok := prods[it.ProductID]
		if !ok {
			// product was removed from the catalog; drop the line item view
			continue
		}
		enrich(&it, &p)
		sc, ok := byStore[p.SellerID]
		if !ok {
			sc = &StoreCart{SellerID: p.SellerID, SellerName: p.SellerName}
			byStore[p.SellerID] = sc
		}
		sc.Items = append(sc.Items, it)
	}

	stores := make([]StoreCart, 0, len(byStore))
	for _, sc := range byStore {
		stores = append(stores, *sc)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].SellerID < stores[j].SellerID })

	return Cart{UserID: userID, Stores: stores, UpdatedAt: now}, nil
}

// AddItem validates requested quantity against available stock, then either
// increments an existing matching line item or inserts a new one. The match
// key is (product, color, size); the variant id is deliberately not part of
// it, so two variants sharing the same color/size labels merge into one
// line. Supplying a sales event id sets or refreshes the hold window.
func (s *Store) AddItem(ctx context.Context, userID, productID string, qty int, sel catalog.VariantSelector, salesEventID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	if qty <= 0 {
		return Cart{}, ErrInvalidQuantity
	}

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return Cart{}, fmt.Errorf("get product: %w", err)
	}

	avail, err := s.oracle.AvailableStock(ctx, userID, productID, sel)
	if err != nil {
		return Cart{}, fmt.Errorf("stock check: %w", err)
	}
	if avail == 0 {
		return Cart{}, ErrOutOfStock
	}

	existing, err := s.repo.FindMatch(ctx, userID, productID, sel.ColorID, sel.SizeID)
	if err != nil {
		return Cart{}, fmt.Errorf("find match: %w", err)
	}
	existingQty := 0
	if existing != nil {
		existingQty = existing.Quantity
	}
	if existingQty+qty > avail {
		return Cart{}, &InsufficientStockError{Available: avail, MaxAddable: avail - existingQty}
	}

	now := s.clock.Now()
	item := LineItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		SellerID:  p.SellerID,
		Selector:  sel,
		Quantity:  existingQty + qty,
		AddedAt:   now,
	}
	if existing != nil {
		item.ID = existing.ID
		item.AddedAt = existing.AddedAt
		item.SalesEventID = existing.SalesEventID
		item.ReserveExpiresAt = existing.ReserveExpiresAt
	}
	if salesEventID != "" {
		// refreshed, not extended additively: the window restarts from now
		exp := now.Add(s.holdWindow)
		item.SalesEventID = salesEventID
		item.ReserveExpiresAt = &exp
	}

	if err := s.repo.Upsert(ctx, item); err != nil {
		return Cart{}, fmt.Errorf("upsert item: %w", err)
	}
	s.notifier.CartChanged(ctx, userID, "add")
	return s.Load(ctx, userID)
}

// UpdateQuantity re-validates the new quantity against current stock and
// persists it. A quantity of zero or less removes the item instead.
func (s *Store) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	item, err := s.repo.GetItem(ctx, userID, itemID)
	if err != nil {
		return Cart{}, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return Cart{}, ErrItemNotFound
	}

	avail, err := s.oracle.AvailableStock(ctx, userID, item.ProductID, item.Selector)
	if err != nil {
		return Cart{}, fmt.Errorf("stock check: %w", err)
	}
	if avail == 0 {
		return Cart{}, ErrOutOfStock
	}
	if qty > avail {
		return Cart{}, &InsufficientStockError{Available: avail, MaxAddable: avail}
	}

	found, err := s.repo.UpdateQuantity(ctx, userID, itemID, qty)
	if err != nil {
		return Cart{}, fmt.Errorf("update quantity: %w", err)
	}
	if !found {
		return Cart{}, ErrItemNotFound
	}
	s.notifier.CartChanged(ctx, userID, "update")
	return s.Load(ctx, userID)
}

// RemoveItem is idempotent: removing an id that no longer exists is a
// successful no-op, which keeps concurrent removals from two sessions
// harmless.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, userID, itemID); err != nil {
		return Cart{}, fmt.Errorf("delete item: %w", err)
	}
	s.notifier.CartChanged(ctx, userID, "remove")
	return s.Load(ctx, userID)
}

// ClearStore removes every line item belonging to one seller.
func (s *Store) ClearStore(ctx context.Context, userID, sellerID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	if err := s.repo.DeleteBySeller(ctx, userID, sellerID); err != nil {
		return Cart{}, fmt.Errorf("clear store: %w", err)
	}
	s.notifier.CartChanged(ctx, userID, "clear")
	return s.Load(ctx, userID)
}

// ClearAll empties the whole cart.
func (s *Store) ClearAll(ctx context.Context, userID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrUnauthenticated
	}
	if err := s.repo.DeleteAll(ctx, userID); err != nil {
		return Cart{}, fmt.Errorf("clear all: %w", err)
	}
	s.notifier.CartChanged(ctx, userID, "clear")
	return s.Load(ctx, userID)
}

// enrich copies the denormalized product fields the aggregator needs onto
// the line item, resolving the selected options.
func enrich(it *LineItem, p *catalog.Product) {
	it.SellerID = p.SellerID
	it.ProductName = p.Name
	it.ImageURL = p.ImageURL
	it.BasePriceCents = p.PriceCents
	if c := p.ColorByID(it.Selector.ColorID); c != nil {
		it.ColorPriceCents = c.PriceCents
	}
	if sz := p.SizeByID(it.Selector.SizeID); sz != nil {
		it.SizePriceCents = sz.PriceCents
	}
	if v := p.VariantByID(it.Selector.VariantID); v != nil {
		it.VariantPriceCents = v.PriceCents
	}
}

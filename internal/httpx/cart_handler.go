package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/catalog"
	"github.com/jatango/cart-engine/internal/redisx"
)

type CartHandler struct {
	Store    *cart.Store
	Products *catalog.Repo
	Redis    Cache
}

type addItemReq struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	ColorID      string `json:"color_id,omitempty"`
	SizeID       string `json:"size_id,omitempty"`
	VariantID    string `json:"variant_id,omitempty"`
	SalesEventID string `json:"sales_event_id,omitempty"`
}

type updateQtyReq struct {
	Quantity int `json:"quantity"`
}

// storeCartView decorates a store cart with its aggregate total.
type storeCartView struct {
	cart.StoreCart
	TotalCents int `json:"total_cents"`
}

type cartView struct {
	UserID     string          `json:"user_id"`
	Stores     []storeCartView `json:"stores"`
	TotalCents int             `json:"total_cents"`
	ItemCount  int             `json:"item_count"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toView(c cart.Cart) cartView {
	v := cartView{
		UserID:     c.UserID,
		Stores:     make([]storeCartView, 0, len(c.Stores)),
		TotalCents: cart.CartTotalCents(c),
		ItemCount:  cart.TotalItemCount(c),
		UpdatedAt:  c.UpdatedAt,
	}
	for _, sc := range c.Stores {
		v.Stores = append(v.Stores, storeCartView{StoreCart: sc, TotalCents: cart.StoreTotalCents(sc)})
	}
	return v
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.updateQuantity)
	r.Delete("/cart/items/{id}", h.removeItem)
	r.Delete("/cart/stores/{sellerID}", h.clearStore)
	r.Delete("/cart", h.clearAll)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// cache fast-path; the durable store stays the truth
	key := fmt.Sprintf(redisx.KeyCartSnapshot, uid)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	c, err := h.Store.Load(ctx, uid)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	view := toView(c)
	if h.Redis != nil {
		if b, err := json.Marshal(view); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLCartCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing_required_field", "product_id required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sel := catalog.VariantSelector{ColorID: req.ColorID, SizeID: req.SizeID, VariantID: req.VariantID}
	c, err := h.Store.AddItem(ctx, uid, req.ProductID, req.Quantity, sel, req.SalesEventID)
	if err != nil {
		cartMutations.WithLabelValues("add", "error").Inc()
		h.writeCartError(w, err)
		return
	}
	cartMutations.WithLabelValues("add", "ok").Inc()
	h.invalidateCache(ctx, uid)
	writeJSON(w, http.StatusOK, toView(c))
}

func (h *CartHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	itemID := chi.URLParam(r, "id")
	var req updateQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Store.UpdateQuantity(ctx, uid, itemID, req.Quantity)
	if err != nil {
		cartMutations.WithLabelValues("update", "error").Inc()
		h.writeCartError(w, err)
		return
	}
	cartMutations.WithLabelValues("update", "ok").Inc()
	h.invalidateCache(ctx, uid)
	writeJSON(w, http.StatusOK, toView(c))
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	itemID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Store.RemoveItem(ctx, uid, itemID)
	if err != nil {
		cartMutations.WithLabelValues("remove", "error").Inc()
		h.writeCartError(w, err)
		return
	}
	cartMutations.WithLabelValues("remove", "ok").Inc()
	h.invalidateCache(ctx, uid)
	writeJSON(w, http.StatusOK, toView(c))
}

func (h *CartHandler) clearStore(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	sellerID := chi.URLParam(r, "sellerID")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Store.ClearStore(ctx, uid, sellerID)
	if err != nil {
		cartMutations.WithLabelValues("clear", "error").Inc()
		h.writeCartError(w, err)
		return
	}
	cartMutations.WithLabelValues("clear", "ok").Inc()
	h.invalidateCache(ctx, uid)
	writeJSON(w, http.StatusOK, toView(c))
}

func (h *CartHandler) clearAll(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Store.ClearAll(ctx, uid)
	if err != nil {
		cartMutations.WithLabelValues("clear", "error").Inc()
		h.writeCartError(w, err)
		return
	}
	cartMutations.WithLabelValues("clear", "ok").Inc()
	h.invalidateCache(ctx, uid)
	writeJSON(w, http.StatusOK, toView(c))
}

func (h *CartHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CartHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CartHandler) invalidateCache(ctx context.Context, uid string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCartSnapshot, uid)).Err()
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, err error) {
	var insufficient *cart.InsufficientStockError
	switch {
	case errors.Is(err, cart.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
	case errors.Is(err, cart.ErrOutOfStock):
		writeError(w, http.StatusConflict, "out_of_stock", "product is out of stock")
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "insufficient stock",
			"code":         "insufficient_stock",
			"available":    insufficient.Available,
			"max_quantity": insufficient.MaxAddable,
		})
	case errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "not_found", "cart item not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", "product not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

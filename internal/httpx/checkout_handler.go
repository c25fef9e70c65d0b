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
	"github.com/jatango/cart-engine/internal/checkout"
	"github.com/jatango/cart-engine/internal/redisx"
)

type CheckoutHandler struct {
	Store        *cart.Store
	Orchestrator *checkout.Orchestrator
	Redis        Cache
}

type confirmOrderReq struct {
	IntentID string                `json:"intent_id"`
	Shipping checkout.ShippingInfo `json:"shipping"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/intents", h.createIntent)
	r.Post("/checkout/orders", h.confirmOrder)
}

func (h *CheckoutHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// the snapshot the buyer pays for is whatever the cart holds right now
	snapshot, err := h.Store.Load(ctx, uid)
	if err != nil {
		checkoutAttempts.WithLabelValues("intent", "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	res, err := h.Orchestrator.CreateIntent(ctx, snapshot, uid)
	if err != nil {
		checkoutAttempts.WithLabelValues("intent", "error").Inc()
		if errors.Is(err, checkout.ErrEmptyCart) {
			writeError(w, http.StatusConflict, "empty_cart", "cart is empty")
			return
		}
		writeError(w, http.StatusBadGateway, "processor_error", err.Error())
		return
	}
	checkoutAttempts.WithLabelValues("intent", "ok").Inc()
	writeJSON(w, http.StatusCreated, res)
}

func (h *CheckoutHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
		return
	}
	var req confirmOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "invalid json")
		return
	}
	if req.IntentID == "" {
		writeError(w, http.StatusBadRequest, "missing_required_field", "intent_id required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// The Redis key is only a shortcut marker; repeated confirms always go
	// through the orchestrator, whose intent-id uniqueness is the truth.
	idemKey := fmt.Sprintf(redisx.KeyIdemIntent, req.IntentID)

	order, err := h.Orchestrator.ConfirmOrder(ctx, req.IntentID, uid, req.Shipping)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency).Err()
		// the purchased rows are gone from the cart; the cached snapshot
		// must not outlive them
		_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCartSnapshot, uid)).Err()
	}
	checkoutAttempts.WithLabelValues("confirm", "ok").Inc()
	writeJSON(w, http.StatusCreated, order)
}

func (h *CheckoutHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrUnauthenticated):
		checkoutAttempts.WithLabelValues("confirm", "unauthenticated").Inc()
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing user")
	case errors.Is(err, checkout.ErrIntentUnknown):
		checkoutAttempts.WithLabelValues("confirm", "unknown_intent").Inc()
		writeError(w, http.StatusNotFound, "intent_not_found", "unknown payment intent")
	case errors.Is(err, checkout.ErrPaymentFailed):
		checkoutAttempts.WithLabelValues("confirm", "payment_failed").Inc()
		writeError(w, http.StatusPaymentRequired, "payment_failed", "payment was declined")
	case errors.Is(err, checkout.ErrPaymentNotConfirmed):
		checkoutAttempts.WithLabelValues("confirm", "pending").Inc()
		writeError(w, http.StatusConflict, "payment_pending", "payment not confirmed yet")
	case errors.Is(err, checkout.ErrStockConflict):
		checkoutAttempts.WithLabelValues("confirm", "stock_conflict").Inc()
		writeError(w, http.StatusConflict, "stock_conflict", "stock changed before commit")
	case errors.Is(err, checkout.ErrEmptyCart):
		checkoutAttempts.WithLabelValues("confirm", "empty_cart").Inc()
		writeError(w, http.StatusConflict, "empty_cart", "nothing to order")
	case errors.Is(err, checkout.ErrOrderWriteFailed):
		// retryable with the same intent id; never swallowed
		checkoutAttempts.WithLabelValues("confirm", "write_failed").Inc()
		writeError(w, http.StatusInternalServerError, "order_write_failed", "order persistence failed, retry with the same intent_id")
	default:
		checkoutAttempts.WithLabelValues("confirm", "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

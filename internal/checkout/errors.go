package checkout

import "errors"

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrIntentUnknown = errors.New("unknown payment intent")

	// ErrPaymentNotConfirmed means the processor still reports the intent
	// as pending; nothing was written.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")

	// ErrPaymentFailed means the processor declined the payment.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrStockConflict means stock dropped between the advisory check and
	// the commit-time decrement. The order was not created.
	ErrStockConflict = errors.New("stock changed before commit")

	// ErrOrderWriteFailed means payment succeeded but persisting the order
	// did not. Callers must retry with the same intent id; the uniqueness
	// check on intent id keeps the retry idempotent.
	ErrOrderWriteFailed = errors.New("order write failed after payment")
)

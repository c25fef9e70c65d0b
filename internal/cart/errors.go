package cart

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("no authenticated user")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrOutOfStock      = errors.New("out of stock")
	ErrItemNotFound    = errors.New("cart item not found")
)

// InsufficientStockError is returned when the requested total exceeds the
// currently available stock. MaxAddable is how much the caller could still
// add on top of what is already in the cart.
type InsufficientStockError struct {
	Available  int
	MaxAddable int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d addable", e.Available, e.MaxAddable)
}

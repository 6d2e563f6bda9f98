package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidAddress        = errors.New("address does not belong to customer")
	ErrInvalidShippingMethod = errors.New("unknown shipping method")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrMissingTracking       = errors.New("tracking number and carrier are required to ship")
	ErrAlreadyReviewed       = errors.New("order already reviewed")
	ErrNotReviewable         = errors.New("order cannot be reviewed yet")
	ErrInvalidReview         = errors.New("invalid review")
)

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidReview(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidReview}, args...)...)
}

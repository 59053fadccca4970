package booking

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindEventNotFound         ErrorKind = "EventNotFound"
	KindEventNotBookable      ErrorKind = "EventNotBookable"
	KindCategoryNotFound      ErrorKind = "CategoryNotFound"
	KindInsufficientStock     ErrorKind = "InsufficientStock"
	KindNoLinesSelected       ErrorKind = "NoLinesSelected"
	KindInvalidQuantity       ErrorKind = "InvalidQuantity"
	KindInvalidPromotion      ErrorKind = "InvalidPromotion"
	KindPersistenceFailure    ErrorKind = "PersistenceFailure"
	KindCheckoutInProgress    ErrorKind = "CheckoutInProgress"
	KindBookingNotFound       ErrorKind = "BookingNotFound"
	KindBookingNotCancellable ErrorKind = "BookingNotCancellable"
	KindForbidden             ErrorKind = "Forbidden"
)

var (
	ErrEventNotFound         = errors.New("EVENT_NOT_FOUND")
	ErrEventNotBookable      = errors.New("EVENT_NOT_BOOKABLE")
	ErrCategoryNotFound      = errors.New("CATEGORY_NOT_FOUND")
	ErrInsufficientStock     = errors.New("INSUFFICIENT_STOCK")
	ErrNoLinesSelected       = errors.New("NO_LINES_SELECTED")
	ErrInvalidQuantity       = errors.New("INVALID_QUANTITY")
	ErrPersistenceFailure    = errors.New("PERSISTENCE_FAILURE")
	ErrCheckoutInProgress    = errors.New("CHECKOUT_IN_PROGRESS")
	ErrBookingNotFound       = errors.New("BOOKING_NOT_FOUND")
	ErrBookingNotCancellable = errors.New("BOOKING_NOT_CANCELLABLE")
	ErrForbidden             = errors.New("FORBIDDEN")
)

var kindSentinels = map[ErrorKind]error{
	KindEventNotFound:         ErrEventNotFound,
	KindEventNotBookable:      ErrEventNotBookable,
	KindCategoryNotFound:      ErrCategoryNotFound,
	KindInsufficientStock:     ErrInsufficientStock,
	KindNoLinesSelected:       ErrNoLinesSelected,
	KindInvalidQuantity:       ErrInvalidQuantity,
	KindPersistenceFailure:    ErrPersistenceFailure,
	KindCheckoutInProgress:    ErrCheckoutInProgress,
	KindBookingNotFound:       ErrBookingNotFound,
	KindBookingNotCancellable: ErrBookingNotCancellable,
	KindForbidden:             ErrForbidden,
}

// CheckoutError is the only error shape returned by the booking service. Message
// is safe to show to the customer; Err keeps the underlying cause for logs.
type CheckoutError struct {
	Kind     ErrorKind
	Message  string
	FailedAt CheckoutState
	Err      error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInsufficientStock) match on kind even when the cause
// is a repository error.
func (e *CheckoutError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func newError(kind ErrorKind, message string, cause error) *CheckoutError {
	return &CheckoutError{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the kind of a booking error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

const persistenceMessage = "We could not complete your booking. Nothing was charged or reserved, please try again."

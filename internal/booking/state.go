package booking

import (
	"fmt"

	"startickets/internal/logger"
)

type CheckoutState string

const (
	StateStarted            CheckoutState = "Started"
	StateValidating         CheckoutState = "Validating"
	StateReservingInventory CheckoutState = "ReservingInventory"
	StateApplyingPromotion  CheckoutState = "ApplyingPromotion"
	StatePersisting         CheckoutState = "Persisting"
	StateCommitted          CheckoutState = "Committed"
	StateAborted            CheckoutState = "Aborted"
)

var transitions = map[CheckoutState][]CheckoutState{
	StateStarted:            {StateValidating, StateAborted},
	StateValidating:         {StateReservingInventory, StateAborted},
	StateReservingInventory: {StateApplyingPromotion, StateAborted},
	StateApplyingPromotion:  {StatePersisting, StateAborted},
	StatePersisting:         {StateCommitted, StateAborted},
}

func canTransition(from, to CheckoutState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkoutRun tracks one attempt through the checkout state machine.
type checkoutRun struct {
	log        *logger.Logger
	customerID int64
	eventID    int64
	attempt    int
	state      CheckoutState
}

func newCheckoutRun(log *logger.Logger, customerID, eventID int64, attempt int) *checkoutRun {
	return &checkoutRun{log: log, customerID: customerID, eventID: eventID, attempt: attempt, state: StateStarted}
}

func (r *checkoutRun) key() string {
	return fmt.Sprintf("customer=%d event=%d attempt=%d", r.customerID, r.eventID, r.attempt)
}

func (r *checkoutRun) advance(to CheckoutState) {
	if !canTransition(r.state, to) {
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", r.state, to))
	}
	r.log.Debug("CHECKOUT", fmt.Sprintf("[%s] %s -> %s", r.key(), r.state, to))
	r.state = to
}

// fail moves the run to Aborted and stamps err with the state it failed in.
func (r *checkoutRun) fail(err *CheckoutError) *CheckoutError {
	if err.FailedAt == "" {
		err.FailedAt = r.state
	}
	if r.state != StateAborted && r.state != StateCommitted {
		r.state = StateAborted
	}
	r.log.LogCheckout("ABORTED", r.key(), fmt.Sprintf("%s at %s: %s", err.Kind, err.FailedAt, err.Message))
	return err
}

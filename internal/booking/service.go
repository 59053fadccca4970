package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"startickets/internal/booking/db"
	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/promotion"
	"startickets/internal/utils"
)

const defaultReferenceAttempts = 3

// Store is the persistence the coordinator needs. Every method takes the handle
// to run on so the same calls work inside and outside a transaction.
type Store interface {
	Conn() bun.IDB
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error

	GetEvent(ctx context.Context, idb bun.IDB, id int64) (*models.Event, error)
	LockCategories(ctx context.Context, idb bun.IDB, eventID int64, ids []int64) ([]*models.TicketCategory, error)
	ListCategories(ctx context.Context, idb bun.IDB, eventID int64) ([]*models.TicketCategory, error)
	ReserveInventory(ctx context.Context, idb bun.IDB, categoryID int64, quantity int) error
	RestockInventory(ctx context.Context, idb bun.IDB, categoryID int64, quantity int) error

	FindPromotion(ctx context.Context, idb bun.IDB, code string, lock bool) (*models.PromotionalCampaign, error)
	IncrementPromotionUsage(ctx context.Context, idb bun.IDB, campaignID int64) error

	InsertBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error
	InsertDetail(ctx context.Context, idb bun.IDB, detail *models.BookingDetail) error
	InsertTickets(ctx context.Context, idb bun.IDB, tickets []*models.Ticket) error
	GetBookingGraph(ctx context.Context, idb bun.IDB, id int64) (*models.Booking, error)
	LockBooking(ctx context.Context, idb bun.IDB, id int64) (*models.Booking, error)
	CancelBooking(ctx context.Context, idb bun.IDB, id int64, at time.Time) error
}

// SubmissionGuard rejects a second checkout by the same customer for the same
// event while the first is still running.
type SubmissionGuard interface {
	Acquire(ctx context.Context, customerID, eventID int64) (token string, ok bool, err error)
	Release(ctx context.Context, customerID, eventID int64, token string) error
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, booking *models.Booking) error
	PublishBookingCancelled(ctx context.Context, booking *models.Booking) error
}

type Service struct {
	store             Store
	guard             SubmissionGuard
	events            EventPublisher
	log               *logger.Logger
	now               func() time.Time
	newReference      func(time.Time) string
	referenceAttempts int
}

type Option func(*Service)

func WithGuard(g SubmissionGuard) Option {
	return func(s *Service) { s.guard = g }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithReferenceGenerator(gen func(time.Time) string) Option {
	return func(s *Service) { s.newReference = gen }
}

// WithReferenceAttempts bounds how often a checkout is retried after a booking
// reference collision.
func WithReferenceAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.referenceAttempts = n
		}
	}
}

func NewService(store Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:             store,
		log:               log,
		now:               utils.UTCNow,
		newReference:      utils.GenerateBookingReference,
		referenceAttempts: defaultReferenceAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errRetryReference = errors.New("retry with a new booking reference")

// ---------------- CHECKOUT ----------------

// SubmitCheckout turns a cart into a committed booking with issued tickets, or
// fails with a *CheckoutError and leaves no trace in the database.
func (s *Service) SubmitCheckout(ctx context.Context, auth models.AuthContext, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	if auth.UserID <= 0 {
		return nil, newError(KindForbidden, "You must be signed in to book tickets", nil)
	}

	if s.guard != nil {
		token, ok, err := s.guard.Acquire(ctx, auth.UserID, req.EventID)
		switch {
		case err != nil:
			s.log.Warn("CHECKOUT", fmt.Sprintf("submission guard unavailable, continuing: %v", err))
		case !ok:
			return nil, newError(KindCheckoutInProgress, "A checkout for this event is already in progress", nil)
		default:
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), auth.UserID, req.EventID, token); err != nil {
					s.log.Warn("CHECKOUT", fmt.Sprintf("failed to release submission guard: %v", err))
				}
			}()
		}
	}

	for attempt := 1; attempt <= s.referenceAttempts; attempt++ {
		booking, err := s.checkoutOnce(ctx, auth, req, attempt)
		if errors.Is(err, errRetryReference) {
			s.log.Warn("CHECKOUT", fmt.Sprintf("booking reference collision on attempt %d/%d", attempt, s.referenceAttempts))
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.events != nil {
			if err := s.events.PublishBookingCreated(ctx, booking); err != nil {
				s.log.Error("KAFKA", fmt.Sprintf("failed to publish booking.created for %s: %v", booking.BookingReference, err))
			}
		}

		return &models.CheckoutResult{
			BookingID:        booking.ID,
			BookingReference: booking.BookingReference,
			TotalAmount:      booking.TotalAmount,
			DiscountAmount:   booking.DiscountAmount,
			FinalAmount:      booking.FinalAmount,
			TicketCount:      booking.TicketCount(),
		}, nil
	}

	s.log.Error("CHECKOUT", fmt.Sprintf("no unique booking reference after %d attempts", s.referenceAttempts))
	return nil, &CheckoutError{Kind: KindPersistenceFailure, Message: persistenceMessage, FailedAt: StatePersisting, Err: db.ErrReferenceConflict}
}

func (s *Service) checkoutOnce(ctx context.Context, auth models.AuthContext, req models.CheckoutRequest, attempt int) (*models.Booking, error) {
	run := newCheckoutRun(s.log, auth.UserID, req.EventID, attempt)
	now := s.now()
	var booking *models.Booking

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		run.advance(StateValidating)

		event, err := s.store.GetEvent(ctx, tx, req.EventID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && !event.IsActive) {
			return newError(KindEventNotFound, "This event does not exist", nil)
		}
		if err != nil {
			return err
		}
		if !event.IsBookable(now) {
			return newError(KindEventNotBookable, "Tickets for this event are no longer on sale", nil)
		}

		lines, err := NormalizeLines(req.Lines)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.CategoryID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		locked, err := s.store.LockCategories(ctx, tx, event.ID, ids)
		if err != nil {
			return err
		}
		categories := make(map[int64]*models.TicketCategory, len(locked))
		for _, c := range locked {
			categories[c.ID] = c
		}

		priced, subtotal, err := PriceLines(event.ID, lines, categories)
		if err != nil {
			return err
		}
		for _, line := range priced {
			if line.Category.AvailableQuantity < line.Quantity {
				return insufficientStock(line.Category)
			}
		}

		run.advance(StateReservingInventory)
		for _, line := range priced {
			err := s.store.ReserveInventory(ctx, tx, line.Category.ID, line.Quantity)
			if errors.Is(err, db.ErrInsufficientStock) {
				return insufficientStock(line.Category)
			}
			if err != nil {
				return err
			}
			s.log.LogInventory("RESERVE", line.Category.ID, fmt.Sprintf("-%d (%s)", line.Quantity, run.key()))
		}

		run.advance(StateApplyingPromotion)
		var promo *promotion.Result
		if req.PromoCode != "" {
			promo, err = s.applyPromotion(ctx, tx, req.PromoCode, subtotal, now)
			if err != nil {
				return err
			}
		}

		run.advance(StatePersisting)
		booking = Assemble(AssembleInput{
			Reference:  s.newReference(now),
			CustomerID: auth.UserID,
			EventID:    event.ID,
			Lines:      priced,
			Promotion:  promo,
			PromoCode:  req.PromoCode,
			Now:        now,
		})
		return s.persist(ctx, tx, booking, now)
	})

	if err != nil {
		var ce *CheckoutError
		switch {
		case errors.As(err, &ce):
			return nil, run.fail(ce)
		case errors.Is(err, db.ErrReferenceConflict):
			run.fail(&CheckoutError{Kind: KindPersistenceFailure, Message: "booking reference collision", Err: err})
			return nil, errRetryReference
		default:
			return nil, run.fail(&CheckoutError{Kind: KindPersistenceFailure, Message: persistenceMessage, Err: err})
		}
	}

	run.advance(StateCommitted)
	s.log.LogCheckout("COMMITTED", booking.BookingReference,
		fmt.Sprintf("%s tickets=%d final=%.2f", run.key(), booking.TicketCount(), booking.FinalAmount))
	return booking, nil
}

// applyPromotion locks the campaign, evaluates it and redeems one use when it
// applies. A campaign that does not apply leaves the order at full price.
func (s *Service) applyPromotion(ctx context.Context, tx bun.IDB, code string, subtotal float64, now time.Time) (*promotion.Result, error) {
	campaign, err := s.store.FindPromotion(ctx, tx, code, true)
	if err != nil {
		return nil, err
	}

	result, err := promotion.Evaluate(campaign, subtotal, now)
	if err != nil {
		return nil, newError(KindInvalidPromotion, "This promotion cannot be applied", err)
	}
	if !result.Applicable {
		s.log.Info("PROMOTION", fmt.Sprintf("code %q not applied: %s", code, result.Reason))
		return result, nil
	}

	err = s.store.IncrementPromotionUsage(ctx, tx, campaign.ID)
	if errors.Is(err, db.ErrPromotionExhausted) {
		s.log.Info("PROMOTION", fmt.Sprintf("code %q not applied: usage limit reached", code))
		return &promotion.Result{FinalAmount: promotion.RoundCents(subtotal), Reason: "Promotion usage limit has been reached"}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) persist(ctx context.Context, tx bun.IDB, booking *models.Booking, now time.Time) error {
	if err := s.store.InsertBooking(ctx, tx, booking); err != nil {
		return err
	}
	for _, detail := range booking.Details {
		detail.BookingID = booking.ID
		if err := s.store.InsertDetail(ctx, tx, detail); err != nil {
			return err
		}
		detail.Tickets = BuildTickets(booking, detail, now)
		if err := s.store.InsertTickets(ctx, tx, detail.Tickets); err != nil {
			return err
		}
	}
	return nil
}

func insufficientStock(c *models.TicketCategory) *CheckoutError {
	return newError(KindInsufficientStock,
		fmt.Sprintf("Only %d tickets left for %s", c.AvailableQuantity, c.Name), nil)
}

// ValidatePromoCode previews a code against a subtotal. It reads only and never
// redeems; the checkout re-evaluates the code when it commits.
func (s *Service) ValidatePromoCode(ctx context.Context, code string, subtotal float64) (*models.PromoPreview, error) {
	campaign, err := s.store.FindPromotion(ctx, s.store.Conn(), code, false)
	if err != nil {
		s.log.Error("PROMOTION", fmt.Sprintf("lookup of %q failed: %v", code, err))
		return nil, newError(KindPersistenceFailure, "Promotion could not be checked right now", err)
	}

	result, err := promotion.Evaluate(campaign, subtotal, s.now())
	if err != nil {
		return nil, newError(KindInvalidPromotion, "This promotion cannot be applied", err)
	}

	preview := &models.PromoPreview{
		Valid:          result.Applicable,
		DiscountAmount: result.DiscountAmount,
		FinalAmount:    result.FinalAmount,
		Message:        result.Reason,
	}
	if result.Applicable {
		preview.Message = fmt.Sprintf("Promotion applied: you save %.2f", result.DiscountAmount)
	}
	return preview, nil
}

// ---------------- BOOKINGS ----------------

func (s *Service) GetBooking(ctx context.Context, auth models.AuthContext, bookingID int64) (*models.Booking, error) {
	booking, err := s.store.GetBookingGraph(ctx, s.store.Conn(), bookingID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, newError(KindBookingNotFound, "Booking not found", nil)
	}
	if err != nil {
		return nil, newError(KindPersistenceFailure, "Booking could not be loaded right now", err)
	}
	if !auth.CanAccessBooking(booking.CustomerID) {
		s.log.LogSecurity("BOOKING_ACCESS_DENIED", fmt.Sprintf("user %d on booking %d", auth.UserID, bookingID))
		return nil, newError(KindForbidden, "You do not have access to this booking", nil)
	}
	return booking, nil
}

// GetTicket returns one ticket of a booking the caller may see.
func (s *Service) GetTicket(ctx context.Context, auth models.AuthContext, bookingID int64, ticketNumber string) (*models.Ticket, error) {
	booking, err := s.GetBooking(ctx, auth, bookingID)
	if err != nil {
		return nil, err
	}
	for _, detail := range booking.Details {
		for _, ticket := range detail.Tickets {
			if ticket.TicketNumber == ticketNumber {
				return ticket, nil
			}
		}
	}
	return nil, newError(KindBookingNotFound, "Ticket not found in this booking", nil)
}

// CancelBooking cancels an active booking before its event starts and returns the
// tickets to inventory. Promotion usage is not given back.
func (s *Service) CancelBooking(ctx context.Context, auth models.AuthContext, bookingID int64) (*models.Booking, error) {
	now := s.now()
	var booking *models.Booking

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		var err error
		booking, err = s.store.LockBooking(ctx, tx, bookingID)
		if errors.Is(err, db.ErrNotFound) {
			return newError(KindBookingNotFound, "Booking not found", nil)
		}
		if err != nil {
			return err
		}
		if !auth.CanAccessBooking(booking.CustomerID) {
			s.log.LogSecurity("BOOKING_CANCEL_DENIED", fmt.Sprintf("user %d on booking %d", auth.UserID, bookingID))
			return newError(KindForbidden, "You do not have access to this booking", nil)
		}
		if booking.Status != models.BookingActive {
			return newError(KindBookingNotCancellable, "This booking is already cancelled", nil)
		}

		event, err := s.store.GetEvent(ctx, tx, booking.EventID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if event != nil && !event.EventDate.After(now) {
			return newError(KindBookingNotCancellable, "The event has already taken place", nil)
		}

		err = s.store.CancelBooking(ctx, tx, booking.ID, now)
		if errors.Is(err, db.ErrAlreadyCancelled) {
			return newError(KindBookingNotCancellable, "This booking is already cancelled", nil)
		}
		if err != nil {
			return err
		}

		for _, detail := range booking.Details {
			if err := s.store.RestockInventory(ctx, tx, detail.TicketCategoryID, detail.Quantity); err != nil {
				return err
			}
			s.log.LogInventory("RESTOCK", detail.TicketCategoryID, fmt.Sprintf("+%d (booking %s)", detail.Quantity, booking.BookingReference))
		}
		booking.Status = models.BookingCancelled
		booking.CancelledAt = now
		return nil
	})

	if err != nil {
		var ce *CheckoutError
		if errors.As(err, &ce) {
			return nil, ce
		}
		s.log.Error("BOOKING", fmt.Sprintf("cancel booking %d failed: %v", bookingID, err))
		return nil, newError(KindPersistenceFailure, "Booking could not be cancelled right now", err)
	}

	s.log.LogCheckout("CANCELLED", booking.BookingReference, fmt.Sprintf("by user %d", auth.UserID))
	if s.events != nil {
		if err := s.events.PublishBookingCancelled(ctx, booking); err != nil {
			s.log.Error("KAFKA", fmt.Sprintf("failed to publish booking.cancelled for %s: %v", booking.BookingReference, err))
		}
	}
	return booking, nil
}

// ---------------- AVAILABILITY ----------------

func (s *Service) GetAvailability(ctx context.Context, eventID int64) ([]models.CategoryAvailability, error) {
	conn := s.store.Conn()
	if _, err := s.store.GetEvent(ctx, conn, eventID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(KindEventNotFound, "This event does not exist", nil)
		}
		return nil, newError(KindPersistenceFailure, "Availability could not be loaded right now", err)
	}

	categories, err := s.store.ListCategories(ctx, conn, eventID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "Availability could not be loaded right now", err)
	}

	availability := make([]models.CategoryAvailability, 0, len(categories))
	for _, c := range categories {
		availability = append(availability, models.CategoryAvailability{
			CategoryID: c.ID,
			Name:       c.Name,
			Price:      c.Price,
			Available:  c.AvailableQuantity,
			Total:      c.TotalQuantity,
		})
	}
	return availability, nil
}

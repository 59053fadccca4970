package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"startickets/internal/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrPromotionExhausted = errors.New("promotion usage exhausted")
	ErrReferenceConflict  = errors.New("booking reference already exists")
	ErrAlreadyCancelled   = errors.New("booking already cancelled")
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Conn is the non-transactional handle for reads outside a checkout.
func (d *DB) Conn() bun.IDB {
	return d.Bun
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// forUpdate adds a row lock on dialects that have one. SQLite serializes writers
// on its own and rejects the clause.
func forUpdate(idb bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if idb.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

// ---------------- EVENTS / INVENTORY ----------------

func (d *DB) GetEvent(ctx context.Context, idb bun.IDB, id int64) (*models.Event, error) {
	var event models.Event
	err := idb.NewSelect().
		Model(&event).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &event, nil
}

// LockCategories loads the requested categories of an event, locking the rows in
// id order. Categories of other events are not returned.
func (d *DB) LockCategories(ctx context.Context, idb bun.IDB, eventID int64, ids []int64) ([]*models.TicketCategory, error) {
	if len(ids) == 0 {
		return []*models.TicketCategory{}, nil
	}
	var categories []*models.TicketCategory
	q := idb.NewSelect().
		Model(&categories).
		Where("tc.event_id = ?", eventID).
		Where("tc.id IN (?)", bun.In(ids)).
		Order("tc.id ASC")
	if err := forUpdate(idb, q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("lock categories of event %d: %w", eventID, err)
	}
	return categories, nil
}

// ListCategories returns the active categories of an event ordered by id.
func (d *DB) ListCategories(ctx context.Context, idb bun.IDB, eventID int64) ([]*models.TicketCategory, error) {
	var categories []*models.TicketCategory
	err := idb.NewSelect().
		Model(&categories).
		Where("tc.event_id = ?", eventID).
		Where("tc.is_active = ?", true).
		Order("tc.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories of event %d: %w", eventID, err)
	}
	return categories, nil
}

// ReserveInventory decrements availability only if enough is left. Nothing changes
// on ErrInsufficientStock.
func (d *DB) ReserveInventory(ctx context.Context, idb bun.IDB, categoryID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve %d tickets of category %d: quantity must be positive", quantity, categoryID)
	}
	res, err := idb.NewUpdate().
		Model((*models.TicketCategory)(nil)).
		Set("available_quantity = available_quantity - ?", quantity).
		Where("id = ?", categoryID).
		Where("available_quantity >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve category %d: %w", categoryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve category %d: %w", categoryID, err)
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestockInventory returns tickets to a category, never above its total.
func (d *DB) RestockInventory(ctx context.Context, idb bun.IDB, categoryID int64, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	_, err := idb.NewUpdate().
		Model((*models.TicketCategory)(nil)).
		Set("available_quantity = CASE WHEN available_quantity + ? > total_quantity THEN total_quantity ELSE available_quantity + ? END", quantity, quantity).
		Where("id = ?", categoryID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("restock category %d: %w", categoryID, err)
	}
	return nil
}

// ---------------- PROMOTIONS ----------------

// FindPromotion returns nil without error when no campaign has the code.
func (d *DB) FindPromotion(ctx context.Context, idb bun.IDB, code string, lock bool) (*models.PromotionalCampaign, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var campaign models.PromotionalCampaign
	q := idb.NewSelect().
		Model(&campaign).
		Where("pc.code = ?", code).
		Limit(1)
	if lock {
		q = forUpdate(idb, q)
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find promotion %q: %w", code, err)
	}
	return &campaign, nil
}

// IncrementPromotionUsage redeems one use, refusing to go past max_usage.
func (d *DB) IncrementPromotionUsage(ctx context.Context, idb bun.IDB, campaignID int64) error {
	res, err := idb.NewUpdate().
		Model((*models.PromotionalCampaign)(nil)).
		Set("current_usage = current_usage + 1").
		Where("id = ?", campaignID).
		Where("(max_usage IS NULL OR current_usage < max_usage)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment usage of promotion %d: %w", campaignID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment usage of promotion %d: %w", campaignID, err)
	}
	if n == 0 {
		return ErrPromotionExhausted
	}
	return nil
}

// ---------------- BOOKINGS ----------------

func (d *DB) InsertBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error {
	_, err := idb.NewInsert().Model(booking).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err, "booking_reference") {
			return ErrReferenceConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (d *DB) InsertDetail(ctx context.Context, idb bun.IDB, detail *models.BookingDetail) error {
	if _, err := idb.NewInsert().Model(detail).Exec(ctx); err != nil {
		return fmt.Errorf("insert booking detail: %w", err)
	}
	return nil
}

func (d *DB) InsertTickets(ctx context.Context, idb bun.IDB, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if _, err := idb.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("insert %d tickets: %w", len(tickets), err)
	}
	return nil
}

// GetBookingGraph loads a booking with its details and tickets, both in id order.
func (d *DB) GetBookingGraph(ctx context.Context, idb bun.IDB, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := idb.NewSelect().
		Model(&booking).
		Relation("Details", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("bd.id ASC")
		}).
		Relation("Details.Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("t.id ASC")
		}).
		Where("b.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &booking, nil
}

// LockBooking loads a booking row for update together with its details.
func (d *DB) LockBooking(ctx context.Context, idb bun.IDB, id int64) (*models.Booking, error) {
	var booking models.Booking
	q := idb.NewSelect().
		Model(&booking).
		Where("b.id = ?", id)
	err := forUpdate(idb, q).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking %d: %w", id, err)
	}

	err = idb.NewSelect().
		Model(&booking.Details).
		Where("bd.booking_id = ?", id).
		Order("bd.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load details of booking %d: %w", id, err)
	}
	return &booking, nil
}

// CancelBooking flips an active booking to cancelled.
func (d *DB) CancelBooking(ctx context.Context, idb bun.IDB, id int64, at time.Time) error {
	res, err := idb.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.BookingCancelled).
		Set("cancelled_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.BookingActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cancel booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel booking %d: %w", id, err)
	}
	if n == 0 {
		return ErrAlreadyCancelled
	}
	return nil
}

// isUniqueViolation matches PostgreSQL 23505 and SQLite's constraint message
// for a unique index covering column.
func isUniqueViolation(err error, column string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" &&
			(strings.Contains(pqErr.Constraint, column) || strings.Contains(pqErr.Detail, column))
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

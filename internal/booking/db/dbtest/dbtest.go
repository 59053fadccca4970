// Package dbtest opens throwaway SQLite databases with the booking schema and
// seeds catalog rows for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"startickets/internal/booking/db"
	"startickets/internal/models"
)

// Open returns a private in-memory database with the schema applied. It holds a
// single connection, so concurrent transactions queue on the pool and never
// contend on a row lock. FOR UPDATE is only exercised by the PostgreSQL tests
// (STARTICKETS_PG_TESTS=1).
func Open(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, db.CreateSchema(context.Background(), bunDB))
	return bunDB
}

// Event inserts a published, active event happening at eventDate.
func Event(t *testing.T, bunDB *bun.DB, eventDate time.Time) *models.Event {
	t.Helper()

	event := &models.Event{
		Name:      "Concert",
		EventDate: eventDate,
		IsActive:  true,
		Status:    models.EventPublished,
	}
	_, err := bunDB.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
	return event
}

func Category(t *testing.T, bunDB *bun.DB, eventID int64, name string, price float64, available int) *models.TicketCategory {
	t.Helper()

	category := &models.TicketCategory{
		EventID:           eventID,
		Name:              name,
		Price:             price,
		TotalQuantity:     available,
		AvailableQuantity: available,
		IsActive:          true,
	}
	_, err := bunDB.NewInsert().Model(category).Exec(context.Background())
	require.NoError(t, err)
	return category
}

// Promotion inserts an active campaign valid for a day either side of now.
func Promotion(t *testing.T, bunDB *bun.DB, code string, kind models.DiscountType, value float64, maxUsage *int, now time.Time) *models.PromotionalCampaign {
	t.Helper()

	campaign := &models.PromotionalCampaign{
		Code:          code,
		Name:          code,
		DiscountType:  kind,
		DiscountValue: value,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		MaxUsage:      maxUsage,
		IsActive:      true,
	}
	_, err := bunDB.NewInsert().Model(campaign).Exec(context.Background())
	require.NoError(t, err)
	return campaign
}

func Available(t *testing.T, bunDB *bun.DB, categoryID int64) int {
	t.Helper()

	var category models.TicketCategory
	err := bunDB.NewSelect().Model(&category).Where("tc.id = ?", categoryID).Scan(context.Background())
	require.NoError(t, err)
	return category.AvailableQuantity
}

func Count(t *testing.T, bunDB *bun.DB, model interface{}) int {
	t.Helper()

	n, err := bunDB.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

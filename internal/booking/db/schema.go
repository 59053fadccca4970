package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"startickets/internal/models"
)

var schemaModels = []interface{}{
	(*models.Event)(nil),
	(*models.TicketCategory)(nil),
	(*models.PromotionalCampaign)(nil),
	(*models.Booking)(nil),
	(*models.BookingDetail)(nil),
	(*models.Ticket)(nil),
}

// CreateSchema creates the booking tables from the bun models. Production
// databases are migrated with the SQL files instead; this is for tests and seeding.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	for _, model := range schemaModels {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchema drops the booking tables in reverse dependency order.
func DropSchema(ctx context.Context, bunDB *bun.DB) error {
	for i := len(schemaModels) - 1; i >= 0; i-- {
		if _, err := bunDB.NewDropTable().Model(schemaModels[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", schemaModels[i], err)
		}
	}
	return nil
}

// Command seed loads a demo event, its ticket categories and two promotion
// codes into the booking database, then prints a customer token for local use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"startickets/internal/auth"
	"startickets/internal/config"
	"startickets/internal/database"
	"startickets/internal/database/migrations"
	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/utils"
)

func main() {
	customerID := flag.Int64("customer", 1, "customer id embedded in the printed token")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewWriter(os.Stdout, logger.ParseLevel(cfg.Log.Level))

	ctx := context.Background()
	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, cfg.Migrations.Dir, log)
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	if err := runner.Close(); err != nil {
		log.Warn("DATABASE", fmt.Sprintf("Failed to close migrator: %v", err))
	}

	now := utils.UTCNow()
	var event *models.Event
	err = bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		event, err = seed(ctx, tx, now)
		return err
	})
	if err != nil {
		log.Fatal("SEED", err.Error())
	}
	log.Info("SEED", fmt.Sprintf("Seeded event %d (%s) with codes SAVE10 and FIFTY", event.ID, event.Name))

	if cfg.Auth.JWTSecret == "" {
		log.Warn("SEED", "AUTH_JWT_SECRET not set, skipping token")
		return
	}
	token, err := auth.SignHMAC(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, *customerID, models.RoleCustomer, *tokenTTL)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	fmt.Println(token)
}

func seed(ctx context.Context, tx bun.Tx, now time.Time) (*models.Event, error) {
	event := &models.Event{
		Name:      "Summer Open Air",
		EventDate: now.AddDate(0, 1, 0),
		EndDate:   now.AddDate(0, 1, 0).Add(6 * time.Hour),
		IsActive:  true,
		Status:    models.EventPublished,
	}
	if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	categories := []*models.TicketCategory{
		{EventID: event.ID, Name: "General Admission", Price: 25, TotalQuantity: 500, AvailableQuantity: 500, IsActive: true},
		{EventID: event.ID, Name: "VIP", Price: 100, TotalQuantity: 50, AvailableQuantity: 50, IsActive: true},
		{EventID: event.ID, Name: "Backstage", Price: 250, TotalQuantity: 5, AvailableQuantity: 5, IsActive: true},
	}
	if _, err := tx.NewInsert().Model(&categories).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}

	fiftyCap := 100
	campaigns := []*models.PromotionalCampaign{
		{
			Code: "SAVE10", Name: "Ten percent off", DiscountType: models.DiscountPercentage, DiscountValue: 10,
			StartDate: now.AddDate(0, 0, -1), EndDate: now.AddDate(0, 2, 0), IsActive: true,
		},
		{
			Code: "FIFTY", Name: "Fifty off", DiscountType: models.DiscountFixed, DiscountValue: 50,
			StartDate: now.AddDate(0, 0, -1), EndDate: now.AddDate(0, 2, 0), MaxUsage: &fiftyCap, IsActive: true,
		},
	}
	_, err := tx.NewInsert().Model(&campaigns).
		On("CONFLICT (code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert promotions: %w", err)
	}
	return event, nil
}

// Package main provides a CLI tool for seeding the database with demo data.
//
// Demo batches and store stock are created through the domain services so
// that events, audit rows and ledger entries match real traffic. Running the
// tool twice is harmless: existing batch codes and stock rows are skipped.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"explostock/internal/app"
	"explostock/internal/config"
	"explostock/internal/core/apperror"
	"explostock/internal/core/clock"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain/auth"
	"explostock/internal/domain/transactions"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/storage"
	"explostock/pkg/logger"
)

const seedUser = "seed"

// Demo identifiers are name-based so they stay stable between runs.
var (
	materialANFO     = demoID("material/anfo")
	materialEmulsion = demoID("material/emulsion")
	materialBooster  = demoID("material/booster")

	storeNorthPit = demoID("store/north-pit")
	storeEastPit  = demoID("store/east-pit")
)

func demoID(name string) id.ID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:explostock:"+name))
}

type demoBatch struct {
	code     string
	material id.ID
	unit     string
	quantity string
	expires  time.Duration
}

type demoStock struct {
	store    id.ID
	material id.ID
	unit     string
	quantity string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatalw("seeding requires the postgres storage driver", "storage", cfg.StorageDriver)
	}

	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg, clock.System())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer backend.Close()

	log.Info("connected to database")

	if err := seedBatches(ctx, backend.Services, log); err != nil {
		log.Fatalw("failed to seed batches", "error", err)
	}
	if err := seedStocks(ctx, backend.Services, log); err != nil {
		log.Fatalw("failed to seed store stock", "error", err)
	}

	if cfg.JWTSecret != "" && os.Getenv("SEED_PRINT_TOKEN") == "true" {
		jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
		token, expiresAt, err := jwtService.GenerateAccessToken(
			config.GetEnv("SEED_TOKEN_USER", "storekeeper"), "", []string{"storekeeper"})
		if err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
		fmt.Printf("access token (expires %s):\n%s\n", expiresAt.Format(time.RFC3339), token)
	}

	log.Info("seeding completed successfully")
}

func seedBatches(ctx context.Context, svc *app.Services, log *logger.Logger) error {
	now := time.Now().UTC()
	batches := []demoBatch{
		{code: "ANFO-2026-001", material: materialANFO, unit: "kg", quantity: "2500", expires: 180 * 24 * time.Hour},
		{code: "ANFO-2026-002", material: materialANFO, unit: "kg", quantity: "1800", expires: 20 * 24 * time.Hour},
		{code: "EMUL-2026-001", material: materialEmulsion, unit: "kg", quantity: "1200.5", expires: 90 * 24 * time.Hour},
		{code: "BOOST-2026-001", material: materialBooster, unit: "pcs", quantity: "400", expires: 365 * 24 * time.Hour},
	}

	created := 0
	for _, d := range batches {
		qty, err := types.ParseQuantity(d.quantity)
		if err != nil {
			return err
		}
		_, err = svc.Batches.Receive(ctx, warehouse.ReceiveCommand{
			Code:           d.code,
			MaterialTypeID: d.material,
			Unit:           d.unit,
			Quantity:       qty,
			ManufacturedAt: now.AddDate(0, -1, 0),
			ExpiresAt:      now.Add(d.expires),
			UserID:         seedUser,
		})
		if apperror.IsDuplicate(err) {
			log.Infow("batch already exists", "code", d.code)
			continue
		}
		if err != nil {
			return fmt.Errorf("receive %s: %w", d.code, err)
		}
		created++
	}
	log.Infow("batches seeded", "created", created)
	return nil
}

func seedStocks(ctx context.Context, svc *app.Services, log *logger.Logger) error {
	stocks := []demoStock{
		{store: storeNorthPit, material: materialANFO, unit: "kg", quantity: "350"},
		{store: storeNorthPit, material: materialBooster, unit: "pcs", quantity: "40"},
		{store: storeEastPit, material: materialEmulsion, unit: "kg", quantity: "120"},
	}

	user := seedUser
	ref := "SEED"
	created := 0
	for _, d := range stocks {
		if _, err := svc.Stocks.GetByStoreAndMaterial(ctx, d.store, d.material); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return err
		}

		qty, err := types.ParseQuantity(d.quantity)
		if err != nil {
			return err
		}
		if _, err := svc.Transactions.StockIn(ctx, transactions.StockInCommand{
			Movement: transactions.Movement{
				StoreID:         d.store,
				MaterialTypeID:  d.material,
				ReferenceNumber: &ref,
				ProcessedBy:     &user,
			},
			Quantity: qty,
			Unit:     d.unit,
		}); err != nil {
			return fmt.Errorf("stock in %s/%s: %w", d.store, d.material, err)
		}
		created++
	}
	log.Infow("store stock seeded", "created", created,
		"north_pit", storeNorthPit, "east_pit", storeEastPit)
	return nil
}

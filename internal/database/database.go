package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/models"
)

// New creates a new database connection and performs auto-migration.
func New(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema and populates initial data.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	err := db.AutoMigrate(
		&models.Instrument{},
		&models.Trade{},
		&models.Position{},
		&models.PriceBar{},
		&models.SignalRecord{},
		&models.PortfolioState{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Register watchlisted instruments
	for _, symbol := range cfg.Watchlist {
		instrument := models.Instrument{Symbol: symbol}
		if err := db.FirstOrCreate(&instrument, models.Instrument{Symbol: symbol}).Error; err != nil {
			return fmt.Errorf("failed to register instrument '%s': %w", symbol, err)
		}
	}

	// Seed the single portfolio state row with the configured starting cash
	state := models.PortfolioState{Cash: cfg.Trading.StartingCash}
	if err := db.FirstOrCreate(&state, models.PortfolioState{}).Error; err != nil {
		return fmt.Errorf("failed to seed portfolio state: %w", err)
	}

	return nil
}

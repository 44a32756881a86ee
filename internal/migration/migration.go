package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB

	return nil
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite, which
// the postgres migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&tariffdomain.TariffRate{},
		&readingdomain.MeterReading{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentTransition{},
		&statisticsdomain.ServiceRequest{},
	)
}

package config

import (
	"company-directory-backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the postgres connection and migrates the import tables.
func InitDB(opts DatabaseOptions) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(opts.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	if err := db.AutoMigrate(
		&models.Company{},
		&models.CompanyImport{},
	); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}
	return db, nil
}

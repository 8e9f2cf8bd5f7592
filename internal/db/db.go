package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carevault/internal/audit"
	"carevault/internal/user"
)

// Init connects to Postgres and migrates the relational models. The
// vector store holds memories; Postgres holds only accounts and the
// audit trail.
func Init(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&user.Clinician{}, &audit.Entry{}); err != nil {
		return nil, err
	}

	log.Printf("[DB] Database connected and migrated")
	return db, nil
}

package config

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "companion-dispatch.com/companion-dispatch/internal/models"
)

func NewDatabaseClient(dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Player{},
		&model.Task{},
		&model.ExtensionRequest{},
		&model.TaskLog{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	return db
}

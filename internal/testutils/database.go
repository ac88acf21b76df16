package testutils

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory sqlite database with the production
// schema and the department seed applied.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access test database: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// Department returns the seeded department with the given name.
func Department(t *testing.T, db *gorm.DB, name model.DepartmentName) model.Department {
	t.Helper()
	var dept model.Department
	if err := db.Where("name = ?", name).First(&dept).Error; err != nil {
		t.Fatalf("department %s not seeded: %v", name, err)
	}
	return dept
}

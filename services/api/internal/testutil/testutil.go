// Package testutil provides SQLite-backed GORM handles for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"focusd/services/api/internal/models"
)

// NewDB opens a migrated SQLite database in a per-test temp dir.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "focusd.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(context.Background(), db))
	return db
}

// CreateUser inserts a user with the password "password".
func CreateUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{Email: email, Name: email, PasswordHash: string(hash)}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateTask inserts a task owned by userID with the given estimate.
func CreateTask(t *testing.T, db *gorm.DB, userID uint, estimated int) models.Task {
	t.Helper()

	task := models.Task{
		UserID:             userID,
		Title:              fmt.Sprintf("task for %d", userID),
		EstimatedPomodoros: estimated,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

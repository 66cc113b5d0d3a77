// Package testdb opens isolated SQLite databases carrying the same schema and
// constraints as the postgres migrations, for repository and service tests.
package testdb

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username VARCHAR(150) NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name VARCHAR(30) NOT NULL,
		last_name VARCHAR(30) NOT NULL,
		is_staff BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE citizens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		address VARCHAR(200) NOT NULL,
		phone VARCHAR(15) NOT NULL,
		registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE operators (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		phone VARCHAR(15) NOT NULL,
		hired_on DATE NOT NULL,
		daily_capacity INTEGER NOT NULL DEFAULT 5 CHECK (daily_capacity >= 1),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE materials (
		code VARCHAR(4) PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE pickup_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		citizen_id TEXT NOT NULL REFERENCES citizens(id) ON DELETE CASCADE,
		material_code VARCHAR(4) NOT NULL REFERENCES materials(code) ON DELETE RESTRICT,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		estimated_date DATE NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'EN_ROUTE', 'COMPLETED', 'CANCELLED')),
		operator_id TEXT REFERENCES operators(id) ON DELETE SET NULL,
		comments TEXT NOT NULL DEFAULT '',
		completed_at DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		aggregate_type VARCHAR(32) NOT NULL,
		aggregate_id VARCHAR(64) NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		aggregate_type VARCHAR(32) NOT NULL,
		aggregate_id VARCHAR(64) NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason VARCHAR(32) NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns a fresh in-memory database private to the calling test.
func Open(t testing.TB) (*gorm.DB, *db.Client) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection keeps the in-memory database and its pragmas stable
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn, db.Wrap(conn)
}

// SeedMaterial inserts a material row.
func SeedMaterial(t testing.TB, conn *gorm.DB, code, name string) models.Material {
	t.Helper()
	m := models.Material{Code: code, Name: name, Description: name + " reciclable"}
	if err := conn.Create(&m).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	return m
}

// SeedUser inserts an account with a throwaway password hash.
func SeedUser(t testing.TB, conn *gorm.DB, username string, staff bool) models.User {
	t.Helper()
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		LastName:     "Test",
		IsStaff:      staff,
		IsActive:     true,
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedCitizen inserts a user plus its citizen profile.
func SeedCitizen(t testing.TB, conn *gorm.DB, username string) models.Citizen {
	t.Helper()
	u := SeedUser(t, conn, username, false)
	c := models.Citizen{UserID: u.ID, Address: "Av. Siempre Viva 742", Phone: "+56911111111"}
	if err := conn.Create(&c).Error; err != nil {
		t.Fatalf("seed citizen: %v", err)
	}
	c.User = u
	return c
}

// SeedOperator inserts a user plus its operator profile.
func SeedOperator(t testing.TB, conn *gorm.DB, username string, capacity int) models.Operator {
	t.Helper()
	u := SeedUser(t, conn, username, false)
	o := models.Operator{UserID: u.ID, Phone: "+56922222222", DailyCapacity: capacity}
	if err := conn.Create(&o).Error; err != nil {
		t.Fatalf("seed operator: %v", err)
	}
	o.User = u
	return o
}

// SeedRequest inserts a pickup request in the given state.
func SeedRequest(t testing.TB, conn *gorm.DB, citizenID uuid.UUID, material string, status enums.PickupStatus, operatorID *uuid.UUID) models.PickupRequest {
	t.Helper()
	r := models.PickupRequest{
		CitizenID:     citizenID,
		MaterialCode:  material,
		Quantity:      2,
		EstimatedDate: time.Now().UTC().AddDate(0, 0, 3).Truncate(24 * time.Hour),
		Status:        status,
		OperatorID:    operatorID,
	}
	if err := conn.Create(&r).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

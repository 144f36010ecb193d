package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alimatrix/alimatrix/internal/models"
)

// DefaultParams are appended to a bare SQLite path.
const DefaultParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

var conn *gorm.DB

// DSN turns a DATABASE_URL into a sqlite DSN. "sqlite://" and "file:"
// prefixes are accepted; default parameters are added when none are given.
func DSN(url string) string {
	dsn := strings.TrimPrefix(url, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "file:")
	if !strings.Contains(dsn, "?") {
		dsn += "?" + DefaultParams
	}
	return dsn
}

// Open connects to the database at url without migrating it.
func Open(url string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(DSN(url)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return gdb, nil
}

// Migrate creates or updates the submission tables and their indexes.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.Contact{},
		&models.Submission{},
		&models.Child{},
		&models.Dochody{},
		&models.KosztyUtrzymania{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Composite indexes that GORM doesn't auto-create from struct tags.
	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_sub_wariant_rok ON submissions(wariant, rok_decyzji)",
		"CREATE INDEX IF NOT EXISTS idx_sub_apelacja_sad ON submissions(apelacja, rodzaj_sadu)",
	} {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Init opens and migrates the process-wide connection.
func Init(url string) error {
	gdb, err := Open(url)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	conn = gdb
	return nil
}

func Conn() *gorm.DB {
	return conn
}

// Close releases the process-wide connection.
func Close() error {
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

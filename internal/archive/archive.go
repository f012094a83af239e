// Package archive persists pack runs and their manifests, preferring a
// shared Postgres instance and falling back to a local SQLite file.
package archive

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles archive database connections and writes.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates an archive manager. sqlitePath is the fallback
// database file; empty means in-memory.
func NewManager(log zerolog.Logger, sqlitePath string) *Manager {
	return &Manager{
		SqliteFilePath: sqlitePath,
		Logger:         log,
	}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres fails.
func (m *Manager) Connect() error {
	var err error

	m.DB, err = m.GetPostgresDB()
	if err == nil {
		m.SqlDB, err = m.DB.DB()
		if err == nil {
			err = m.SqlDB.Ping()
		}
	}
	if err != nil {
		m.Logger.Warn().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		m.DB, err = m.GetSqliteDB(m.SqliteFilePath)
		if err != nil || m.DB == nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %w", err)
		}
	}
	m.IsValid = true

	if !m.ShouldSaveLocal {
		m.SqlDB.SetMaxOpenConns(10)
	}
	m.Logger.Info().Bool("local", m.ShouldSaveLocal).Msg("Connected to archive database")
	return nil
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	m.Logger.Debug().Msgf("Connecting to Postgres DB at '%s'", dsn)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.IsValid = false
		return nil, err
	}
	if path != "" {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Setup migrates the archive schema.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating archive schema")
	if err := m.DB.AutoMigrate(Models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return nil
}

// SaveRun writes a run and its entries in one create.
func (m *Manager) SaveRun(run *PackRun) error {
	if !m.IsValid {
		return fmt.Errorf("archive db not valid, not saving")
	}
	if err := m.DB.Create(run).Error; err != nil {
		return fmt.Errorf("failed to save pack run: %w", err)
	}
	m.Logger.Debug().Uint("run", run.ID).Int("entries", len(run.Entries)).Msg("Archived pack run")
	return nil
}

// RunsForDeployment returns the archived runs for one deployment,
// newest first, entries not loaded.
func (m *Manager) RunsForDeployment(deploymentID string) ([]PackRun, error) {
	if !m.IsValid {
		return nil, fmt.Errorf("archive db not valid")
	}
	var runs []PackRun
	err := m.DB.Where("deployment_id = ?", deploymentID).
		Order("created_at desc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.SqlDB != nil {
		return m.SqlDB.Close()
	}
	if m.DB != nil {
		if db, err := m.DB.DB(); err == nil {
			return db.Close()
		}
	}
	return nil
}

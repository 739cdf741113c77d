package database

import (
	"context"
	"errors"
	"testing"

	"apex-http-service/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockPool(t *testing.T) (*ConnectionPool, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	mock.ExpectPing()
	pool, err := Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), "mysql", logger.Silent)
	require.NoError(t, err)
	return pool, mock
}

func TestMySQLPoolHealthCheck(t *testing.T) {
	pool, mock := newMockPool(t)

	mock.ExpectPing()
	assert.NoError(t, pool.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, pool.HealthCheck(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLPoolStats(t *testing.T) {
	pool, _ := newMockPool(t)

	stats, err := pool.Stats()
	require.NoError(t, err)
	assert.Equal(t, "mysql", stats["driver"])
	assert.Equal(t, 100, stats["max_open_connections"])
}

func TestOpenPingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))
	_, err = Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), "mysql", logger.Silent)
	assert.Error(t, err)
}

func TestSQLiteMigrateModes(t *testing.T) {
	pool, err := OpenInMemory("migrate_" + uuid.NewString())
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, Migrate(pool.DB, MigrateAuto))
	for _, m := range models.All() {
		assert.True(t, pool.DB.Migrator().HasTable(m))
	}

	require.NoError(t, pool.DB.Create(&models.Property{Name: "HQ", Code: "HQ"}).Error)
	require.NoError(t, Migrate(pool.DB, MigrateDrop))

	var count int64
	require.NoError(t, pool.DB.Model(&models.Property{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.Error(t, Migrate(pool.DB, "rebuild"))
}

func TestWithTransactionRollback(t *testing.T) {
	pool, err := OpenInMemory("tx_" + uuid.NewString())
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(pool.DB, MigrateAuto))

	boom := errors.New("boom")
	err = pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Property{Name: "A", Code: "A"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, pool.DB.Model(&models.Property{}).Count(&count).Error)
	assert.Zero(t, count)
}

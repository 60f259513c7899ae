package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GetDb opens the database described by cfg and panics if it cannot.
func GetDb(cfg *Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.DBType {
	case "postgres":
		db, err = OpenPostgres(cfg.DBDsn)
	case "sqlite":
		if dir := filepath.Dir(cfg.DBDsn); dir != "." {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				panic(err)
			}
		}
		db, err = OpenSqlite(cfg.DBDsn)
	default:
		err = fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
	if err != nil {
		logrus.Errorf("error opening database: %v", err)
		panic(err)
	}

	return db
}

func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// OpenSqlite opens a sqlite database. The pool is limited to one connection
// so appends are serialized instead of failing with "database is locked".
func OpenSqlite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

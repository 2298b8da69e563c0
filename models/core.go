package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 建表与索引：图斑表带空间索引与分区索引，修改记录表按图斑、用户建索引并随图斑级联删除
func Migrate(db *gorm.DB) error {
	isPostgres := db.Dialector.Name() == "postgres"
	if isPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
			return fmt.Errorf("enable postgis: %w", err)
		}
	}

	if err := migrateAllTables(db); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}

	if isPostgres {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sectors_geom ON sectors USING GIST (geom)").Error; err != nil {
			return fmt.Errorf("create spatial index: %w", err)
		}
	}
	return nil
}

// migrateAllTables 批量迁移所有表
func migrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&User{},
		&Sector{},
		&ChangeHistoryEntry{},
	}
	return db.AutoMigrate(models...)
}

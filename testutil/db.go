// Package testutil 测试用的内存数据库与样例数据
package testutil

import (
	"io"
	"testing"

	"github.com/GrainArc/SectorMap/config"
	"github.com/GrainArc/SectorMap/logger"
	"github.com/GrainArc/SectorMap/methods"
	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 预置用户
const (
	AdminID  uint = 1
	EditorID uint = 2
	ViewerID uint = 3
)

// NewTestDB 内存 SQLite，已迁移并写入预置用户；测试结束时关闭
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.Default()
	cfg.DBType = "sqlite"
	cfg.SQLitePath = ":memory:"
	log := logger.SetupTo(io.Discard, "error", "text")

	db, err := config.OpenDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	users := []models.User{
		{ID: AdminID, Username: "admin", FullName: "System Admin", Role: models.RoleAdmin},
		{ID: EditorID, Username: "editor", FullName: "Field Editor", Role: models.RoleEditor},
		{ID: ViewerID, Username: "viewer", FullName: "Read Only", Role: models.RoleViewer},
	}
	require.NoError(t, db.Create(&users).Error)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Square 以 (lon, lat) 为左下角、边长 size 的单个正方形
func Square(lon, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{lon, lat},
		{lon + size, lat},
		{lon + size, lat + size},
		{lon, lat + size},
		{lon, lat},
	}}}
}

// NewInput 可直接用于新建的图斑输入
func NewInput(division models.Division, canal string) *methods.SectorInput {
	in := &methods.SectorInput{HasGeometry: true}
	in.Sector.Division = division
	in.Sector.CanalName = &canal
	in.Sector.Geom = models.Geometry{MultiPolygon: Square(31.2, 30.1, 0.01)}
	return in
}

// CountHistory 图斑当前的修改记录条数
func CountHistory(t testing.TB, db *gorm.DB, sectorID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ChangeHistoryEntry{}).Where("sector_id = ?", sectorID).Count(&n).Error)
	return n
}

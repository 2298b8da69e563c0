package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/GrainArc/SectorMap/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// OpenDB 按配置打开数据库连接池；句柄由调用方显式传递，不做全局单例
func OpenDB(cfg Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	isSQLite := strings.EqualFold(cfg.DBType, "sqlite")
	if isSQLite {
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	} else {
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBType, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// SQLite 单写者；内存库只能存在于一个连接上
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	log.Info("db_open_ok", "type", cfg.DBType)
	return db, nil
}

// SQLiteDSN 打开外键约束，级联删除依赖它
func SQLiteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	return "file:" + path + "?_foreign_keys=on"
}

// OpenRedis 未配置地址时返回 nil，表示关闭缓存
func OpenRedis(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

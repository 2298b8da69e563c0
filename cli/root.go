package cli

import (
	"fmt"
	"log/slog"

	"github.com/GrainArc/SectorMap/config"
	"github.com/GrainArc/SectorMap/logger"
	"github.com/GrainArc/SectorMap/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// RootOptions 全局参数
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand sectormap 命令入口
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sectormap",
		Short: "SectorMap - irrigation sector store",
		Long:  "Versioned irrigation sector polygons with filtered queries, audited mutations and bulk import.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.xml", "path to config.xml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	return cmd
}

// bootstrap 读取配置、初始化日志、连接数据库并迁移
func bootstrap(opts *RootOptions) (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := config.OpenDB(cfg, log)
	if err != nil {
		return cfg, log, nil, err
	}
	if err := models.Migrate(db); err != nil {
		return cfg, log, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, log, db, nil
}

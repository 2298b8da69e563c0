package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrainArc/SectorMap/config"
	"github.com/GrainArc/SectorMap/routers"
	"github.com/GrainArc/SectorMap/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// NewServeCommand 迁移后启动 HTTP 服务，收到 SIGINT/SIGTERM 时优雅退出
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}

			rdb := config.OpenRedis(cfg)
			if rdb != nil {
				defer rdb.Close()
				if err := rdb.Ping(cmd.Context()).Err(); err != nil {
					log.Warn("redis_ping_failed", "addr", cfg.RedisAddr, "err", err)
				}
			}
			cache := services.NewFeatureCache(rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second, log)

			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := &http.Server{
				Addr:              cfg.MainRouter,
				Handler:           routers.SetupRouter(db, cache, log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("http_listen", "addr", cfg.MainRouter)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("http_shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			return nil
		},
	}
}

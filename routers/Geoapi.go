package routers

import (
	"log/slog"

	"github.com/GrainArc/SectorMap/metrics"
	"github.com/GrainArc/SectorMap/services"
	"github.com/GrainArc/SectorMap/views"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 组装 gin 引擎：请求 id、访问日志、图斑接口、指标与健康检查
func SetupRouter(db *gorm.DB, cache services.FeatureCache, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), views.RequestID(), views.AccessLog(log))

	ctrl := views.NewSectorController(db,
		services.NewSectorService(db, cache, log),
		services.NewHistoryService(db),
		log,
	)
	SectorRouters(r, ctrl)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", ctrl.Health)
	return r
}

// SectorRouters 图斑接口；读接口开放，写接口按角色放行
func SectorRouters(r *gin.Engine, ctrl *views.SectorController) {
	editor := views.RequireRole(views.EditorRoles...)
	admin := views.RequireRole(views.AdminRoles...)

	sectorRouter := r.Group("/api/sectors")
	{
		sectorRouter.GET("", ctrl.ListSectors)
		sectorRouter.GET("/division/:division", ctrl.ListByDivision)
		sectorRouter.GET("/:id", ctrl.GetSector)
		sectorRouter.GET("/:id/history", ctrl.GetHistory)

		sectorRouter.POST("", editor, ctrl.CreateSector)
		sectorRouter.POST("/batch", editor, ctrl.BatchUpdate)
		sectorRouter.POST("/import", editor, ctrl.ImportSectors)
		sectorRouter.PUT("/:id", editor, ctrl.UpdateSector)
		sectorRouter.DELETE("/:id", admin, ctrl.DeleteSector)
	}
}

package views

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/GrainArc/SectorMap/Transformer"
	"github.com/GrainArc/SectorMap/methods"
	"github.com/GrainArc/SectorMap/response"
	"github.com/GrainArc/SectorMap/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SectorController 图斑接口
type SectorController struct {
	sectors *services.SectorService
	history *services.HistoryService
	db      *gorm.DB
	log     *slog.Logger
}

func NewSectorController(db *gorm.DB, sectors *services.SectorService, history *services.HistoryService, log *slog.Logger) *SectorController {
	return &SectorController{sectors: sectors, history: history, db: db, log: log}
}

// fail 校验错误 400，不存在 404，其它一律 500 且只记日志不外露细节
func (uc *SectorController) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case services.IsValidation(err),
		errors.Is(err, methods.ErrInvalidGeometry),
		errors.Is(err, methods.ErrInvalidPayload):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		uc.log.Error("request_failed",
			"request_id", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"err", err,
		)
		response.Error(c, http.StatusInternalServerError, "internal server error")
	}
}

func (uc *SectorController) pathID(c *gin.Context) (uint, bool) {
	id, ok := methods.ParseID(c.Param("id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid sector id")
	}
	return id, ok
}

// ListSectors 条件筛选加分页
func (uc *SectorController) ListSectors(c *gin.Context) {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	fc, err := uc.sectors.List(c.Request.Context(), params)
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, fc)
}

// ListByDivision 按分区读取
func (uc *SectorController) ListByDivision(c *gin.Context) {
	fc, err := uc.sectors.ListByDivision(c.Request.Context(), c.Param("division"), c.Query("limit"), c.Query("offset"))
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, fc)
}

// GetSector 单个图斑要素
func (uc *SectorController) GetSector(c *gin.Context) {
	id, ok := uc.pathID(c)
	if !ok {
		return
	}
	data, err := uc.sectors.GetFeature(c.Request.Context(), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// GetHistory 图斑修改记录
func (uc *SectorController) GetHistory(c *gin.Context) {
	id, ok := uc.pathID(c)
	if !ok {
		return
	}
	entries, err := uc.history.History(c.Request.Context(), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, entries)
}

// CreateSector 新建图斑
func (uc *SectorController) CreateSector(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "cannot read request body")
		return
	}
	in, err := methods.ParseFeature(body)
	if err != nil {
		uc.fail(c, err)
		return
	}
	id, err := uc.sectors.Create(c.Request.Context(), currentActor(c), in)
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// UpdateSector 修改图斑属性或几何
func (uc *SectorController) UpdateSector(c *gin.Context) {
	id, ok := uc.pathID(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "cannot read request body")
		return
	}
	in, err := methods.ParseUpdate(body)
	if err != nil {
		uc.fail(c, err)
		return
	}
	if err := uc.sectors.Update(c.Request.Context(), currentActor(c), id, in.Fields, in.Geometry); err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "id": id})
}

// DeleteSector 删除图斑
func (uc *SectorController) DeleteSector(c *gin.Context) {
	id, ok := uc.pathID(c)
	if !ok {
		return
	}
	if err := uc.sectors.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "id": id})
}

// BatchUpdate 批量修改
func (uc *SectorController) BatchUpdate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "cannot read request body")
		return
	}
	items, err := methods.ParseBatch(body)
	if err != nil {
		uc.fail(c, err)
		return
	}
	n, err := uc.sectors.BatchUpdate(c.Request.Context(), currentActor(c), items)
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// ImportSectors 批量导入：JSON 请求体为 FeatureCollection；
// multipart 上传时 file 字段可为 GeoJSON、shp 或包含 shapefile 的 zip/rar
func (uc *SectorController) ImportSectors(c *gin.Context) {
	var inputs []*methods.SectorInput
	var err error
	if c.ContentType() == "multipart/form-data" {
		inputs, err = uc.uploadedSectors(c)
	} else {
		var body []byte
		if body, err = c.GetRawData(); err != nil {
			response.Error(c, http.StatusBadRequest, "cannot read request body")
			return
		}
		inputs, err = methods.ParseFeatureCollection(body)
	}
	if err != nil {
		uc.fail(c, err)
		return
	}
	ids, err := uc.sectors.Import(c.Request.Context(), currentActor(c), inputs)
	if err != nil {
		uc.fail(c, err)
		return
	}
	response.Created(c, gin.H{"ids": ids})
}

func (uc *SectorController) uploadedSectors(c *gin.Context) ([]*methods.SectorInput, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file upload failed: %v", methods.ErrInvalidPayload, err)
	}
	dir, err := os.MkdirTemp("", "sectormap-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return Transformer.LoadSectors(path)
}

// Health 数据库连通性
func (uc *SectorController) Health(c *gin.Context) {
	sqlDB, err := uc.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		uc.log.Error("health_check_failed", "err", err)
		response.Error(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GrainArc/SectorMap/methods"
	"github.com/GrainArc/SectorMap/metrics"
	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor 已认证的操作人
type Actor struct {
	ID   uint
	Role string
}

// 变更操作名，用于日志与指标
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpBatch  = "batch_update"
	OpImport = "import"
)

// SectorService 图斑的读写；每个写操作是一个事务，数据与审计记录同时提交或同时回滚
type SectorService struct {
	db    *gorm.DB
	cache FeatureCache
	log   *slog.Logger
}

func NewSectorService(db *gorm.DB, cache FeatureCache, log *slog.Logger) *SectorService {
	if cache == nil {
		cache = NoopCache{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &SectorService{db: db, cache: cache, log: log}
}

// runInTx 开启事务执行 fn；fn 出错或 panic 时回滚，连接在任何路径上都会归还
func (s *SectorService) runInTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) (err error) {
	start := time.Now()
	outcome := metrics.OutcomeRolledBack
	defer func() {
		metrics.MutationsTotal.WithLabelValues(op, outcome).Inc()
		metrics.MutationDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	}()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return txError(op, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return txError(op, err)
	}
	if err := tx.Commit().Error; err != nil {
		return txError(op, err)
	}
	outcome = metrics.OutcomeCommitted
	return nil
}

// lockSector 读取当前图斑；PostgreSQL 下加行锁，直到事务结束
func lockSector(tx *gorm.DB, id uint) (*models.Sector, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sector models.Sector
	if err := q.Where("id = ?", id).First(&sector).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sector, nil
}

func checkActor(actor Actor) error {
	if actor.ID == 0 {
		return validationf("actor is required")
	}
	return nil
}

func validateNew(in *methods.SectorInput) error {
	if in == nil {
		return validationf("feature is required")
	}
	if in.Sector.Division == "" {
		return validationf("Division is required")
	}
	if !in.Sector.Division.Valid() {
		return validationf("invalid Division %q", in.Sector.Division)
	}
	if !in.HasGeometry || in.Sector.Geom.IsEmpty() {
		return validationf("geometry is required")
	}
	return nil
}

// insertSector 写入新图斑及其 INSERT 审计记录
func insertSector(tx *gorm.DB, actor Actor, in *methods.SectorInput) (models.Sector, error) {
	sector := in.Sector
	sector.ID = 0
	sector.CreatedAt = time.Time{}
	sector.UpdatedAt = time.Time{}
	sector.CreatedBy = &actor.ID
	sector.UpdatedBy = &actor.ID
	sector.Creator, sector.Updater = nil, nil

	if err := tx.Create(&sector).Error; err != nil {
		return sector, fmt.Errorf("insert sector: %w", err)
	}
	entry := newEntry(sector.ID, actor.ID, models.ActionInsert, models.FieldAll, nil, methods.PropertiesText(sector))
	if err := appendHistory(tx, []models.ChangeHistoryEntry{entry}); err != nil {
		return sector, err
	}
	return sector, nil
}

// Create 新建图斑，返回新 id；Division 与几何必填，校验在任何写入之前完成
func (s *SectorService) Create(ctx context.Context, actor Actor, in *methods.SectorInput) (uint, error) {
	if err := checkActor(actor); err != nil {
		return 0, err
	}
	if err := validateNew(in); err != nil {
		return 0, err
	}

	var created models.Sector
	err := s.runInTx(ctx, OpCreate, func(tx *gorm.DB) error {
		var err error
		created, err = insertSector(tx, actor, in)
		return err
	})
	if err != nil {
		s.log.Error("sector_create_failed", "user", actor.ID, "err", err)
		return 0, err
	}
	auditCommitted(models.ActionInsert, 1)
	s.log.Info("sector_created", "id", created.ID, "user", actor.ID)
	return created.ID, nil
}

// Import 批量导入要素，全部成功或全部回滚
func (s *SectorService) Import(ctx context.Context, actor Actor, inputs []*methods.SectorInput) ([]uint, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, validationf("no features to import")
	}
	for i, in := range inputs {
		if err := validateNew(in); err != nil {
			return nil, validationf("feature %d: %v", i, err)
		}
	}

	ids := make([]uint, 0, len(inputs))
	err := s.runInTx(ctx, OpImport, func(tx *gorm.DB) error {
		for i, in := range inputs {
			created, err := insertSector(tx, actor, in)
			if err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
			ids = append(ids, created.ID)
		}
		return nil
	})
	if err != nil {
		s.log.Error("sector_import_failed", "user", actor.ID, "features", len(inputs), "err", err)
		return nil, err
	}
	auditCommitted(models.ActionInsert, len(ids))
	s.log.Info("sectors_imported", "count", len(ids), "user", actor.ID)
	return ids, nil
}

// Update 修改单个图斑；字段值与当前值全部相同时返回 ErrNoUpdates
func (s *SectorService) Update(ctx context.Context, actor Actor, id uint, fields map[string]interface{}, geom orb.MultiPolygon) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	if err := methods.CheckFields(fields); err != nil {
		return validationf("%v", err)
	}

	var changed int
	err := s.runInTx(ctx, OpUpdate, func(tx *gorm.DB) error {
		current, err := lockSector(tx, id)
		if err != nil {
			return err
		}
		n, err := applyUpdate(tx, actor, current, fields, geom)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNoUpdates
		}
		changed = n
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !IsValidation(err) {
			s.log.Error("sector_update_failed", "id", id, "user", actor.ID, "err", err)
		}
		return err
	}
	s.cache.Invalidate(ctx, id)
	auditCommitted(models.ActionUpdate, changed)
	s.log.Info("sector_updated", "id", id, "user", actor.ID, "changes", changed)
	return nil
}

// applyUpdate 计算差异并写入；返回写入的审计条数，0 表示无变化且未写入任何内容
func applyUpdate(tx *gorm.DB, actor Actor, current *models.Sector, fields map[string]interface{}, geom orb.MultiPolygon) (int, error) {
	diff, err := methods.DiffSector(current, fields, geom)
	if err != nil {
		return 0, validationf("%v", err)
	}
	if diff.Empty() {
		return 0, nil
	}

	assignments := make(map[string]interface{}, len(diff.Assignments)+2)
	for k, v := range diff.Assignments {
		assignments[k] = v
	}
	assignments["updated_by"] = actor.ID
	assignments["updated_at"] = time.Now().UTC()
	if err := tx.Model(&models.Sector{}).Where("id = ?", current.ID).Updates(assignments).Error; err != nil {
		return 0, fmt.Errorf("update sector %d: %w", current.ID, err)
	}

	entries := make([]models.ChangeHistoryEntry, 0, len(diff.Changes))
	for _, c := range diff.Changes {
		entries = append(entries, newEntry(current.ID, actor.ID, models.ActionUpdate, c.Field, c.Old, c.New))
	}
	if err := appendHistory(tx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Delete 删除图斑；先写 DELETE 审计再删除行，修改记录随图斑级联删除
func (s *SectorService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	err := s.runInTx(ctx, OpDelete, func(tx *gorm.DB) error {
		current, err := lockSector(tx, id)
		if err != nil {
			return err
		}
		entry := newEntry(id, actor.ID, models.ActionDelete, models.FieldAll, methods.PropertiesText(*current), nil)
		if err := appendHistory(tx, []models.ChangeHistoryEntry{entry}); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Sector{}).Error; err != nil {
			return fmt.Errorf("delete sector %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("sector_delete_failed", "id", id, "user", actor.ID, "err", err)
		}
		return err
	}
	s.cache.Invalidate(ctx, id)
	auditCommitted(models.ActionDelete, 1)
	s.log.Info("sector_deleted", "id", id, "user", actor.ID)
	return nil
}

// BatchUpdate 在一个事务内逐条修改：不存在的 id 与无变化的条目跳过；
// 任一条目写入失败则整批回滚。返回实际产生变化的条目数。
func (s *SectorService) BatchUpdate(ctx context.Context, actor Actor, items []methods.UpdateInput) (int, error) {
	if err := checkActor(actor); err != nil {
		return 0, err
	}
	for i, item := range items {
		if item.ID == 0 {
			return 0, validationf("item %d: id is required", i)
		}
		if err := methods.CheckFields(item.Fields); err != nil {
			return 0, validationf("item %d: %v", i, err)
		}
	}

	var (
		updated int
		entries int
		touched []uint
	)
	err := s.runInTx(ctx, OpBatch, func(tx *gorm.DB) error {
		for i, item := range items {
			current, err := lockSector(tx, item.ID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			n, err := applyUpdate(tx, actor, current, item.Fields, item.Geometry)
			if err != nil {
				return fmt.Errorf("item %d (id %d): %w", i, item.ID, err)
			}
			if n == 0 {
				continue
			}
			updated++
			entries += n
			touched = append(touched, item.ID)
		}
		return nil
	})
	if err != nil {
		s.log.Error("sector_batch_failed", "items", len(items), "user", actor.ID, "err", err)
		return 0, err
	}
	s.cache.Invalidate(ctx, touched...)
	auditCommitted(models.ActionUpdate, entries)
	s.log.Info("sectors_batch_updated", "items", len(items), "updated", updated, "user", actor.ID)
	return updated, nil
}

// Get 按 id 读取图斑
func (s *SectorService) Get(ctx context.Context, id uint) (models.Sector, error) {
	var sector models.Sector
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sector).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sector, ErrNotFound
	}
	return sector, err
}

// GetFeature 按 id 读取要素 JSON，优先走缓存；
// 未命中时带着读库前的缓存版本号回填，读库期间发生的失效会让回填作废
func (s *SectorService) GetFeature(ctx context.Context, id uint) ([]byte, error) {
	data, version, ok := s.cache.Get(ctx, id)
	if ok {
		return data, nil
	}
	sector, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(methods.ToFeature(sector))
	if err != nil {
		return nil, fmt.Errorf("encode feature %d: %w", id, err)
	}
	s.cache.Set(ctx, id, version, data)
	return data, nil
}

// List 按查询参数筛选并分页
func (s *SectorService) List(ctx context.Context, params map[string]string) (*methods.FeatureCollection, error) {
	return s.query(ctx, methods.CompileSectorFilter(params))
}

// ListByDivision 按分区读取，分页参数单独给出
func (s *SectorService) ListByDivision(ctx context.Context, division, limit, offset string) (*methods.FeatureCollection, error) {
	d, ok := models.ParseDivision(division)
	if !ok {
		return nil, validationf("invalid division %q", division)
	}
	return s.query(ctx, methods.DivisionQuery(d, limit, offset))
}

func (s *SectorService) query(ctx context.Context, q methods.SectorQuery) (*methods.FeatureCollection, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Sector{}).Scopes(q.Filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count sectors: %w", err)
	}

	var rows []models.Sector
	if err := db.Scopes(q.Filter, q.Page).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}

	page := methods.NewPagination(total, q.Limit, q.Offset, len(rows))
	return methods.ToFeatureCollection(rows, &page), nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/GrainArc/SectorMap/metrics"
	"github.com/GrainArc/SectorMap/models"
	"gorm.io/gorm"
)

// HistoryEntry 修改记录及操作人展示信息
type HistoryEntry struct {
	ID        uint      `json:"id"`
	SectorID  uint      `json:"sector_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Action    string    `json:"action"`
	FieldName string    `json:"field_name"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
}

// HistoryService 修改记录只读查询；写入只发生在图斑变更的事务里
type HistoryService struct {
	db *gorm.DB
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{db: db}
}

// History 图斑的全部修改记录，最新的在前
func (h *HistoryService) History(ctx context.Context, sectorID uint) ([]HistoryEntry, error) {
	db := h.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Sector{}).Where("id = ?", sectorID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check sector %d: %w", sectorID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	entries := make([]HistoryEntry, 0)
	err := db.Table("change_history AS h").
		Select(`h.id, h.sector_id, h.user_id,
			COALESCE(u.username, '') AS username, COALESCE(u.full_name, '') AS full_name,
			h.action, h.field_name, h.old_value, h.new_value, h.changed_at`).
		Joins("LEFT JOIN users u ON u.id = h.user_id").
		Where("h.sector_id = ?", sectorID).
		Order("h.changed_at DESC, h.id DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query history of sector %d: %w", sectorID, err)
	}
	return entries, nil
}

func newEntry(sectorID, userID uint, action, field string, oldValue, newValue *string) models.ChangeHistoryEntry {
	return models.ChangeHistoryEntry{
		SectorID:  sectorID,
		UserID:    userID,
		Action:    action,
		FieldName: field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedAt: time.Now().UTC(),
	}
}

// appendHistory 在调用方事务内写入审计记录；失败时整个事务回滚
func appendHistory(tx *gorm.DB, entries []models.ChangeHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("write change history: %w", err)
	}
	return nil
}

func auditCommitted(action string, n int) {
	if n > 0 {
		metrics.AuditEntriesTotal.WithLabelValues(action).Add(float64(n))
	}
}

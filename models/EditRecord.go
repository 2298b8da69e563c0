package models

import "time"

// 审计动作
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// 粗粒度记录使用的字段名
const (
	FieldAll      = "all"
	FieldGeometry = "geometry"
)

// ChangeHistoryEntry 图斑修改记录，一次修改中每个变化字段一条；只追加不修改，随图斑级联删除
type ChangeHistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SectorID  uint      `gorm:"not null;index:idx_change_history_sector" json:"sector_id"`
	UserID    uint      `gorm:"not null;index:idx_change_history_user" json:"user_id"`
	Action    string    `gorm:"type:varchar(10);not null;check:action IN ('INSERT','UPDATE','DELETE')" json:"action"`
	FieldName string    `gorm:"type:varchar(64);not null" json:"field_name"`
	OldValue  *string   `gorm:"type:text" json:"old_value"`
	NewValue  *string   `gorm:"type:text" json:"new_value"`
	ChangedAt time.Time `gorm:"not null" json:"changed_at"`

	Sector *Sector `gorm:"foreignKey:SectorID;constraint:OnDelete:CASCADE" json:"-"`
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (ChangeHistoryEntry) TableName() string {
	return "change_history"
}

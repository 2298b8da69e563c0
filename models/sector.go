package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Division 灌区分区
type Division string

const (
	DivisionEast  Division = "East"
	DivisionWest  Division = "West"
	DivisionNorth Division = "North"
	DivisionSouth Division = "South"
)

// Divisions 全部合法分区，顺序固定
var Divisions = []Division{DivisionEast, DivisionWest, DivisionNorth, DivisionSouth}

// Valid 是否为合法分区
func (d Division) Valid() bool {
	for _, v := range Divisions {
		if d == v {
			return true
		}
	}
	return false
}

// ParseDivision 忽略大小写匹配分区
func ParseDivision(s string) (Division, bool) {
	s = strings.TrimSpace(s)
	for _, v := range Divisions {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return Division(s), false
}

// 数值字段的小数位，与列定义一致
const (
	DesignAreaScale = 4
	ShapeScale      = 8
)

// Sector 灌区分块图斑
type Sector struct {
	ID uint `gorm:"primaryKey"`

	// 历史导入编号，仅作溯源，不唯一
	ObjectID1 *int64 `gorm:"column:objectid_1"`
	ObjectID  *int64 `gorm:"column:objectid"`
	FeatureID *int64 `gorm:"column:feature_id"`
	NoNemra   *int64 `gorm:"column:no_nemra"`

	CanalName *string  `gorm:"column:canal_name;type:varchar(255)"`
	Office    *string  `gorm:"column:office;type:varchar(255)"`
	Division  Division `gorm:"column:division;type:varchar(10);not null;index:idx_sectors_division;check:division IN ('East','West','North','South')"`
	NameAr    *string  `gorm:"column:name_ar;type:varchar(255)"`

	DesignAF  decimal.NullDecimal `gorm:"column:design_a_f;type:numeric(14,4);check:design_a_f >= 0"`
	Remarks1  *string             `gorm:"column:remarks_1;type:text"`
	ShapeLeng decimal.NullDecimal `gorm:"column:shape_leng;type:numeric(20,8)"`
	ShapeLe1  decimal.NullDecimal `gorm:"column:shape_le_1;type:numeric(20,8)"`
	ShapeArea decimal.NullDecimal `gorm:"column:shape_area;type:numeric(24,8)"`

	Geom Geometry `gorm:"column:geom;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *uint `gorm:"column:created_by;index"`
	UpdatedBy *uint `gorm:"column:updated_by"`

	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"-"`
	Updater *User `gorm:"foreignKey:UpdatedBy;constraint:OnDelete:SET NULL" json:"-"`
}

func (Sector) TableName() string {
	return "sectors"
}

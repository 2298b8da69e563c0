package methods

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/GrainArc/SectorMap/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnknownField 字段不在允许修改的白名单内
	ErrUnknownField = errors.New("unknown field")
	// ErrImmutableField 字段不允许修改
	ErrImmutableField = errors.New("field cannot be changed")
)

type fieldKind int

const (
	kindInt fieldKind = iota
	kindText
	kindDecimal
)

// SectorField 图斑属性字段：数据库列名与对外属性名
type SectorField struct {
	Column   string
	Property string
	kind     fieldKind
	scale    int32
	get      func(s *models.Sector) interface{}
	set      func(s *models.Sector, v interface{})
}

// sectorFields 可写属性字段白名单；division 与系统字段不在其中
var sectorFields = []SectorField{
	intField("objectid_1", "OBJECTID_1", func(s *models.Sector) **int64 { return &s.ObjectID1 }),
	intField("objectid", "OBJECTID", func(s *models.Sector) **int64 { return &s.ObjectID }),
	intField("feature_id", "Id", func(s *models.Sector) **int64 { return &s.FeatureID }),
	intField("no_nemra", "No_Nemra", func(s *models.Sector) **int64 { return &s.NoNemra }),
	textField("canal_name", "Canal_Name", func(s *models.Sector) **string { return &s.CanalName }),
	textField("office", "Office", func(s *models.Sector) **string { return &s.Office }),
	textField("name_ar", "Name_Ar", func(s *models.Sector) **string { return &s.NameAr }),
	decimalField("design_a_f", "Design_A_F", models.DesignAreaScale, func(s *models.Sector) *decimal.NullDecimal { return &s.DesignAF }),
	textField("remarks_1", "Remarks_1", func(s *models.Sector) **string { return &s.Remarks1 }),
	decimalField("shape_leng", "Shape_Leng", models.ShapeScale, func(s *models.Sector) *decimal.NullDecimal { return &s.ShapeLeng }),
	decimalField("shape_le_1", "Shape_Le_1", models.ShapeScale, func(s *models.Sector) *decimal.NullDecimal { return &s.ShapeLe1 }),
	decimalField("shape_area", "Shape_Area", models.ShapeScale, func(s *models.Sector) *decimal.NullDecimal { return &s.ShapeArea }),
}

// 对外属性名
const (
	PropDivision  = "Division"
	PropCreatedAt = "CreatedAt"
	PropUpdatedAt = "UpdatedAt"
	PropCreatedBy = "CreatedBy"
	PropUpdatedBy = "UpdatedBy"
)

func intField(column, property string, ref func(s *models.Sector) **int64) SectorField {
	return SectorField{
		Column: column, Property: property, kind: kindInt,
		get: func(s *models.Sector) interface{} {
			if p := *ref(s); p != nil {
				return *p
			}
			return nil
		},
		set: func(s *models.Sector, v interface{}) {
			if n, ok := v.(int64); ok {
				*ref(s) = &n
				return
			}
			*ref(s) = nil
		},
	}
}

func textField(column, property string, ref func(s *models.Sector) **string) SectorField {
	return SectorField{
		Column: column, Property: property, kind: kindText,
		get: func(s *models.Sector) interface{} {
			if p := *ref(s); p != nil {
				return *p
			}
			return nil
		},
		set: func(s *models.Sector, v interface{}) {
			if str, ok := v.(string); ok {
				*ref(s) = &str
				return
			}
			*ref(s) = nil
		},
	}
}

func decimalField(column, property string, scale int32, ref func(s *models.Sector) *decimal.NullDecimal) SectorField {
	return SectorField{
		Column: column, Property: property, kind: kindDecimal, scale: scale,
		get: func(s *models.Sector) interface{} {
			if d := *ref(s); d.Valid {
				return d.Decimal
			}
			return nil
		},
		set: func(s *models.Sector, v interface{}) {
			if d, ok := v.(decimal.Decimal); ok {
				*ref(s) = decimal.NullDecimal{Decimal: d, Valid: true}
				return
			}
			*ref(s) = decimal.NullDecimal{}
		},
	}
}

// SectorFields 返回白名单副本
func SectorFields() []SectorField {
	out := make([]SectorField, len(sectorFields))
	copy(out, sectorFields)
	return out
}

// LookupField 按列名或对外属性名查找可写字段
func LookupField(name string) (SectorField, error) {
	for _, f := range sectorFields {
		if name == f.Column || name == f.Property {
			return f, nil
		}
	}
	switch name {
	case "division", PropDivision, "id", "geom", "created_at", "updated_at", "created_by", "updated_by",
		PropCreatedAt, PropUpdatedAt, PropCreatedBy, PropUpdatedBy:
		return SectorField{}, fmt.Errorf("%w: %s", ErrImmutableField, name)
	}
	return SectorField{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// Value 取当前值：int64 / string / decimal.Decimal / nil
func (f SectorField) Value(s *models.Sector) interface{} {
	return f.get(s)
}

// Set 写入已转换的值，nil 表示置空
func (f SectorField) Set(s *models.Sector, v interface{}) {
	f.set(s, v)
}

// Coerce 将外部输入转换为字段类型；ok=false 表示无法解析，按未提供处理。
// raw 为 nil 时返回 (nil, true)，即显式置空。
func (f SectorField) Coerce(raw interface{}) (interface{}, bool) {
	if raw == nil {
		return nil, true
	}
	switch f.kind {
	case kindInt:
		return coerceInt(raw)
	case kindText:
		return coerceText(raw)
	case kindDecimal:
		d, ok := coerceDecimal(raw)
		if !ok {
			return nil, false
		}
		return d.Round(f.scale), true
	}
	return nil, false
}

func coerceInt(raw interface{}) (interface{}, bool) {
	var text string
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return nil, false
		}
		return int64(v), true
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(text)
	if err != nil || !d.IsInteger() {
		return nil, false
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return nil, false
	}
	return d.IntPart(), true
}

func coerceText(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case string:
		return CleanText(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return nil, false
}

func coerceDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	}
	return decimal.Decimal{}, false
}

// CleanText 移除空字符与非法 UTF-8，并统一为 NFC，保证阿拉伯文名称的比较稳定
func CleanText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == 0x00 || r == utf8.RuneError {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, ""))
	return norm.NFC.String(cleaned)
}

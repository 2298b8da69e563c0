package methods

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// Snapshot 将任意字段值转为审计用的规范文本；nil、空指针、无效小数与空几何返回 nil，空字符串保留为 ""
func Snapshot(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case *string:
		if t == nil {
			return nil
		}
		s = *t
	case int64:
		s = strconv.FormatInt(t, 10)
	case *int64:
		if t == nil {
			return nil
		}
		s = strconv.FormatInt(*t, 10)
	case int:
		s = strconv.Itoa(t)
	case uint:
		s = strconv.FormatUint(uint64(t), 10)
	case *uint:
		if t == nil {
			return nil
		}
		s = strconv.FormatUint(uint64(*t), 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case decimal.Decimal:
		s = t.String()
	case decimal.NullDecimal:
		if !t.Valid {
			return nil
		}
		s = t.Decimal.String()
	case time.Time:
		s = t.UTC().Format(time.RFC3339Nano)
	case models.Division:
		s = string(t)
	case models.Geometry:
		if t.IsEmpty() {
			return nil
		}
		s = GeometryText(t.MultiPolygon)
	case orb.MultiPolygon:
		if len(t) == 0 {
			return nil
		}
		s = GeometryText(t)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// GeometryText 几何的 GeoJSON 文本
func GeometryText(g orb.Geometry) string {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return ""
	}
	return string(data)
}

// PropertiesText 图斑全部属性的 JSON 文本，用于新增、删除的整条记录快照
func PropertiesText(s models.Sector) *string {
	data, err := json.Marshal(SectorProperties(s))
	if err != nil {
		return nil
	}
	text := string(data)
	return &text
}

func sameSnapshot(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

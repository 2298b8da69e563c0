package methods

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GrainArc/SectorMap/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// ErrInvalidGeometry 几何不是合法的 (Multi)Polygon GeoJSON
var ErrInvalidGeometry = errors.New("invalid geometry")

// ErrInvalidPayload 请求体无法解析
var ErrInvalidPayload = errors.New("invalid payload")

// Pagination 分页信息
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// NewPagination hasMore = offset + 本页条数 < total
func NewPagination(total int64, limit, offset, returned int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+returned) < total,
	}
}

// FeatureCollection 对外的要素集合，附带分页
type FeatureCollection struct {
	Type       string             `json:"type"`
	Features   []*geojson.Feature `json:"features"`
	Pagination *Pagination        `json:"pagination,omitempty"`
}

// SectorProperties 图斑属性按对外命名输出；小数按原精度输出为 JSON 数字
func SectorProperties(s models.Sector) geojson.Properties {
	props := make(geojson.Properties, len(sectorFields)+5)
	for _, f := range sectorFields {
		switch v := f.Value(&s).(type) {
		case decimal.Decimal:
			props[f.Property] = json.Number(v.String())
		default:
			props[f.Property] = v
		}
	}
	props[PropDivision] = string(s.Division)
	props[PropCreatedAt] = timeOrNil(s.CreatedAt)
	props[PropUpdatedAt] = timeOrNil(s.UpdatedAt)
	props[PropCreatedBy] = uintOrNil(s.CreatedBy)
	props[PropUpdatedBy] = uintOrNil(s.UpdatedBy)
	return props
}

// ToFeature 图斑转要素
func ToFeature(s models.Sector) *geojson.Feature {
	feature := geojson.NewFeature(s.Geom.MultiPolygon)
	feature.ID = s.ID
	feature.Properties = SectorProperties(s)
	return feature
}

// ToFeatureCollection 图斑列表转要素集合
func ToFeatureCollection(rows []models.Sector, page *Pagination) *FeatureCollection {
	features := make([]*geojson.Feature, 0, len(rows))
	for _, row := range rows {
		features = append(features, ToFeature(row))
	}
	return &FeatureCollection{Type: "FeatureCollection", Features: features, Pagination: page}
}

// SectorInput 解析后的要素，属性已做类型转换
type SectorInput struct {
	Sector      models.Sector
	HasGeometry bool
}

type rawFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// ParseFeature 解析单个要素；只对几何做结构校验，其余属性宽松转换，解析失败的数值视为未提供
func ParseFeature(data []byte) (*SectorInput, error) {
	var raw rawFeature
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	return raw.toInput()
}

// ParseFeatureCollection 解析要素集合，用于批量导入
func ParseFeatureCollection(data []byte) ([]*SectorInput, error) {
	var raw struct {
		Type     string       `json:"type"`
		Features []rawFeature `json:"features"`
	}
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	if raw.Type != "" && raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: expected FeatureCollection, got %q", ErrInvalidPayload, raw.Type)
	}
	out := make([]*SectorInput, 0, len(raw.Features))
	for i := range raw.Features {
		in, err := raw.Features[i].toInput()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

func (raw rawFeature) toInput() (*SectorInput, error) {
	if raw.Type != "" && raw.Type != "Feature" {
		return nil, fmt.Errorf("%w: expected Feature, got %q", ErrInvalidPayload, raw.Type)
	}
	in := &SectorInput{}

	if id, ok := coerceInt(raw.ID); ok && id.(int64) > 0 {
		in.Sector.ID = uint(id.(int64))
	}

	if !isNullJSON(raw.Geometry) {
		geom, err := ParseGeometry(raw.Geometry)
		if err != nil {
			return nil, err
		}
		in.Sector.Geom = models.Geometry{MultiPolygon: geom}
		in.HasGeometry = true
	}

	for key, value := range raw.Properties {
		switch key {
		case PropDivision, "division":
			if s, ok := value.(string); ok {
				in.Sector.Division, _ = models.ParseDivision(s)
			}
			continue
		case PropCreatedAt:
			in.Sector.CreatedAt = parseTime(value)
			continue
		case PropUpdatedAt:
			in.Sector.UpdatedAt = parseTime(value)
			continue
		case PropCreatedBy:
			in.Sector.CreatedBy = parseUint(value)
			continue
		case PropUpdatedBy:
			in.Sector.UpdatedBy = parseUint(value)
			continue
		}
		field, err := LookupField(key)
		if err != nil {
			continue
		}
		v, ok := field.Coerce(value)
		if !ok {
			continue
		}
		field.Set(&in.Sector, v)
	}
	return in, nil
}

// UpdateInput 单条或批量修改的输入；Fields 保留原始值，由差异计算统一转换
type UpdateInput struct {
	ID       uint
	Fields   map[string]interface{}
	Geometry orb.MultiPolygon
}

type rawUpdate struct {
	ID         interface{}            `json:"id"`
	Fields     map[string]interface{} `json:"fields"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// ParseUpdate 解析单条修改：{"properties"|"fields": {...}, "geometry": {...}}
func ParseUpdate(data []byte) (*UpdateInput, error) {
	var raw rawUpdate
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	return raw.toInput()
}

// ParseBatch 解析批量修改：[{"id": 1, "fields": {...}, "geometry": {...}}]
func ParseBatch(data []byte) ([]UpdateInput, error) {
	var raws []rawUpdate
	if err := decodeJSON(data, &raws); err != nil {
		return nil, err
	}
	out := make([]UpdateInput, 0, len(raws))
	for i, raw := range raws {
		in, err := raw.toInput()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, *in)
	}
	return out, nil
}

func (raw rawUpdate) toInput() (*UpdateInput, error) {
	in := &UpdateInput{Fields: make(map[string]interface{})}
	if id, ok := coerceInt(raw.ID); ok && id.(int64) > 0 {
		in.ID = uint(id.(int64))
	}
	for k, v := range raw.Properties {
		in.Fields[k] = v
	}
	for k, v := range raw.Fields {
		in.Fields[k] = v
	}
	if len(raw.Geometry) > 0 {
		if isNullJSON(raw.Geometry) {
			return nil, fmt.Errorf("%w: geometry cannot be null", ErrInvalidGeometry)
		}
		geom, err := ParseGeometry(raw.Geometry)
		if err != nil {
			return nil, err
		}
		in.Geometry = geom
	}
	return in, nil
}

// ParseGeometry 解析并校验 GeoJSON 几何
func ParseGeometry(data []byte) (orb.MultiPolygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if g.Coordinates == nil {
		return nil, fmt.Errorf("%w: missing coordinates", ErrInvalidGeometry)
	}
	return ValidateGeometry(g.Geometry())
}

// ValidateGeometry Polygon 转为 MultiPolygon；环必须闭合且至少 4 个点，坐标在经纬度范围内
func ValidateGeometry(g orb.Geometry) (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	switch t := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{t}
	case orb.MultiPolygon:
		mp = t
	case nil:
		return nil, fmt.Errorf("%w: empty geometry", ErrInvalidGeometry)
	default:
		return nil, fmt.Errorf("%w: expected Polygon or MultiPolygon, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("%w: no polygons", ErrInvalidGeometry)
	}
	for i, polygon := range mp {
		if len(polygon) == 0 {
			return nil, fmt.Errorf("%w: polygon %d has no rings", ErrInvalidGeometry, i)
		}
		for j, ring := range polygon {
			if len(ring) < 4 {
				return nil, fmt.Errorf("%w: polygon %d ring %d has %d positions, need at least 4", ErrInvalidGeometry, i, j, len(ring))
			}
			if !ring.Closed() {
				return nil, fmt.Errorf("%w: polygon %d ring %d is not closed", ErrInvalidGeometry, i, j)
			}
			for _, p := range ring {
				lon, lat := p.Lon(), p.Lat()
				if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
					return nil, fmt.Errorf("%w: position %v out of range", ErrInvalidGeometry, p)
				}
			}
		}
	}
	return mp, nil
}

func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func uintOrNil(p *uint) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func parseTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseUint(v interface{}) *uint {
	n, ok := coerceInt(v)
	if !ok || n.(int64) <= 0 {
		return nil
	}
	u := uint(n.(int64))
	return &u
}

// ParseID 路径参数中的图斑 id
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

package Transformer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitee.com/LJ_COOL/go-shp"
	"github.com/GrainArc/SectorMap/methods"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrUnsupportedShape shapefile 中出现非面要素
var ErrUnsupportedShape = fmt.Errorf("%w: unsupported shape type", methods.ErrInvalidGeometry)

type shpRecord struct {
	geom  orb.MultiPolygon
	attrs []string
}

// ReadShapefile 读取面状 shapefile 为要素集合。
// 字段名不区分大小写映射为图斑属性名，属性值按 .cpg 声明的编码转为 UTF-8，没有 .cpg 时自动识别
func ReadShapefile(path string) (*geojson.FeatureCollection, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open shapefile %s: %v", methods.ErrInvalidPayload, filepath.Base(path), err)
	}
	defer shape.Close()

	fields := shape.Fields()
	var records []shpRecord
	for shape.Next() {
		n, p := shape.Shape()
		rec := shpRecord{attrs: make([]string, len(fields))}
		switch s := p.(type) {
		case *shp.Polygon:
			rec.geom = BuildMultiPolygon(s.Points, s.Parts)
		case *shp.PolygonZ:
			rec.geom = BuildMultiPolygon(s.Points, s.Parts)
		case *shp.PolygonM:
			rec.geom = BuildMultiPolygon(s.Points, s.Parts)
		case *shp.Null:
			return nil, fmt.Errorf("%w: record %d has no geometry", methods.ErrInvalidGeometry, n)
		default:
			return nil, fmt.Errorf("%w: record %d is %T", ErrUnsupportedShape, n, p)
		}
		for k := range fields {
			rec.attrs[k] = shape.ReadAttribute(n, k)
		}
		records = append(records, rec)
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("%w: read shapefile %s: %v", methods.ErrInvalidPayload, filepath.Base(path), err)
	}

	names := make([]string, len(fields))
	raw := make([]string, 0, len(fields)+len(records))
	for k, f := range fields {
		names[k] = f.String()
		raw = append(raw, names[k])
	}
	for _, rec := range records {
		raw = append(raw, rec.attrs...)
	}
	dec := NewTextDecoder(readCPG(path), raw)
	for k := range names {
		names[k] = PropertyName(dec.Decode(names[k]))
	}

	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		feature := geojson.NewFeature(rec.geom)
		for k, name := range names {
			feature.Properties[name] = attributeValue(dec.Decode(rec.attrs[k]))
		}
		fc.Append(feature)
	}
	return fc, nil
}

// BuildMultiPolygon 按 parts 切分环并组装多面。
// 顺时针环为外环，逆时针环归入前一个外环作为洞；开头的逆时针环按外环处理
func BuildMultiPolygon(points []shp.Point, parts []int32) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, ring := range splitRings(points, parts) {
		if len(mp) == 0 || ring.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	return mp
}

func splitRings(points []shp.Point, parts []int32) []orb.Ring {
	rings := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i < len(parts)-1 {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

// PropertyName 将 dbf 字段名映射为图斑属性名，无法识别时原样返回
func PropertyName(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, methods.PropDivision) {
		return methods.PropDivision
	}
	for _, f := range methods.SectorFields() {
		if strings.EqualFold(name, f.Property) || strings.EqualFold(name, f.Column) {
			return f.Property
		}
	}
	return name
}

// attributeValue dbf 定长字段以空格补齐，空值视为 null
func attributeValue(s string) interface{} {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return nil
	}
	return s
}

func readCPG(shpPath string) string {
	cpgPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg"
	content, err := os.ReadFile(cpgPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

package models

import (
	"context"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// SRID 经纬度坐标系
const SRID = 4326

// Geometry 图斑几何，统一按 MultiPolygon 存储；
// PostGIS 下为 geometry(MultiPolygon,4326)，SQLite 下为 EWKB 十六进制文本
type Geometry struct {
	MultiPolygon orb.MultiPolygon
}

// IsEmpty 没有任何面
func (g Geometry) IsEmpty() bool {
	return len(g.MultiPolygon) == 0
}

// Hex EWKB 十六进制
func (g Geometry) Hex() (string, error) {
	if g.IsEmpty() {
		return "", nil
	}
	return ewkb.MarshalToHex(g.MultiPolygon, SRID)
}

func (Geometry) GormDataType() string {
	return "geometry"
}

func (Geometry) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("geometry(MultiPolygon,%d)", SRID)
	}
	return "text"
}

// GormValue 写入时在 PostGIS 端解码 EWKB
func (g Geometry) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	if g.IsEmpty() {
		return clause.Expr{SQL: "NULL"}
	}
	wkbHex, err := g.Hex()
	if err != nil {
		_ = db.AddError(fmt.Errorf("encode geometry: %w", err))
		return clause.Expr{SQL: "NULL"}
	}
	if db.Dialector.Name() == "postgres" {
		return clause.Expr{SQL: "ST_GeomFromEWKB(decode(?, 'hex'))", Vars: []interface{}{wkbHex}}
	}
	return clause.Expr{SQL: "?", Vars: []interface{}{wkbHex}}
}

func (g Geometry) Value() (driver.Value, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	return g.Hex()
}

// Scan 兼容十六进制文本（PostGIS 文本输出、SQLite）与原始 EWKB 字节
func (g *Geometry) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		g.MultiPolygon = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Geometry", src)
	}

	data := raw
	if decoded, err := hex.DecodeString(string(raw)); err == nil {
		data = decoded
	}
	geom, _, err := ewkb.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("decode geometry: %w", err)
	}
	switch t := geom.(type) {
	case orb.MultiPolygon:
		g.MultiPolygon = t
	case orb.Polygon:
		g.MultiPolygon = orb.MultiPolygon{t}
	default:
		return fmt.Errorf("unexpected geometry type %s", geom.GeoJSONType())
	}
	return nil
}

package KmlGeo

import (
	"encoding/xml"

	"github.com/paulmach/orb"
)

// MultiGeometry 只关心其中的面，点线由调用方判定为不支持
type MultiGeometry struct {
	XMLName     xml.Name   `xml:"MultiGeometry"`
	Polygons    []Polygon  `xml:"Polygon"`
	LineStrings []struct{} `xml:"LineString"`
	Points      []struct{} `xml:"Point"`
}

func (m MultiGeometry) MultiPolygon() orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(m.Polygons))
	for _, p := range m.Polygons {
		mp = append(mp, p.Polygon())
	}
	return mp
}

// HasNonPolygon 是否混有点或线
func (m MultiGeometry) HasNonPolygon() bool {
	return len(m.LineStrings) > 0 || len(m.Points) > 0
}

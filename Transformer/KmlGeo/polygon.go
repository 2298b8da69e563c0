package KmlGeo

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type Polygon struct {
	XMLName         xml.Name   `xml:"Polygon"`
	OuterBoundaryIs Boundary   `xml:"outerBoundaryIs"`
	InnerBoundaryIs []Boundary `xml:"innerBoundaryIs"`
}

type Boundary struct {
	LinearRing LinearRing `xml:"LinearRing"`
}

type LinearRing struct {
	Coordinates string `xml:"coordinates"`
}

// Polygon 外环在前，内环依次在后
func (p Polygon) Polygon() orb.Polygon {
	rings := orb.Polygon{ParseCoordinates(p.OuterBoundaryIs.LinearRing.Coordinates)}
	for _, inner := range p.InnerBoundaryIs {
		rings = append(rings, ParseCoordinates(inner.LinearRing.Coordinates))
	}
	return rings
}

// ParseCoordinates 解析 "lon,lat[,alt]" 以空白分隔的坐标串，格式不对的坐标跳过
func ParseCoordinates(coords string) orb.Ring {
	var ring orb.Ring
	for _, tuple := range strings.Fields(coords) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		x, errX := strconv.ParseFloat(parts[0], 64)
		y, errY := strconv.ParseFloat(parts[1], 64)
		if errX != nil || errY != nil {
			continue
		}
		ring = append(ring, orb.Point{x, y})
	}
	return ring
}

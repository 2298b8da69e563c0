package Transformer

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GrainArc/SectorMap/Transformer/KmlGeo"
	"github.com/GrainArc/SectorMap/methods"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Kml struct {
	XMLName  xml.Name `xml:"kml"`
	Document Folder   `xml:"Document"`
}

// Folder Document 与 Folder 结构相同，可任意嵌套
type Folder struct {
	Name      string      `xml:"name"`
	Folders   []Folder    `xml:"Folder"`
	Placemark []Placemark `xml:"Placemark"`
}

type Placemark struct {
	Name          string                `xml:"name"`
	ExtendedData  ExtendedData          `xml:"ExtendedData"`
	Polygon       *KmlGeo.Polygon       `xml:"Polygon"`
	MultiGeometry *KmlGeo.MultiGeometry `xml:"MultiGeometry"`
	LineString    *struct{}             `xml:"LineString"`
	Point         *struct{}             `xml:"Point"`
}

// ExtendedData 兼容 SchemaData/SimpleData 与 Data/value 两种写法
type ExtendedData struct {
	SchemaData []struct {
		SimpleData []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"SimpleData"`
	} `xml:"SchemaData"`
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"Data"`
}

func (e ExtendedData) properties() geojson.Properties {
	props := geojson.Properties{}
	for _, sd := range e.SchemaData {
		for _, d := range sd.SimpleData {
			props[PropertyName(d.Name)] = attributeValue(d.Value)
		}
	}
	for _, d := range e.Data {
		props[PropertyName(d.Name)] = attributeValue(d.Value)
	}
	return props
}

func (p Placemark) geometry() (orb.MultiPolygon, error) {
	switch {
	case p.Polygon != nil:
		return orb.MultiPolygon{p.Polygon.Polygon()}, nil
	case p.MultiGeometry != nil && !p.MultiGeometry.HasNonPolygon():
		return p.MultiGeometry.MultiPolygon(), nil
	case p.MultiGeometry != nil, p.LineString != nil, p.Point != nil:
		return nil, ErrUnsupportedShape
	}
	return nil, fmt.Errorf("%w: placemark has no geometry", methods.ErrInvalidGeometry)
}

// ReadKml 读取 KML 中所有面状 Placemark，包括嵌套 Folder 内的
func ReadKml(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", methods.ErrInvalidPayload, filepath.Base(path), err)
	}
	var kml Kml
	if err := xml.Unmarshal(data, &kml); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", methods.ErrInvalidPayload, filepath.Base(path), err)
	}

	fc := geojson.NewFeatureCollection()
	var walk func(f Folder) error
	walk = func(f Folder) error {
		for _, pm := range f.Placemark {
			geom, err := pm.geometry()
			if err != nil {
				return fmt.Errorf("placemark %q: %w", strings.TrimSpace(pm.Name), err)
			}
			feature := geojson.NewFeature(geom)
			feature.Properties = pm.ExtendedData.properties()
			fc.Append(feature)
		}
		for _, sub := range f.Folders {
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(kml.Document); err != nil {
		return nil, err
	}
	return fc, nil
}
